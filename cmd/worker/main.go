package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // Postgres driver

	"github.com/olympiadqr/backend/internal/config"
	"github.com/olympiadqr/backend/internal/jobs"
	"github.com/olympiadqr/backend/internal/metrics"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/store"
	"github.com/olympiadqr/backend/internal/token"
	"github.com/olympiadqr/backend/internal/vision"
	"github.com/olympiadqr/backend/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	tokens, err := token.NewService(cfg.Tokens.HMACSecretKey)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	queue, err := jobs.NewRedisQueue(cfg.Redis.BrokerURL)
	if err != nil {
		log.Fatalf("queue: %v", err)
	}
	objects, err := objstore.NewRedis(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("objstore: %v", err)
	}

	w := worker.New(st, objects, queue, tokens,
		vision.ZBarDecoder{}, vision.PopplerRasterizer{}, vision.TesseractOCR{},
		cfg, metrics.New())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	concurrency := cfg.Worker.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	log.Printf("starting %d worker loops", concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				log.Printf("worker stopped: %v", err)
			}
		}()
	}
	wg.Wait()
}
