package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // Postgres driver

	"github.com/olympiadqr/backend/internal/api"
	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/config"
	"github.com/olympiadqr/backend/internal/jobs"
	"github.com/olympiadqr/backend/internal/metrics"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/seating"
	"github.com/olympiadqr/backend/internal/service"
	"github.com/olympiadqr/backend/internal/sheet"
	"github.com/olympiadqr/backend/internal/store"
	"github.com/olympiadqr/backend/internal/token"
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

	deps := service.Deps{
		Store:    st,
		Tokens:   tokens,
		Queue:    queue,
		Objects:  objects,
		Renderer: sheet.NewPDFRenderer(),
		Seating:  seating.NewScheduler(),
		JWT:      auth.NewManager(cfg.Auth.SecretKey, cfg.Auth.JWTExpireMinutes),
		Cfg:      cfg,
		Metrics:  metrics.New(),
	}

	srv := api.NewServer(deps)
	if err := srv.Start(); err != nil {
		log.Fatalf("server: %v", err)
	}
}
