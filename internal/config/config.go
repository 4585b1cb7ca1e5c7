package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/olympiadqr/backend/internal/domain"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Tokens   TokenConfig    `yaml:"tokens"`
	Storage  StorageConfig  `yaml:"storage"`
	OCR      OCRConfig      `yaml:"ocr"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	Env         string   `yaml:"env"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
	// BrokerURL is the queue broker. Defaults to URL when empty.
	BrokerURL string `yaml:"broker_url"`
}

type AuthConfig struct {
	SecretKey        string `yaml:"secret_key"`
	JWTAlgorithm     string `yaml:"jwt_algorithm"`
	JWTExpireMinutes int    `yaml:"jwt_expire_minutes"`
}

type TokenConfig struct {
	HMACSecretKey         string `yaml:"hmac_secret_key"`
	EntryTokenExpireHours int    `yaml:"entry_token_expire_hours"`
	QRTokenSizeBytes      int    `yaml:"qr_token_size_bytes"`
	QRErrorCorrection     string `yaml:"qr_error_correction"`
}

type StorageConfig struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	SheetsBucket string `yaml:"sheets_bucket"`
	ScansBucket  string `yaml:"scans_bucket"`
}

type OCRConfig struct {
	// Score field rectangle on the sheet, millimetres from the top-left
	// corner of an A4 page.
	ScoreFieldX      float64 `yaml:"score_field_x"`
	ScoreFieldY      float64 `yaml:"score_field_y"`
	ScoreFieldWidth  float64 `yaml:"score_field_width"`
	ScoreFieldHeight float64 `yaml:"score_field_height"`

	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	UseGPU              bool    `yaml:"use_gpu"`
}

type WorkerConfig struct {
	MaxRetries     int `yaml:"max_retries"`
	RetryDelaySecs int `yaml:"retry_delay_seconds"`
	JobTimeoutSecs int `yaml:"job_timeout_seconds"`
	PollIntervalMs int `yaml:"poll_interval_ms"`
	Concurrency    int `yaml:"concurrency"`
}

// Default returns the built-in configuration. Load layers the YAML file
// and then the environment on top of it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:        "8000",
			Env:         "development",
			CORSOrigins: []string{"*"},
		},
		Auth: AuthConfig{
			JWTAlgorithm:     "HS256",
			JWTExpireMinutes: 1440,
		},
		Tokens: TokenConfig{
			EntryTokenExpireHours: 24,
			QRTokenSizeBytes:      32,
			QRErrorCorrection:     "H",
		},
		Storage: StorageConfig{
			SheetsBucket: "answer-sheets",
			ScansBucket:  "scans",
		},
		OCR: OCRConfig{
			ScoreFieldX:         140,
			ScoreFieldY:         245,
			ScoreFieldWidth:     40,
			ScoreFieldHeight:    15,
			ConfidenceThreshold: 0.7,
		},
		Worker: WorkerConfig{
			MaxRetries:     3,
			RetryDelaySecs: 30,
			JobTimeoutSecs: 600,
			PollIntervalMs: 500,
			Concurrency:    2,
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist), applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, domain.WrapErr(domain.KindFatal, err, "open config file")
			}
		} else {
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
				return Config{}, domain.WrapErr(domain.KindFatal, err, "parse config file")
			}
		}
	}
	cfg.applyEnv()
	if cfg.Redis.BrokerURL == "" {
		cfg.Redis.BrokerURL = cfg.Redis.URL
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr(&c.Server.Port, "PORT")
	setStr(&c.Server.Env, "APP_ENV")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitCSV(v)
	}
	setStr(&c.Database.URL, "DATABASE_URL")
	setStr(&c.Redis.URL, "REDIS_URL")
	setStr(&c.Redis.BrokerURL, "CELERY_BROKER_URL")
	setStr(&c.Auth.SecretKey, "SECRET_KEY")
	setStr(&c.Auth.JWTAlgorithm, "JWT_ALGORITHM")
	setInt(&c.Auth.JWTExpireMinutes, "JWT_EXPIRE_MINUTES")
	setStr(&c.Tokens.HMACSecretKey, "HMAC_SECRET_KEY")
	setInt(&c.Tokens.EntryTokenExpireHours, "ENTRY_TOKEN_EXPIRE_HOURS")
	setInt(&c.Tokens.QRTokenSizeBytes, "QR_TOKEN_SIZE_BYTES")
	setStr(&c.Tokens.QRErrorCorrection, "QR_ERROR_CORRECTION")
	setStr(&c.Storage.Endpoint, "STORAGE_ENDPOINT")
	setStr(&c.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	setStr(&c.Storage.SecretKey, "STORAGE_SECRET_KEY")
	setStr(&c.Storage.SheetsBucket, "STORAGE_SHEETS_BUCKET")
	setStr(&c.Storage.ScansBucket, "STORAGE_SCANS_BUCKET")
	setFloat(&c.OCR.ScoreFieldX, "OCR_SCORE_FIELD_X")
	setFloat(&c.OCR.ScoreFieldY, "OCR_SCORE_FIELD_Y")
	setFloat(&c.OCR.ScoreFieldWidth, "OCR_SCORE_FIELD_WIDTH")
	setFloat(&c.OCR.ScoreFieldHeight, "OCR_SCORE_FIELD_HEIGHT")
	setFloat(&c.OCR.ConfidenceThreshold, "OCR_CONFIDENCE_THRESHOLD")
	if v := os.Getenv("OCR_USE_GPU"); v != "" {
		c.OCR.UseGPU = v == "true" || v == "1"
	}
}

// Validate rejects configurations the service cannot safely run with.
func (c *Config) Validate() error {
	if len(c.Tokens.HMACSecretKey) < 32 {
		return domain.E(domain.KindFatal, "hmac_secret_key must be at least 32 characters")
	}
	if c.Auth.SecretKey == "" {
		return domain.E(domain.KindFatal, "secret_key is required")
	}
	if c.Auth.JWTAlgorithm != "HS256" {
		return domain.E(domain.KindFatal, "unsupported jwt_algorithm %q", c.Auth.JWTAlgorithm)
	}
	switch c.Tokens.QRErrorCorrection {
	case "L", "M", "Q", "H":
	default:
		return domain.E(domain.KindFatal, "qr_error_correction must be one of L, M, Q, H")
	}
	if c.Tokens.QRTokenSizeBytes < 16 {
		return domain.E(domain.KindFatal, "qr_token_size_bytes must be at least 16")
	}
	if c.OCR.ConfidenceThreshold < 0 || c.OCR.ConfidenceThreshold > 1 {
		return domain.E(domain.KindFatal, "ocr confidence_threshold must be between 0.0 and 1.0")
	}
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
