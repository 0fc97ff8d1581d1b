package lib

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds every environment-driven setting of the service
type Config struct {
	Port        string   `env:"PORT" envDefault:"3000"`
	PushPort    string   `env:"PUSH_PORT" envDefault:"3001"`
	DBPath      string   `env:"DB_PATH" envDefault:"./talentnest.db"`
	JWTSecret   string   `env:"JWT_SECRET" envDefault:"fallback-secret-key"`
	CorsOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://frontend-service:5173,http://localhost:5173"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`

	NotificationStore string `env:"NOTIFICATION_STORE" envDefault:"sql"`
	MongoURI          string `env:"MONGO_URI"`
	MongoDatabase     string `env:"MONGO_DATABASE" envDefault:"talentnest"`

	RedisURL string `env:"REDIS_URL"`
	NodeID   string `env:"NODE_ID"`

	PushBuffer       int           `env:"PUSH_BUFFER" envDefault:"64"`
	PushWriteTimeout time.Duration `env:"PUSH_WRITE_TIMEOUT" envDefault:"10s"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
}

// LoadConfig reads an optional .env file and parses the environment into a Config
func LoadConfig() (Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}

	if cfg.NodeID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "node"
		}
		cfg.NodeID = hostname
	}

	switch cfg.NotificationStore {
	case "sql":
	case "mongo":
		if cfg.MongoURI == "" {
			return Config{}, errors.New("MONGO_URI is required when NOTIFICATION_STORE=mongo")
		}
	default:
		return Config{}, errors.Errorf("unknown NOTIFICATION_STORE %q", cfg.NotificationStore)
	}

	if cfg.PushBuffer <= 0 {
		return Config{}, errors.New("PUSH_BUFFER must be positive")
	}

	return cfg, nil
}
