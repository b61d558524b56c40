package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	APIURL     string `env:"API_URL"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8090"`

	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	State State

	Poll  Poll  `envPrefix:"POLL_"`
	Kafka Kafka `envPrefix:"KAFKA_"`
	ES    ES    `envPrefix:"ES_"`

	OrderConcurrency int `env:"ORDER_CONCURRENCY" envDefault:"4"`
}

type State struct {
	Backend       string        `env:"STATE_BACKEND" envDefault:"sqlite"`
	DSN           string        `env:"STATE_DSN" envDefault:"storefront.db"`
	RedisURL      string        `env:"REDIS_URL"`
	TTL           time.Duration `env:"STATE_TTL" envDefault:"720h"`
	SessionSecret string        `env:"SESSION_SECRET"`
}

type Poll struct {
	ActiveInterval time.Duration `env:"ACTIVE_INTERVAL" envDefault:"5s"`
	IdleInterval   time.Duration `env:"IDLE_INTERVAL" envDefault:"15s"`
	ActivityWindow time.Duration `env:"ACTIVITY_WINDOW" envDefault:"120s"`
	PageSize       int           `env:"PAGE_SIZE" envDefault:"20"`
}

type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"storefront_events"`
}

type ES struct {
	URL      string `env:"URL"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Index    string `env:"INDEX" envDefault:"product"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Kafka.Brokers = CSV(strings.Join(cfg.Kafka.Brokers, ","))
	return cfg, nil
}

func (c Config) Validate() error {
	if err := NonEmpty(c.APIURL, "API_URL"); err != nil {
		return err
	}
	switch c.State.Backend {
	case "sqlite", "postgres":
		if err := NonEmpty(c.State.DSN, "STATE_DSN"); err != nil {
			return err
		}
	case "redis":
		if err := NonEmpty(c.State.RedisURL, "REDIS_URL"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.State.Backend)
	}
	if c.Poll.ActiveInterval <= 0 || c.Poll.IdleInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.OrderConcurrency < 1 {
		return fmt.Errorf("ORDER_CONCURRENCY must be at least 1")
	}
	return nil
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
