package config

import (
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" envDefault:"production"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	APIAddr   string `env:"API_ADDR" envDefault:"127.0.0.1:8087"`
	SchedAddr string `env:"SCHED_ADDR" envDefault:"127.0.0.1:8088"`

	QueueDir         string        `env:"QUEUE_DIR,notEmpty" envDefault:"/var/lib/pdagent/db"`
	LockTimeout      time.Duration `env:"LOCK_TIMEOUT" envDefault:"10s"`
	LockPollInterval time.Duration `env:"LOCK_POLL_INTERVAL" envDefault:"100ms"`

	FlushInterval    time.Duration `env:"FLUSH_INTERVAL" envDefault:"5s"`
	CleanupInterval  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"3h"`
	CleanupThreshold time.Duration `env:"CLEANUP_THRESHOLD" envDefault:"168h"`

	RetryLimitForPossibleErrors int           `env:"RETRY_LIMIT_FOR_POSSIBLE_ERRORS" envDefault:"3"`
	BackoffInitialDelay         time.Duration `env:"BACKOFF_INITIAL_DELAY" envDefault:"30s"`
	BackoffFactor               float64       `env:"BACKOFF_FACTOR" envDefault:"2"`
	BackoffMaxDelay             time.Duration `env:"BACKOFF_MAX_DELAY" envDefault:"15m"`

	EventsURL   string        `env:"EVENTS_URL" envDefault:"https://events.pagerduty.com/generic/2010-04-15/create_event.json"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	HeartbeatURL      string        `env:"HEARTBEAT_URL"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"1h"`
}

// Parse reads the environment, after loading a .env file from the working
// directory or ENV_FILE when one exists.
func Parse() (Config, error) {
	file := os.Getenv("ENV_FILE")
	if file == "" {
		file = ".env"
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrapf(err, "config: load %s", file)
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, errors.Wrap(err, "config: parse environment")
	}
	if c.RetryLimitForPossibleErrors < 1 {
		return Config{}, errors.New("config: RETRY_LIMIT_FOR_POSSIBLE_ERRORS must be at least 1")
	}
	return c, nil
}

func Load() Config {
	c, err := Parse()
	if err != nil {
		log.Fatal(err)
	}
	return c
}
