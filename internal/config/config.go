// Package config собирает настройки сервисов из переменных окружения.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config: настройки всех бинарников flowrunner.
type Config struct {
	// DBURL: строка подключения PostgreSQL (DB_URL).
	DBURL string

	// RabbitMQURL: адрес брокера (RABBITMQ_URL). Пусто: шина выключена.
	RabbitMQURL string

	// RedisAddr: адрес Redis (REDIS_ADDR). Пусто: pub/sub выключен.
	RedisAddr string

	// APIPort: порт HTTP API (API_PORT).
	APIPort string

	// SchedPort: порт /healthz и /metrics планировщика (SCHED_PORT).
	SchedPort string

	// SchedTick: период тика планировщика (SCHED_TICK).
	SchedTick time.Duration

	// LogLevel, LogFormat: LOG_LEVEL и LOG_FORMAT.
	LogLevel  string
	LogFormat string
}

// Значения по умолчанию.
const (
	defaultAPIPort   = "8080"
	defaultSchedPort = "8081"
	defaultSchedTick = time.Second
)

// Load читает конфигурацию из окружения.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBURL:       getenv("DB_URL"),
		RabbitMQURL: getenv("RABBITMQ_URL"),
		RedisAddr:   getenv("REDIS_ADDR"),
		APIPort:     stringOr(getenv("API_PORT"), defaultAPIPort),
		SchedPort:   stringOr(getenv("SCHED_PORT"), defaultSchedPort),
		SchedTick:   defaultSchedTick,
		LogLevel:    getenv("LOG_LEVEL"),
		LogFormat:   getenv("LOG_FORMAT"),
	}

	if v := getenv("SCHED_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SCHED_TICK: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("SCHED_TICK: must be positive, got %s", d)
		}
		cfg.SchedTick = d
	}

	for name, port := range map[string]string{"API_PORT": cfg.APIPort, "SCHED_PORT": cfg.SchedPort} {
		if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
			return nil, fmt.Errorf("%s: invalid port %q", name, port)
		}
	}

	return cfg, nil
}

// APIAddr возвращает адрес для http.Server API.
func (c *Config) APIAddr() string {
	return ":" + c.APIPort
}

// SchedAddr возвращает адрес для http.Server планировщика.
func (c *Config) SchedAddr() string {
	return ":" + c.SchedPort
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
