package config

import (
	"testing"
	"time"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(env(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIAddr() != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.APIAddr())
	}
	if cfg.SchedAddr() != ":8081" {
		t.Errorf("expected :8081, got %s", cfg.SchedAddr())
	}
	if cfg.SchedTick != time.Second {
		t.Errorf("expected 1s tick, got %s", cfg.SchedTick)
	}
	if cfg.RabbitMQURL != "" || cfg.RedisAddr != "" {
		t.Error("buses must be disabled by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"API_PORT":   "9000",
		"SCHED_TICK": "5s",
		"REDIS_ADDR": "localhost:6379",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIAddr() != ":9000" {
		t.Errorf("expected :9000, got %s", cfg.APIAddr())
	}
	if cfg.SchedTick != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.SchedTick)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected redis addr %s", cfg.RedisAddr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	if _, err := load(env(map[string]string{"SCHED_TICK": "soon"})); err == nil {
		t.Error("expected error for bad SCHED_TICK")
	}
	if _, err := load(env(map[string]string{"SCHED_TICK": "-1s"})); err == nil {
		t.Error("expected error for negative SCHED_TICK")
	}
	if _, err := load(env(map[string]string{"API_PORT": "http"})); err == nil {
		t.Error("expected error for bad API_PORT")
	}
}
