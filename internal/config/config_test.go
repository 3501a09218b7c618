package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadGatewayDefaults(t *testing.T) {
	for _, k := range []string{"GATEWAY_ADDR", "ROOMBOOK_API_URL", "ROOMBOOK_API_TIMEOUT", "ROOMBOOK_STATE_BACKEND", "ROOMBOOK_STATE_PATH", "MQTT_BROKER"} {
		t.Setenv(k, "")
	}
	cfg := LoadGateway()

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.API.BaseURL != "http://localhost:3000" || cfg.API.Timeout != 0 {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.State.Backend != "sqlite" || !strings.HasSuffix(cfg.State.Path, "gateway.db") {
		t.Errorf("State = %+v", cfg.State)
	}
	if cfg.MQTTBroker != "" {
		t.Errorf("MQTT should be off by default, got %q", cfg.MQTTBroker)
	}
}

func TestLoadCLIFromEnv(t *testing.T) {
	t.Setenv("ROOMBOOK_API_URL", "https://booking.example.com/api")
	t.Setenv("ROOMBOOK_API_TIMEOUT", "7s")
	t.Setenv("ROOMBOOK_STATE_BACKEND", "redis")
	t.Setenv("ROOMBOOK_REDIS_DB", "3")
	t.Setenv("ROOMBOOK_STATE_KEY", "hunter2")
	t.Setenv("ROOMBOOK_REFRESH_CONCURRENCY", "not-a-number")

	cfg := LoadCLI()
	if cfg.API.BaseURL != "https://booking.example.com/api" || cfg.API.Timeout != 7*time.Second {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.State.Backend != "redis" || cfg.State.RedisDB != 3 || cfg.State.Key != "hunter2" {
		t.Errorf("State = %+v", cfg.State)
	}
	if cfg.RefreshConcurrency != 4 {
		t.Errorf("bad value should keep the default, got %d", cfg.RefreshConcurrency)
	}
}

func TestLoadNotifier(t *testing.T) {
	t.Setenv("EVENT_BUFFER_SIZE", "10")
	t.Setenv("MQTT_BROKER", "")
	cfg := LoadNotifier()
	if cfg.EventBufferSize != 10 || cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Errorf("cfg = %+v", cfg)
	}
}
