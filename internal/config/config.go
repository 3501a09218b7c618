package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type StateConfig struct {
	Backend       string // sqlite, redis or memory
	Path          string
	Key           string // passphrase; values are sealed when set
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type GatewayConfig struct {
	Addr               string
	API                APIConfig
	State              StateConfig
	MQTTBroker         string
	MQTTClientID       string
	RefreshConcurrency int
}

type CLIConfig struct {
	API                APIConfig
	State              StateConfig
	RefreshConcurrency int
}

type NotifierConfig struct {
	Addr            string
	MQTTBroker      string
	MQTTClientID    string
	EventBufferSize int
}

var dotenvOnce sync.Once

// loadDotEnv reads ./.env if present. Variables already set in the process
// win over the file.
func loadDotEnv() {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
}

func LoadGateway() GatewayConfig {
	loadDotEnv()
	return GatewayConfig{
		Addr:               getenv("GATEWAY_ADDR", ":8080"),
		API:                loadAPI(),
		State:              loadState("gateway.db"),
		MQTTBroker:         getenv("MQTT_BROKER", ""),
		MQTTClientID:       getenv("MQTT_CLIENT_ID", "roombook-gateway"),
		RefreshConcurrency: getenvInt("ROOMBOOK_REFRESH_CONCURRENCY", 4),
	}
}

func LoadCLI() CLIConfig {
	loadDotEnv()
	return CLIConfig{
		API:                loadAPI(),
		State:              loadState("state.db"),
		RefreshConcurrency: getenvInt("ROOMBOOK_REFRESH_CONCURRENCY", 4),
	}
}

func LoadNotifier() NotifierConfig {
	loadDotEnv()
	return NotifierConfig{
		Addr:            getenv("NOTIFIER_ADDR", ":8081"),
		MQTTBroker:      getenv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:    getenv("MQTT_CLIENT_ID", "roombook-notifier"),
		EventBufferSize: getenvInt("EVENT_BUFFER_SIZE", 50),
	}
}

func loadAPI() APIConfig {
	return APIConfig{
		BaseURL: getenv("ROOMBOOK_API_URL", "http://localhost:3000"),
		Timeout: getenvDuration("ROOMBOOK_API_TIMEOUT", 0),
	}
}

func loadState(file string) StateConfig {
	return StateConfig{
		Backend:       getenv("ROOMBOOK_STATE_BACKEND", "sqlite"),
		Path:          getenv("ROOMBOOK_STATE_PATH", defaultStatePath(file)),
		Key:           os.Getenv("ROOMBOOK_STATE_KEY"),
		RedisAddr:     getenv("ROOMBOOK_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("ROOMBOOK_REDIS_PASSWORD"),
		RedisDB:       getenvInt("ROOMBOOK_REDIS_DB", 0),
	}
}

func defaultStatePath(file string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "roombook", file)
	}
	return filepath.Join(dir, "roombook", file)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvInt keeps def for unset, unparsable or negative values.
func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return def
}
