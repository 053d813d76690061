package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	Downlink struct {
		BaseURL string
		APIKey  string
		Timeout time.Duration
	}
	API struct {
		Port     string
		BasePath string
	}
	Telegram struct {
		BotToken string
		ChatIDs  []int64
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Downlink transport settings
	cfg.Downlink.BaseURL = os.Getenv("DOWNLINK_BASE_URL")
	cfg.Downlink.APIKey = os.Getenv("DOWNLINK_API_KEY")
	if s, err := strconv.Atoi(os.Getenv("DISPATCH_TIMEOUT_SECONDS")); err == nil && s > 0 {
		cfg.Downlink.Timeout = time.Duration(s) * time.Second
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Telegram settings
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	for _, part := range strings.Split(os.Getenv("TELEGRAM_CHAT_IDS"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TELEGRAM_CHAT_IDS entry %q: %w", part, err)
		}
		cfg.Telegram.ChatIDs = append(cfg.Telegram.ChatIDs, id)
	}

	// Logging settings
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.Kafka.Broker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Downlink.BaseURL == "" {
		missing = append(missing, "DOWNLINK_BASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "device_uplink"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "irrigation-control"
	}
	if cfg.Downlink.Timeout == 0 {
		cfg.Downlink.Timeout = 5 * time.Second
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
