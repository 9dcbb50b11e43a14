package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port            string
		Env             string
		ShutdownTimeout time.Duration
	}

	// Chat configuration
	Chat struct {
		// StorytellerName is the single reserved, privileged identity with
		// edit rights over all messages.
		StorytellerName string
		MaxDiceCount    int
		// SendBufferSize is the per-connection outbound event queue length.
		SendBufferSize int
	}

	// Storage configuration
	Storage struct {
		DataDir      string
		UploadDir    string
		ClientDir    string
		ProfilesFile string
		HistoryFile  string
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
		MaxUploadSize  int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}
}

// New creates a new Config instance with values from environment variables
func New() *Config {
	// Load .env file if exists
	godotenv.Load()

	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "3000")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	// Chat config
	cfg.Chat.StorytellerName = getEnvString("STORYTELLER_NAME", "Рассказчик")
	cfg.Chat.MaxDiceCount = getEnvInt("MAX_DICE_COUNT", 15)
	cfg.Chat.SendBufferSize = getEnvInt("SEND_BUFFER_SIZE", 256)

	// Storage config
	cfg.Storage.DataDir = getEnvString("DATA_DIR", "data")
	cfg.Storage.UploadDir = getEnvString("UPLOAD_DIR", "uploads")
	cfg.Storage.ClientDir = getEnvString("CLIENT_DIR", "client")
	cfg.Storage.ProfilesFile = filepath.Join(cfg.Storage.DataDir, getEnvString("PROFILES_FILE", "characters.json"))
	cfg.Storage.HistoryFile = filepath.Join(cfg.Storage.DataDir, getEnvString("HISTORY_FILE", "chat_history.json"))

	// Security config
	cfg.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 20))
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 40)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 10<<20) // 10MB
	cfg.Security.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 10<<20)

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	return cfg
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
