package citadelcbt

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StorageSQLite = "sqlite"
	StorageMongo  = "mongo"
)

// Draft stores
const (
	DraftsMemory = "memory"
	DraftsRedis  = "redis"
)

// Config holds everything the binaries read from the environment
type Config struct {
	Port           string
	DBPath         string
	StorageDriver  string
	MongoURI       string
	MongoDatabase  string
	DraftStore     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	OpenAIKey      string
	OpenAIModel    string
	SessionSecret  string
	Admin          AdminCredentials
	GoogleClientID string
	GoogleSecret   string
	GoogleRedirect string
	LLMLogDir      string
	Verbose        bool
}

// LoadConfig reads an optional .env file and then the process environment
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8180"),
		DBPath:         getEnv("DB_PATH", "./citadel.db"),
		StorageDriver:  getEnv("STORAGE_DRIVER", StorageSQLite),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "citadel_cbt"),
		DraftStore:     getEnv("DRAFT_STORE", DraftsMemory),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleSecret:   os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirect: getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8180/student/google/callback"),
		LLMLogDir:      os.Getenv("LLM_LOG_DIR"),
		Admin: AdminCredentials{
			Username:    os.Getenv("ADMIN_USERNAME"),
			Password:    os.Getenv("ADMIN_PASSWORD"),
			RegistryKey: os.Getenv("ADMIN_REGISTRY_KEY"),
			DisplayName: getEnv("ADMIN_DISPLAY_NAME", "Academic Director"),
		},
	}

	verbose, err := strconv.ParseBool(getEnv("VERBOSE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid VERBOSE value: %w", err)
	}
	cfg.Verbose = verbose

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB value: %w", err)
	}
	cfg.RedisDB = redisDB

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe default
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageSQLite, StorageMongo:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.DraftStore {
	case DraftsMemory, DraftsRedis:
	default:
		return fmt.Errorf("unknown DRAFT_STORE %q", c.DraftStore)
	}
	if c.Admin.Password != "" && c.Admin.Username == "" {
		return fmt.Errorf("ADMIN_PASSWORD is set without ADMIN_USERNAME")
	}
	return nil
}

// GoogleEnabled reports whether federated sign-in is configured
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleSecret != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
