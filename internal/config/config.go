package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string

	// DBDriver selects the persistence gateway: "mongo" (default),
	// "postgres", or "memory" for local development.
	DBDriver string

	MongoURI string
	MongoDB  string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// RedisAddr enables the cross-instance broadcast relay when set.
	RedisAddr string

	JWTSecret     string
	InternalToken string

	// PersistTimeout bounds every persistence write on the hot path; a
	// send that exceeds it fails closed with no broadcast.
	PersistTimeout time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		DBDriver:       getEnv("DB_DRIVER", "mongo"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        getEnv("MONGO_DB", "backstage"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "backstage"),
		DBPassword:     getEnv("DB_PASSWORD", "backstage_dev_password"),
		DBName:         getEnv("DB_NAME", "backstage"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		InternalToken:  getEnv("INTERNAL_TOKEN", "dev-internal-token"),
		PersistTimeout: time.Duration(getEnvInt("PERSIST_TIMEOUT_MS", 3000)) * time.Millisecond,
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
