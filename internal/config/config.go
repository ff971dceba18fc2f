package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	JWT_SECRET       string
	SENDGRID_API_KEY string

	ADMIN_EMAIL     string
	ADMIN_USERNAME  string
	ADMIN_FULL_NAME string
	ADMIN_PASSWORD  string

	APPLICATION_HOSTNAME string
	KAFKA_ADDRESS        string
	LOG_LEVEL            string
	SERVER_PORT          int
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:              os.Getenv("DB_HOST"),
		DB_PORT:              os.Getenv("DB_PORT"),
		DB_USER:              os.Getenv("DB_USER"),
		DB_PASSWORD:          os.Getenv("DB_PASSWORD"),
		DB_NAME:              os.Getenv("DB_NAME"),
		JWT_SECRET:           os.Getenv("JWT_SECRET"),
		SENDGRID_API_KEY:     os.Getenv("SENDGRID_API_KEY"),
		ADMIN_EMAIL:          os.Getenv("ADMIN_EMAIL"),
		ADMIN_USERNAME:       os.Getenv("ADMIN_USERNAME"),
		ADMIN_FULL_NAME:      os.Getenv("ADMIN_FULL_NAME"),
		ADMIN_PASSWORD:       os.Getenv("ADMIN_PASSWORD"),
		APPLICATION_HOSTNAME: os.Getenv("APPLICATION_HOSTNAME"),
		KAFKA_ADDRESS:        os.Getenv("KAFKA_ADDRESS"),
		LOG_LEVEL:            EnvDefault("LOG_LEVEL", "info"),
		SERVER_PORT:          EnvIntDefault("SERVER_PORT", 8080),
	}

	return config, nil
}

func EnvDefault(key, def string) string {
	if os.Getenv(key) != "" {
		return os.Getenv(key)
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}
