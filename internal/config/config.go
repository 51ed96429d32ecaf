package config

import (
	"os"
	"strconv"
	"time"
)

// Драйверы базы данных
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// Database конфигурация архива партий
type Database struct {
	Driver     string
	Host       string
	Port       string
	Database   string
	Username   string
	Password   string
	SSLMode    string
	SQLitePath string
}

// Config структура конфигурации приложения
type Config struct {
	Environment string
	Server      struct {
		Port        int
		Host        string
		MaxUploadMB int
	}
	DetectionAPI struct {
		BaseURL string
		Timeout int // в секундах, 0 без ограничения
	}
	Logging struct {
		Level string
	}
	Database Database
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() *Config {
	cfg := &Config{}

	cfg.Environment = getEnv("ENVIRONMENT", "development")

	// Конфигурация сервера
	cfg.Server.Port = getEnvInt("SERVER_PORT", 8080)
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.Server.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", 64)

	// Конфигурация сервиса детекции
	cfg.DetectionAPI.BaseURL = getEnv("DETECTION_API_BASE_URL", "http://localhost:5001")
	cfg.DetectionAPI.Timeout = getEnvInt("DETECTION_API_TIMEOUT_SECONDS", 0)

	// Конфигурация логирования
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	// Конфигурация базы данных
	cfg.Database = Database{
		Driver:     getEnv("DB_DRIVER", DriverSQLite),
		Host:       getEnv("DB_HOST", "localhost"),
		Port:       getEnv("DB_PORT", "5432"),
		Database:   getEnv("DB_NAME", "tower_detector"),
		Username:   getEnv("DB_USER", "postgres"),
		Password:   getEnv("DB_PASSWORD", "postgres"),
		SSLMode:    getEnv("DB_SSL_MODE", "disable"),
		SQLitePath: getEnv("DB_SQLITE_PATH", "tower_detector.db"),
	}

	return cfg
}

// DetectionTimeout таймаут запросов к детектору
func (c *Config) DetectionTimeout() time.Duration {
	return time.Duration(c.DetectionAPI.Timeout) * time.Second
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает int значение переменной окружения или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
