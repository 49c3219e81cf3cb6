// Package config загружает конфигурацию сервиса из переменных окружения и файла .env
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища
const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config содержит конфигурацию сервиса
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Analysis AnalysisConfig
	LLM      LLMConfig
	LogLevel string
}

// ServerConfig настройки HTTP сервера
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StoreConfig настройки хранилища
type StoreConfig struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string
	TimeZone      string
	Location      *time.Location
}

// AnalysisConfig настройки конвейера анализа
type AnalysisConfig struct {
	WorkerCount      int
	QueueSize        int
	MemoSize         int
	NarrativeURL     string
	NarrativeTimeout time.Duration
}

// LLMConfig настройки языковой модели для текстовых рекомендаций
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// LoadDotEnv подгружает переменные из файлов .env, если они есть
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load читает конфигурацию из окружения и проверяет ее
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("SERVER_ADDR", ":8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", DriverRedis)),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			PostgresDSN:   getEnv("DATABASE_URL", ""),
			TimeZone:      getEnv("STORE_TIMEZONE", "Local"),
		},
		Analysis: AnalysisConfig{
			WorkerCount:      getEnvInt("WORKER_COUNT", runtime.NumCPU()),
			QueueSize:        getEnvInt("QUEUE_SIZE", 1000),
			MemoSize:         getEnvInt("MEMO_SIZE", 1024),
			NarrativeURL:     getEnv("NARRATIVE_URL", ""),
			NarrativeTimeout: getEnvDuration("NARRATIVE_TIMEOUT", 20*time.Second),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("OPENROUTER_API_KEY", ""),
			BaseURL:     getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnv("LLM_MODEL", "qwen/qwen2.5-vl-32b-instruct:free"),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 400),
			Timeout:     getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		},
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverRedis, DriverMemory:
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	loc, err := time.LoadLocation(c.Store.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid STORE_TIMEZONE: %w", err)
	}
	c.Store.Location = loc

	if c.Analysis.WorkerCount <= 0 {
		return errors.New("WORKER_COUNT must be positive")
	}
	if c.Analysis.QueueSize <= 0 {
		return errors.New("QUEUE_SIZE must be positive")
	}
	if c.Analysis.NarrativeTimeout <= 0 {
		return errors.New("NARRATIVE_TIMEOUT must be positive")
	}
	return nil
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat получает дробную переменную окружения
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration получает длительность в формате time.ParseDuration
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
