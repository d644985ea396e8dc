// Package config loads process configuration from the environment. Values
// are read once at startup and treated as immutable for the process
// lifetime. A missing required variable is a startup failure, not a
// runtime one.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Server configures the websocket gateway binary.
type Server struct {
	ListenAddr      string
	AllowedOrigins  []string
	PostgresURL     string
	RedisAddr       string
	QueueName       string
	LabelPath       string
	TranslationPath string
	LogLevel        slog.Level
}

// Worker configures the inference worker binary.
type Worker struct {
	PostgresURL     string
	RedisAddr       string
	QueueName       string
	PushEndpointURL string
	BlobDriver      string // "s3" or "memory"
	BucketName      string
	BucketKeyPrefix string
	ModelPath       string
	LabelPath       string
	TranslationPath string
	MetricsAddr     string
	LogLevel        slog.Level
}

// LoadServer reads the gateway configuration. A .env file in the working
// directory is honored when present.
func LoadServer() (Server, error) {
	_ = godotenv.Load()

	cfg := Server{
		ListenAddr: getenv("LISTEN_ADDR", ":5000"),
		QueueName:  getenv("PREDICT_QUEUE_NAME", "predict"),
		LogLevel:   logLevel(),
	}

	var err error
	if cfg.PostgresURL, err = require("POSTGRES_URL"); err != nil {
		return Server{}, err
	}
	if cfg.RedisAddr, err = require("REDIS_ADDR"); err != nil {
		return Server{}, err
	}
	if cfg.LabelPath, err = require("LABEL_PATH"); err != nil {
		return Server{}, err
	}
	if cfg.TranslationPath, err = require("TRANSLATION_PATH"); err != nil {
		return Server{}, err
	}
	origins, err := require("ALLOWED_ORIGINS")
	if err != nil {
		return Server{}, err
	}
	cfg.AllowedOrigins = strings.Split(origins, ",")
	return cfg, nil
}

// LoadWorker reads the worker configuration.
func LoadWorker() (Worker, error) {
	_ = godotenv.Load()

	cfg := Worker{
		QueueName:       getenv("PREDICT_QUEUE_NAME", "predict"),
		BlobDriver:      getenv("BLOB_DRIVER", "s3"),
		BucketKeyPrefix: getenv("RESULT_BUCKET_KEY", "results"),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		LogLevel:        logLevel(),
	}

	var err error
	if cfg.PostgresURL, err = require("POSTGRES_URL"); err != nil {
		return Worker{}, err
	}
	if cfg.RedisAddr, err = require("REDIS_ADDR"); err != nil {
		return Worker{}, err
	}
	if cfg.PushEndpointURL, err = require("PUSH_ENDPOINT_URL"); err != nil {
		return Worker{}, err
	}
	if cfg.ModelPath, err = require("MODEL_PATH"); err != nil {
		return Worker{}, err
	}
	if cfg.LabelPath, err = require("LABEL_PATH"); err != nil {
		return Worker{}, err
	}
	if cfg.TranslationPath, err = require("TRANSLATION_PATH"); err != nil {
		return Worker{}, err
	}
	if cfg.BlobDriver == "s3" {
		if cfg.BucketName, err = require("RESULT_BUCKET_NAME"); err != nil {
			return Worker{}, err
		}
	}
	return cfg, nil
}

func require(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required environment variable %s", key)
	}
	return v, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func logLevel() slog.Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
