// Package config binds command-line flags and environment variables into
// the server configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// DefaultGeminiModels are tried in order when drafting invoices.
var DefaultGeminiModels = []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-2.0"}

// Config is the resolved server configuration.
type Config struct {
	Port           int
	DBDriver       string
	DBPath         string
	MongoURI       string
	MongoDatabase  string
	AuthSecret     string
	TokenTTL       time.Duration
	CORSOrigins    []string
	UploadDir      string
	PublicBaseURL  string
	GeminiAPIKey   string
	GeminiModels   []string
	KafkaBrokers   string
	KafkaTopic     string
	RequestTimeout time.Duration
	LogLevel       string
}

// Flags returns the flags shared by every command.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "port", Value: 4000, EnvVars: []string{"PORT"}, Usage: "HTTP listen port"},
		&cli.StringFlag{Name: "db-driver", Value: DriverSQLite, EnvVars: []string{"DB_DRIVER"}, Usage: "storage backend: sqlite or mongo"},
		&cli.StringFlag{Name: "db-path", Value: "invoices.db", EnvVars: []string{"DB_PATH"}, Usage: "SQLite database file"},
		&cli.StringFlag{Name: "mongo-uri", Value: "mongodb://localhost:27017", EnvVars: []string{"MONGO_URI"}, Usage: "MongoDB connection string"},
		&cli.StringFlag{Name: "mongo-database", Value: "invoicer", EnvVars: []string{"MONGO_DATABASE"}, Usage: "MongoDB database name"},
		&cli.StringFlag{Name: "auth-secret", EnvVars: []string{"AUTH_SECRET"}, Usage: "HMAC secret for bearer tokens"},
		&cli.DurationFlag{Name: "token-ttl", Value: 24 * time.Hour, EnvVars: []string{"TOKEN_TTL"}, Usage: "lifetime of minted tokens"},
		&cli.StringSliceFlag{Name: "cors-origins", Value: cli.NewStringSlice("http://localhost:5173"), EnvVars: []string{"CORS_ORIGINS"}, Usage: "allowed CORS origins"},
		&cli.StringFlag{Name: "upload-dir", Value: "uploads", EnvVars: []string{"UPLOAD_DIR"}, Usage: "directory for uploaded logos, stamps and signatures"},
		&cli.StringFlag{Name: "public-base-url", EnvVars: []string{"PUBLIC_BASE_URL"}, Usage: "base URL used in upload links (default http://localhost:<port>)"},
		&cli.StringFlag{Name: "gemini-api-key", EnvVars: []string{"GEMINI_API_KEY"}, Usage: "API key for AI invoice drafting"},
		&cli.StringSliceFlag{Name: "gemini-models", Value: cli.NewStringSlice(DefaultGeminiModels...), EnvVars: []string{"GEMINI_MODELS"}, Usage: "model candidates, tried in order"},
		&cli.StringFlag{Name: "kafka-brokers", EnvVars: []string{"KAFKA_BROKERS"}, Usage: "comma separated Kafka brokers; empty disables events"},
		&cli.StringFlag{Name: "kafka-topic", Value: "invoice-events", EnvVars: []string{"KAFKA_TOPIC"}, Usage: "topic for invoice lifecycle events"},
		&cli.DurationFlag{Name: "request-timeout", Value: 30 * time.Second, EnvVars: []string{"REQUEST_TIMEOUT"}, Usage: "per-request handler timeout"},
		&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}, Usage: "debug, info, warn or error"},
	}
}

// FromContext reads the flag values set on c.
func FromContext(c *cli.Context) *Config {
	cfg := &Config{
		Port:           c.Int("port"),
		DBDriver:       strings.ToLower(strings.TrimSpace(c.String("db-driver"))),
		DBPath:         c.String("db-path"),
		MongoURI:       c.String("mongo-uri"),
		MongoDatabase:  c.String("mongo-database"),
		AuthSecret:     c.String("auth-secret"),
		TokenTTL:       c.Duration("token-ttl"),
		CORSOrigins:    splitList(c.StringSlice("cors-origins")),
		UploadDir:      c.String("upload-dir"),
		PublicBaseURL:  strings.TrimRight(c.String("public-base-url"), "/"),
		GeminiAPIKey:   c.String("gemini-api-key"),
		GeminiModels:   splitList(c.StringSlice("gemini-models")),
		KafkaBrokers:   c.String("kafka-brokers"),
		KafkaTopic:     c.String("kafka-topic"),
		RequestTimeout: c.Duration("request-timeout"),
		LogLevel:       c.String("log-level"),
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if len(cfg.GeminiModels) == 0 {
		cfg.GeminiModels = DefaultGeminiModels
	}
	return cfg
}

// Validate reports configuration the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db-path is required for sqlite"))
		}
	case DriverMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			errs = append(errs, errors.New("mongo-uri and mongo-database are required for mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown db-driver %q", c.DBDriver))
	}
	if c.AuthSecret == "" {
		errs = append(errs, errors.New("auth-secret is required"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request-timeout must be positive"))
	}
	return errors.Join(errs...)
}

// splitList flattens comma separated entries and drops blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
