// Package config loads service settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverFirestore = "firestore"
	DriverSQLite    = "sqlite"
	DriverPgx       = "pgx"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Gemini   GeminiConfig
	Telegram TelegramConfig
	Auth     AuthConfig
	Archive  ArchiveConfig
	Notion   NotionConfig
	Logger   LoggerConfig
}

type ServerConfig struct {
	Port            string
	BaseURL         string
	APIKey          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	Driver    string
	DSN       string
	ProjectID string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type TelegramConfig struct {
	BotToken      string
	WebhookSecret string
}

type AuthConfig struct {
	FirebaseProjectID       string
	FirebaseCredentials     string
	FirebaseCredentialsFile string
	JWTSecret               string
}

type ArchiveConfig struct {
	ProjectID      string
	Dataset        string
	ReceiptsBucket string
	Workers        int
	QueueSize      int
}

type NotionConfig struct {
	Token      string
	DatabaseID string
}

type LoggerConfig struct {
	Level  string
	Format string
}

// Load reads configuration. A .env file in the working directory or one of
// its parents is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, err := getDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	workers, err := getInt("ARCHIVE_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	queueSize, err := getInt("ARCHIVE_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}

	projectID := getEnv("GOOGLE_CLOUD_PROJECT", "")

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			BaseURL:         strings.TrimRight(getEnv("BASE_URL", "http://localhost:3000"), "/"),
			APIKey:          getEnv("API_KEY", ""),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:    strings.ToLower(getEnv("STORE_DRIVER", DriverFirestore)),
			DSN:       getEnv("STORE_DSN", ""),
			ProjectID: getEnv("FIRESTORE_PROJECT_ID", projectID),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Telegram: TelegramConfig{
			BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		},
		Auth: AuthConfig{
			FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", projectID),
			FirebaseCredentials:     getEnv("FIREBASE_CREDENTIALS_JSON", ""),
			FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			JWTSecret:               getEnv("AUTH_JWT_SECRET", ""),
		},
		Archive: ArchiveConfig{
			ProjectID:      projectID,
			Dataset:        getEnv("EXPENSES_DATASET", ""),
			ReceiptsBucket: getEnv("RECEIPTS_BUCKET", ""),
			Workers:        workers,
			QueueSize:      queueSize,
		},
		Notion: NotionConfig{
			Token:      getEnv("NOTION_TOKEN", ""),
			DatabaseID: getEnv("NOTION_DATABASE_ID", ""),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}, nil
}

// Validate reports every setting the API server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverFirestore:
		if c.Store.ProjectID == "" {
			errs = append(errs, errors.New("FIRESTORE_PROJECT_ID or GOOGLE_CLOUD_PROJECT is required for the firestore store"))
		}
	case DriverSQLite, DriverPgx:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("STORE_DSN is required for the %s store", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of firestore, sqlite, pgx", c.Store.Driver))
	}

	if c.Server.APIKey == "" {
		errs = append(errs, errors.New("API_KEY is required"))
	}
	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if !c.Auth.UseFirebase() && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("FIREBASE_PROJECT_ID or AUTH_JWT_SECRET is required"))
	}
	if c.Archive.Workers < 1 {
		errs = append(errs, errors.New("ARCHIVE_WORKERS must be at least 1"))
	}

	return errors.Join(errs...)
}

// UseFirebase reports whether web identities are verified with Firebase
// Auth rather than a shared HS256 secret.
func (a AuthConfig) UseFirebase() bool {
	return a.FirebaseProjectID != "" && a.JWTSecret == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
