package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("PORT", "")
	t.Setenv("BASE_URL", "https://gastos.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://gastos.example.com", cfg.Server.BaseURL)
	assert.Equal(t, DriverFirestore, cfg.Store.Driver)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2, cfg.Archive.Workers)
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("ARCHIVE_WORKERS", "many")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ARCHIVE_WORKERS", "")
	t.Setenv("SERVER_READ_TIMEOUT", "soon")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{APIKey: "k"},
			Store:    StoreConfig{Driver: DriverSQLite, DSN: "file::memory:"},
			Gemini:   GeminiConfig{APIKey: "g"},
			Telegram: TelegramConfig{BotToken: "t"},
			Auth:     AuthConfig{JWTSecret: "s"},
			Archive:  ArchiveConfig{Workers: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "firestore needs project", mutate: func(c *Config) { c.Store = StoreConfig{Driver: DriverFirestore} }, wantErr: "FIRESTORE_PROJECT_ID"},
		{name: "sql needs dsn", mutate: func(c *Config) { c.Store.DSN = "" }, wantErr: "STORE_DSN"},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: "STORE_DRIVER"},
		{name: "missing api key", mutate: func(c *Config) { c.Server.APIKey = "" }, wantErr: "API_KEY"},
		{name: "missing identity verifier", mutate: func(c *Config) { c.Auth = AuthConfig{} }, wantErr: "AUTH_JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUseFirebase(t *testing.T) {
	assert.True(t, AuthConfig{FirebaseProjectID: "p"}.UseFirebase())
	assert.False(t, AuthConfig{FirebaseProjectID: "p", JWTSecret: "s"}.UseFirebase())
	assert.False(t, AuthConfig{}.UseFirebase())
}
