package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		App:         AppConfig{Port: "8080", RequestTimeoutSeconds: 15},
		Logger:      LoggerConfig{Level: "info"},
		Storage:     StorageConfig{Backend: BackendSQLite, SQLitePath: "commission.db"},
		Auth:        AuthConfig{Mode: AuthNone},
		Calendar:    CalendarConfig{Anchor: "2025-07-28", Timezone: "UTC"},
		Leaderboard: LeaderboardConfig{Target: "10000"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errorString string
	}{
		{name: "valid defaults", mutate: func(c *Config) {}},
		{name: "memory backend", mutate: func(c *Config) { c.Storage = StorageConfig{Backend: BackendMemory} }},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.App.Port = "abc" },
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.App.Port = "70000" },
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "unknown backend",
			mutate:      func(c *Config) { c.Storage.Backend = "mongo" },
			errorString: "invalid data backend 'mongo'",
		},
		{
			name:        "empty sqlite path",
			mutate:      func(c *Config) { c.Storage.SQLitePath = "" },
			errorString: "SQLite database path cannot be empty",
		},
		{
			name:        "firestore without project",
			mutate:      func(c *Config) { c.Storage.Backend = BackendFirestore },
			errorString: "FIREBASE_PROJECT_ID is required when using firestore backend",
		},
		{
			name:        "static auth without token",
			mutate:      func(c *Config) { c.Auth.Mode = AuthStatic },
			errorString: "AUTH_STATIC_TOKEN is required",
		},
		{
			name:        "unknown auth mode",
			mutate:      func(c *Config) { c.Auth.Mode = "jwt" },
			errorString: "invalid auth mode 'jwt'",
		},
		{
			name:        "anchor not a monday",
			mutate:      func(c *Config) { c.Calendar.Anchor = "2025-07-29" },
			errorString: "must be a Monday",
		},
		{
			name:        "unparsable anchor",
			mutate:      func(c *Config) { c.Calendar.Anchor = "July 28" },
			errorString: "invalid BIWEEK_ANCHOR 'July 28'",
		},
		{
			name:        "unknown timezone",
			mutate:      func(c *Config) { c.Calendar.Timezone = "Mars/Olympus" },
			errorString: "invalid BIWEEK_TIMEZONE 'Mars/Olympus'",
		},
		{
			name:        "non-positive target",
			mutate:      func(c *Config) { c.Leaderboard.Target = "0" },
			errorString: "invalid LEADERBOARD_TARGET '0'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.App.Port = "abc"
	cfg.Auth.Mode = "jwt"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
	assert.Contains(t, err.Error(), "invalid auth mode")
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_PORT", "DATA_BACKEND", "SQLITE_DB_PATH", "AUTH_MODE", "BIWEEK_ANCHOR", "LEADERBOARD_TARGET", "HTTP_REQUEST_TIMEOUT_SECONDS", "SEED_ROSTER", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "commission.db", cfg.Storage.SQLitePath)
	assert.Equal(t, AuthNone, cfg.Auth.Mode)
	assert.Equal(t, "2025-07-28", cfg.Calendar.Anchor)
	assert.Equal(t, 15*time.Second, cfg.App.RequestTimeout())
	assert.False(t, cfg.App.SeedRoster)
	assert.Len(t, cfg.App.AllowedOrigins, 2)

	target, err := cfg.LeaderboardTarget()
	require.NoError(t, err)
	assert.Equal(t, "10000", target.String())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("SEED_ROSTER", "true")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "oops")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://dash.example.com, ,http://localhost:5173")
	t.Setenv("BIWEEK_TIMEZONE", "UTC")

	cfg := Load()
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.True(t, cfg.App.SeedRoster)
	assert.Equal(t, 15, cfg.App.RequestTimeoutSeconds, "unparsable ints fall back")
	assert.Equal(t, []string{"https://dash.example.com", "http://localhost:5173"}, cfg.App.AllowedOrigins)

	cal, err := cfg.BuildCalendar()
	require.NoError(t, err)
	assert.Equal(t, "2025-07-28", cal.Anchor.String())
}

func TestNewFirebaseApp_RejectsBadBase64(t *testing.T) {
	_, err := NewFirebaseApp(context.Background(), FirebaseConfig{ProjectID: "demo", CredentialsBase64: "not base64!"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode FIREBASE_CREDENTIALS_BASE64")
}
