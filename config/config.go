// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/calendar"
)

const (
	BackendSQLite    = "sqlite"
	BackendMemory    = "memory"
	BackendFirestore = "firestore"

	AuthNone     = "none"
	AuthStatic   = "static"
	AuthFirebase = "firebase"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Storage     StorageConfig
	Firebase    FirebaseConfig
	Auth        AuthConfig
	Calendar    CalendarConfig
	Leaderboard LeaderboardConfig
	Rules       RulesConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Host                  string
	Port                  string
	RequestTimeoutSeconds int
	AllowedOrigins        []string
	SeedRoster            bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// StorageConfig selects the roster and ledger backend.
type StorageConfig struct {
	Backend    string
	SQLitePath string
}

// FirebaseConfig holds Admin SDK credentials. Base64 credentials win over
// the credentials file; with neither, application default credentials
// (or the emulator) are used.
type FirebaseConfig struct {
	ProjectID         string
	CredentialsFile   string
	CredentialsBase64 string
}

// AuthConfig selects how API callers are identified.
type AuthConfig struct {
	Mode        string
	StaticToken string
}

// CalendarConfig fixes the bi-week epoch.
type CalendarConfig struct {
	Anchor   string
	Timezone string
}

type LeaderboardConfig struct {
	Target string
}

// RulesConfig optionally points at a JSON commission rule file.
type RulesConfig struct {
	File string
}

// Load reads configuration from a .env file (if present) and environment
// variables, applying defaults where possible.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		App: AppConfig{
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 15),
			AllowedOrigins:        getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
			SeedRoster:            getEnvAsBool("SEED_ROSTER", false),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Backend:    getEnv("DATA_BACKEND", BackendSQLite),
			SQLitePath: getEnv("SQLITE_DB_PATH", "commission.db"),
		},
		Firebase: FirebaseConfig{
			ProjectID:         os.Getenv("FIREBASE_PROJECT_ID"),
			CredentialsFile:   os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			CredentialsBase64: os.Getenv("FIREBASE_CREDENTIALS_BASE64"),
		},
		Auth: AuthConfig{
			Mode:        getEnv("AUTH_MODE", AuthNone),
			StaticToken: os.Getenv("AUTH_STATIC_TOKEN"),
		},
		Calendar: CalendarConfig{
			Anchor:   getEnv("BIWEEK_ANCHOR", calendar.DefaultAnchor.String()),
			Timezone: getEnv("BIWEEK_TIMEZONE", "UTC"),
		},
		Leaderboard: LeaderboardConfig{
			Target: getEnv("LEADERBOARD_TARGET", "10000"),
		},
		Rules: RulesConfig{
			File: os.Getenv("RULES_FILE"),
		},
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.App.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.App.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendFirestore:
		if c.Firebase.ProjectID == "" {
			problems = append(problems, "FIREBASE_PROJECT_ID is required when using firestore backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s %s]",
			c.Storage.Backend, BackendSQLite, BackendMemory, BackendFirestore))
	}

	switch c.Auth.Mode {
	case AuthNone:
	case AuthStatic:
		if c.Auth.StaticToken == "" {
			problems = append(problems, "AUTH_STATIC_TOKEN is required when AUTH_MODE=static")
		}
	case AuthFirebase:
		if c.Firebase.ProjectID == "" {
			problems = append(problems, "FIREBASE_PROJECT_ID is required when AUTH_MODE=firebase")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid auth mode '%s': must be one of [%s %s %s]",
			c.Auth.Mode, AuthNone, AuthStatic, AuthFirebase))
	}

	if _, err := c.BuildCalendar(); err != nil {
		problems = append(problems, err.Error())
	}

	if _, err := c.LeaderboardTarget(); err != nil {
		problems = append(problems, err.Error())
	}

	if c.App.RequestTimeoutSeconds < 0 {
		problems = append(problems, fmt.Sprintf("invalid request timeout %d: must not be negative", c.App.RequestTimeoutSeconds))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// BuildCalendar returns the bi-week calendar for the configured anchor and
// time zone. The anchor must be a Monday.
func (c *Config) BuildCalendar() (*calendar.Calendar, error) {
	anchor, err := calendar.ParseDate(c.Calendar.Anchor)
	if err != nil {
		return nil, fmt.Errorf("invalid BIWEEK_ANCHOR '%s': %v", c.Calendar.Anchor, err)
	}
	if anchor.Weekday() != time.Monday {
		return nil, fmt.Errorf("invalid BIWEEK_ANCHOR '%s': must be a Monday", c.Calendar.Anchor)
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BIWEEK_TIMEZONE '%s': %v", c.Calendar.Timezone, err)
	}
	return calendar.New(anchor, loc), nil
}

// LeaderboardTarget parses the per-employee revenue goal.
func (c *Config) LeaderboardTarget() (decimal.Decimal, error) {
	target, err := decimal.NewFromString(c.Leaderboard.Target)
	if err != nil || !target.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid LEADERBOARD_TARGET '%s': must be a positive number", c.Leaderboard.Target)
	}
	return target, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
