package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// DatabaseOptions holds PostgreSQL connection settings
type DatabaseOptions struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"estatebooks"`
	Password        string        `env:"DB_PASSWORD" envDefault:"dev"`
	Name            string        `env:"DB_NAME" envDefault:"estatebooks"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// TenantOptions controls how the active tenant is resolved and persisted
type TenantOptions struct {
	CookieName   string        `env:"TENANT_COOKIE_NAME" envDefault:"selectedTenantId"`
	CookieMaxAge time.Duration `env:"TENANT_COOKIE_MAX_AGE" envDefault:"720h"`
	QueryParam   string        `env:"TENANT_QUERY_PARAM" envDefault:"tenant"`
	// Only consulted when the demo_tenant_fallback flag is enabled.
	DefaultTenantID string `env:"DEFAULT_TENANT_ID" envDefault:"00000000-0000-0000-0000-000000000001"`
	// Session variable read by the RLS policies.
	RLSSetting string `env:"RLS_SETTING" envDefault:"app.current_tenant"`
}

// GridOptions bounds server-rendered grid pages
type GridOptions struct {
	DefaultPageSize int `env:"GRID_DEFAULT_PAGE_SIZE" envDefault:"25"`
	MaxPageSize     int `env:"GRID_MAX_PAGE_SIZE" envDefault:"500"`
}

// Config holds the application configuration
type Config struct {
	Environment        string        `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort         int           `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	RedisURL           string        `env:"REDIS_URL"`
	JWTSecret          string        `env:"JWT_SECRET"`
	JWTIssuer          string        `env:"JWT_ISSUER" envDefault:"estatebooks"`
	SessionDuration    time.Duration `env:"SESSION_DURATION" envDefault:"24h"`
	SessionCookieName  string        `env:"SESSION_COOKIE_NAME" envDefault:"session"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
	RateLimitRequests  int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	OptionsCacheTTL    time.Duration `env:"OPTIONS_CACHE_TTL" envDefault:"5m"`
	RentCategory       string        `env:"RENT_CATEGORY" envDefault:"Miete"`
	CityPayers         []string      `env:"RENT_CITY_PAYERS" envSeparator:"," envDefault:"Stadt Osnabrueck,Bundesagentur fuer Arbeit-Service-Haus"`

	// Description keyword to property name, e.g. "Iburger:Iburgerstrasse 107".
	PropertyHints map[string]string `env:"RENT_PROPERTY_HINTS" envSeparator:"," envKeyValSeparator:":"`

	Database DatabaseOptions
	Tenant   TenantOptions
	Grid     GridOptions
}

// Load reads configuration from .env files (when present) and environment variables
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", ".env.local"}
	}
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid SERVER_PORT: %d", c.ServerPort))
	}
	if c.Grid.DefaultPageSize <= 0 {
		errs = append(errs, fmt.Errorf("GRID_DEFAULT_PAGE_SIZE must be positive, got %d", c.Grid.DefaultPageSize))
	}
	if c.Grid.MaxPageSize < c.Grid.DefaultPageSize {
		errs = append(errs, fmt.Errorf("GRID_MAX_PAGE_SIZE (%d) must be >= GRID_DEFAULT_PAGE_SIZE (%d)", c.Grid.MaxPageSize, c.Grid.DefaultPageSize))
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimitRequests))
	}
	if c.Tenant.CookieName == "" {
		errs = append(errs, errors.New("TENANT_COOKIE_NAME must not be empty"))
	}
	if c.Tenant.DefaultTenantID != "" {
		if _, err := uuid.Parse(c.Tenant.DefaultTenantID); err != nil {
			errs = append(errs, fmt.Errorf("invalid DEFAULT_TENANT_ID: %w", err))
		}
	}
	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in the production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ConnectionString renders a lib/pq DSN
func (d DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}
