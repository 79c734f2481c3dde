package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Identity providers.
const (
	AuthProviderGoTrue = "gotrue"
	AuthProviderLocal  = "local"
)

// Storage strategies.
const (
	StorageDirect = "direct"
	StorageSigned = "signed"
)

// Config aggregates runtime configuration for the mediadrive API.
type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Metrics   MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxUploadBytes caps a single multipart upload.
	MaxUploadBytes int64

	// TrustedProxies may set X-Forwarded-For. Empty trusts none and the
	// client IP is the peer address.
	TrustedProxies []string
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details. Only the local
// identity provider needs it.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// StorageConfig carries object store connection and bucket information.
type StorageConfig struct {
	Strategy               string
	Endpoint               string
	R2AccountID            string
	Region                 string
	Bucket                 string
	AccessKeyID            string
	SecretAccessKey        string
	UseSSL                 bool
	PublicBaseURL          string
	UploadURLTTL           time.Duration
	ReadURLTTL             time.Duration
	PurgeOnAccountDeletion bool
}

// ResolvedEndpoint returns the endpoint URL, deriving the Cloudflare R2 one
// from the account id when no explicit endpoint is set.
func (s StorageConfig) ResolvedEndpoint() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	if s.R2AccountID != "" {
		return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.R2AccountID)
	}
	return ""
}

// AuthConfig groups identity provider settings.
type AuthConfig struct {
	Provider string

	// hosted GoTrue-compatible service
	URL         string
	AnonKey     string
	HTTPTimeout time.Duration

	// RPCDSN, when set, invokes privileged procedures over a direct
	// PostgreSQL connection instead of the REST endpoint.
	RPCDSN string

	// local provider
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	BcryptCost         int
}

// SessionConfig groups browser session settings.
type SessionConfig struct {
	// IdleTTL applies to workspaces holding a session, AnonymousTTL to the rest.
	IdleTTL       time.Duration
	AnonymousTTL  time.Duration
	MaxWorkspaces int
	CookieSecure  bool
	CookieDomain  string
}

// RateLimitConfig throttles the sign-in and sign-up endpoints per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	TTL               time.Duration
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:           getString("MEDIADRIVE_API_HOST", "0.0.0.0"),
			Port:           getInt("MEDIADRIVE_API_PORT", 8080),
			ReadTimeout:    getDuration("MEDIADRIVE_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDuration("MEDIADRIVE_API_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:    getDuration("MEDIADRIVE_API_IDLE_TIMEOUT", 60*time.Second),
			MaxUploadBytes: int64(getInt("MEDIADRIVE_MAX_UPLOAD_MB", 10)) << 20,
			TrustedProxies: getList("TRUSTED_PROXIES", nil),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "mediadrive_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "mediadrive"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		Storage: StorageConfig{
			Strategy:               strings.ToLower(getString("STORAGE_STRATEGY", StorageDirect)),
			Endpoint:               getString("STORAGE_ENDPOINT", ""),
			R2AccountID:            getString("R2_ACCOUNT_ID", ""),
			Region:                 getString("STORAGE_REGION", "auto"),
			Bucket:                 getString("STORAGE_BUCKET", ""),
			AccessKeyID:            getString("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey:        getString("STORAGE_SECRET_ACCESS_KEY", ""),
			UseSSL:                 getBool("STORAGE_USE_SSL", true),
			PublicBaseURL:          strings.TrimRight(getString("STORAGE_PUBLIC_URL", ""), "/"),
			UploadURLTTL:           getDuration("STORAGE_UPLOAD_URL_TTL", 5*time.Minute),
			ReadURLTTL:             getDuration("STORAGE_READ_URL_TTL", time.Hour),
			PurgeOnAccountDeletion: getBool("ACCOUNT_PURGE_MEDIA", false),
		},
		Auth: loadAuthConfig(),
		Session: SessionConfig{
			IdleTTL:       getDuration("SESSION_IDLE_TTL", 24*time.Hour),
			AnonymousTTL:  getDuration("SESSION_ANONYMOUS_TTL", 15*time.Minute),
			MaxWorkspaces: getInt("SESSION_MAX_WORKSPACES", 10000),
			CookieSecure:  getBool("SESSION_COOKIE_SECURE", false),
			CookieDomain:  getString("SESSION_COOKIE_DOMAIN", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getFloat("AUTH_RATE_LIMIT_RPS", 1),
			Burst:             getInt("AUTH_RATE_LIMIT_BURST", 5),
			TTL:               getDuration("AUTH_RATE_LIMIT_TTL", 3*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("MEDIADRIVE_METRICS_PATH", "/metrics"),
		},
	}

	switch cfg.Storage.Strategy {
	case StorageDirect, StorageSigned:
	default:
		return Config{}, fmt.Errorf("unknown storage strategy %q", cfg.Storage.Strategy)
	}
	switch cfg.Auth.Provider {
	case AuthProviderGoTrue, AuthProviderLocal:
	default:
		return Config{}, fmt.Errorf("unknown auth provider %q", cfg.Auth.Provider)
	}

	return cfg, nil
}

// Missing lists the required settings that are absent. Startup reports them
// instead of refusing to run.
func (c Config) Missing() []string {
	var missing []string
	if c.Storage.ResolvedEndpoint() == "" {
		missing = append(missing, "STORAGE_ENDPOINT or R2_ACCOUNT_ID")
	}
	if c.Storage.Bucket == "" {
		missing = append(missing, "STORAGE_BUCKET")
	}
	if c.Storage.AccessKeyID == "" {
		missing = append(missing, "STORAGE_ACCESS_KEY_ID")
	}
	if c.Storage.SecretAccessKey == "" {
		missing = append(missing, "STORAGE_SECRET_ACCESS_KEY")
	}
	if c.Storage.PublicBaseURL == "" {
		missing = append(missing, "STORAGE_PUBLIC_URL")
	}

	switch c.Auth.Provider {
	case AuthProviderGoTrue:
		if c.Auth.URL == "" {
			missing = append(missing, "AUTH_URL")
		}
		if c.Auth.AnonKey == "" {
			missing = append(missing, "AUTH_ANON_KEY")
		}
	case AuthProviderLocal:
		if c.Auth.AccessTokenSecret == "" {
			missing = append(missing, "MEDIADRIVE_JWT_SECRET")
		}
	}
	return missing
}

// StorageReady reports whether the object store can be reached at all.
// A missing public URL only downgrades URLs to signed read links.
func (c Config) StorageReady() bool {
	s := c.Storage
	return s.ResolvedEndpoint() != "" && s.Bucket != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
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

func loadAuthConfig() AuthConfig {
	cost := getInt("MEDIADRIVE_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		Provider:           strings.ToLower(getString("AUTH_PROVIDER", AuthProviderGoTrue)),
		URL:                strings.TrimRight(getString("AUTH_URL", ""), "/"),
		AnonKey:            getString("AUTH_ANON_KEY", ""),
		RPCDSN:             getString("AUTH_RPC_DSN", ""),
		HTTPTimeout:        getDuration("AUTH_HTTP_TIMEOUT", 10*time.Second),
		AccessTokenSecret:  getString("MEDIADRIVE_JWT_SECRET", ""),
		RefreshTokenSecret: getString("MEDIADRIVE_JWT_REFRESH_SECRET", "change-me-to-a-64-byte-secret"),
		AccessTokenTTL:     getDuration("MEDIADRIVE_AUTH_ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:    getDuration("MEDIADRIVE_AUTH_REFRESH_TOKEN_TTL", 720*time.Hour),
		BcryptCost:         cost,
	}
}
