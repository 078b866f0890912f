package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string   `mapstructure:"PORT"`
	Env               string   `mapstructure:"ENV"`
	AuthMode          string   `mapstructure:"AUTH_MODE"`
	DatabaseURL       string   `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer        string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL       string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience      string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey    string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins       []string `mapstructure:"CORS_ORIGINS"`
	DocsEncryptionKey string   `mapstructure:"DOCS_ENCRYPTION_KEY"`
	FileStorageDir    string   `mapstructure:"FILE_STORAGE_DIR"`
	MaxUploadSize     string   `mapstructure:"MAX_UPLOAD_SIZE"`
	RateLimitRPS      float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int      `mapstructure:"RATE_LIMIT_BURST"`
	TLSEnabled        bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile       string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile        string   `mapstructure:"TLS_KEY_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("FILE_STORAGE_DIR", "./data/files")
	v.SetDefault("MAX_UPLOAD_SIZE", "50M")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("DOCS_ENCRYPTION_KEY")
	v.BindEnv("FILE_STORAGE_DIR")
	v.BindEnv("MAX_UPLOAD_SIZE")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("TLS_ENABLED")
	v.BindEnv("TLS_CERT_FILE")
	v.BindEnv("TLS_KEY_FILE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_ISSUER for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// EncryptionKey decodes DOCS_ENCRYPTION_KEY into raw bytes. Call Validate
// first; this returns an error for a malformed key rather than panicking.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.DocsEncryptionKey == "" {
		return nil, fmt.Errorf("DOCS_ENCRYPTION_KEY is not set")
	}
	key, err := hex.DecodeString(c.DocsEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("DOCS_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("DOCS_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise, the mode is inferred:
//   - ENV=development → "development" (no auth, all requests get admin)
//   - AUTH_JWKS_URL set → "jwks" (external identity provider)
//   - Otherwise         → "hmac" (shared-secret signing key)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	if c.AuthJWKSURL != "" {
		return "jwks"
	}
	return "hmac"
}

// Validate checks that the configuration is safe to run. Outside development
// an auth source must be configured so that real JWT authentication is
// enforced, and DOCS_ENCRYPTION_KEY is required in production and must be a
// valid 64-character hex string (32 bytes when decoded).
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	switch mode {
	case "development":
	case "jwks":
		if c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_JWKS_URL must be set when AUTH_MODE is \"jwks\" (current ENV=%q)", c.Env)
		}
	case "hmac":
		if c.AuthSigningKey == "" {
			return fmt.Errorf(
				"AUTH_SIGNING_KEY must be set when AUTH_MODE is \"hmac\" (current ENV=%q). "+
					"Refusing to start without authentication configuration", c.Env)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\", \"hmac\", or \"jwks\", got %q", mode)
	}

	if c.IsProduction() && c.DocsEncryptionKey == "" {
		return fmt.Errorf("DOCS_ENCRYPTION_KEY is required in production")
	}
	if c.DocsEncryptionKey != "" {
		if _, err := c.EncryptionKey(); err != nil {
			return err
		}
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
