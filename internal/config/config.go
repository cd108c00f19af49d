package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName         = "CardLedger"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultCardCacheTTL    = 5 * time.Minute
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultLoginAttempts   = 5
	defaultEventsStream    = "cardledger:events"
	devJWTSecret           = "dev-access-secret-do-not-use-in-prod"
	devRefreshSecret       = "dev-refresh-secret-do-not-use-in-prod"
	configFileEnvVar       = "CONFIG_FILE"
	minSecretLen           = 32
)

// SMTP holds outgoing mail settings. Mail is disabled when Addr is empty.
type SMTP struct {
	Addr     string
	From     string
	User     string
	Password string
}

// BootstrapAdmin describes an administrator created at startup when Username is set.
type BootstrapAdmin struct {
	Username string
	Email    string
	Password string
}

// Config captures application runtime configuration.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	CardCacheTTL   time.Duration

	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	LoginAttempts   int

	EncryptionKey  string
	FingerprintKey string

	SMTP           SMTP
	EventsStream   string
	BootstrapAdmin BootstrapAdmin
}

// Load reads configuration from the environment, optionally layered over the
// YAML file named by CONFIG_FILE. Environment variables win.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(configFileEnvVar); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg := Config{
		AppName:        v.GetString("app_name"),
		Env:            strings.ToLower(v.GetString("app_env")),
		Port:           v.GetString("port"),
		LogLevel:       strings.ToLower(v.GetString("log_level")),
		DatabaseURL:    v.GetString("database_url"),
		RedisURL:       v.GetString("redis_url"),
		JWTSecret:      v.GetString("jwt_secret"),
		RefreshSecret:  v.GetString("refresh_secret"),
		LoginAttempts:  v.GetInt("login_attempts"),
		EncryptionKey:  v.GetString("encryption_key"),
		FingerprintKey: v.GetString("fingerprint_key"),
		EventsStream:   v.GetString("events_stream"),
		SMTP: SMTP{
			Addr:     v.GetString("smtp.addr"),
			From:     v.GetString("smtp.from"),
			User:     v.GetString("smtp.user"),
			Password: v.GetString("smtp.password"),
		},
		BootstrapAdmin: BootstrapAdmin{
			Username: v.GetString("bootstrap_admin.username"),
			Email:    v.GetString("bootstrap_admin.email"),
			Password: v.GetString("bootstrap_admin.password"),
		},
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"shutdown_timeout", &cfg.ShutdownPeriod},
		{"idempotency_ttl", &cfg.IdempotencyTTL},
		{"card_cache_ttl", &cfg.CardCacheTTL},
		{"access_token_ttl", &cfg.AccessTokenTTL},
		{"refresh_token_ttl", &cfg.RefreshTokenTTL},
	}
	for _, d := range durations {
		if *d.dst, err = duration(v, d.key); err != nil {
			return Config{}, err
		}
	}

	if IsDev(cfg.Env) {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devJWTSecret
		}
		if cfg.RefreshSecret == "" {
			cfg.RefreshSecret = devRefreshSecret
		}
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.JWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the settings required outside development.
func (c Config) Validate() error {
	var errs []error
	if c.LoginAttempts <= 0 {
		errs = append(errs, fmt.Errorf("LOGIN_ATTEMPTS must be positive"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("token TTLs must be positive"))
	}
	if !IsDev(c.Env) {
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL must be set"))
		}
		if c.RedisURL == "" {
			errs = append(errs, fmt.Errorf("REDIS_URL must be set"))
		}
		if len(c.JWTSecret) < minSecretLen {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLen))
		}
		if c.EncryptionKey == "" {
			errs = append(errs, fmt.Errorf("ENCRYPTION_KEY must be set"))
		}
	}
	return errors.Join(errs...)
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether env names a local development environment.
func IsDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", defaultAppName)
	v.SetDefault("app_env", defaultAppEnv)
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("shutdown_timeout", defaultShutdownDelay.String())
	v.SetDefault("idempotency_ttl", defaultIdempotencyTTL.String())
	v.SetDefault("card_cache_ttl", defaultCardCacheTTL.String())
	v.SetDefault("access_token_ttl", defaultAccessTokenTTL.String())
	v.SetDefault("refresh_token_ttl", defaultRefreshTokenTTL.String())
	v.SetDefault("login_attempts", defaultLoginAttempts)
	v.SetDefault("events_stream", defaultEventsStream)
	// Registered so AutomaticEnv resolves them without a config file.
	for _, key := range []string{
		"database_url", "redis_url", "jwt_secret", "refresh_secret", "encryption_key", "fingerprint_key",
		"smtp.addr", "smtp.from", "smtp.user", "smtp.password",
		"bootstrap_admin.username", "bootstrap_admin.email", "bootstrap_admin.password",
		"shutdown_timeout_seconds", "idempotency_ttl_seconds",
	} {
		v.SetDefault(key, "")
	}
}

// duration reads key as a Go duration, or key_seconds as whole seconds when set.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	if raw := v.GetString(key + "_seconds"); raw != "" {
		var seconds int
		if _, err := fmt.Sscanf(raw, "%d", &seconds); err != nil {
			return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(key)+"_SECONDS", err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
	}
	return d, nil
}
