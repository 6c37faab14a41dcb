package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. ATELIER_AUTH_ACCESS_SECRET.
const EnvPrefix = "ATELIER"

type AppCfg struct {
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
	Commit  string `mapstructure:"commit"`
}

type ServerCfg struct {
	Addr                   string `mapstructure:"addr"`
	GRPCAddr               string `mapstructure:"grpc_addr"`
	ReadTimeoutSeconds     int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds     int    `mapstructure:"idle_timeout_seconds"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

type DatabaseCfg struct {
	Driver                 string `mapstructure:"driver"`
	DSN                    string `mapstructure:"dsn"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

type AuthCfg struct {
	AccessSecret     string `mapstructure:"access_secret"`
	RefreshSecret    string `mapstructure:"refresh_secret"`
	Issuer           string `mapstructure:"issuer"`
	MaxLoginAttempts int    `mapstructure:"max_login_attempts"`
	AdminUserTypeID  int64  `mapstructure:"admin_user_type_id"`
}

type HTTPCfg struct {
	CORSOrigins        []string `mapstructure:"cors_origins"`
	LoginRatePerSecond float64  `mapstructure:"login_rate_per_second"`
	LoginRateBurst     int      `mapstructure:"login_rate_burst"`
	MaxBodyBytes       int64    `mapstructure:"max_body_bytes"`
}

type LogCfg struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type Config struct {
	App      AppCfg      `mapstructure:"app"`
	Server   ServerCfg   `mapstructure:"server"`
	Database DatabaseCfg `mapstructure:"database"`
	Auth     AuthCfg     `mapstructure:"auth"`
	HTTP     HTTPCfg     `mapstructure:"http"`
	Log      LogCfg      `mapstructure:"log"`

	// Derived
	ReadTimeout     time.Duration `mapstructure:"-"`
	WriteTimeout    time.Duration `mapstructure:"-"`
	IdleTimeout     time.Duration `mapstructure:"-"`
	ShutdownTimeout time.Duration `mapstructure:"-"`
	ConnMaxLifetime time.Duration `mapstructure:"-"`
}

// Production reports whether cookies must be marked Secure.
func (c *Config) Production() bool {
	return strings.EqualFold(c.App.Env, "production")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.commit", "unknown")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.idle_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime_minutes", 30)

	v.SetDefault("auth.access_secret", "")
	v.SetDefault("auth.refresh_secret", "")
	v.SetDefault("auth.issuer", "atelier")
	v.SetDefault("auth.max_login_attempts", 10)
	v.SetDefault("auth.admin_user_type_id", 1)

	v.SetDefault("http.cors_origins", []string{})
	v.SetDefault("http.login_rate_per_second", 5.0)
	v.SetDefault("http.login_rate_burst", 10)
	v.SetDefault("http.max_body_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)
}

// Load reads configuration from defaults, an optional YAML file, a .env file and the
// environment, in increasing order of precedence. An empty path falls back to
// ATELIER_CONFIG.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// Comma separated origins from the environment arrive as a single element.
	if len(cfg.HTTP.CORSOrigins) == 1 && strings.Contains(cfg.HTTP.CORSOrigins[0], ",") {
		cfg.HTTP.CORSOrigins = splitList(cfg.HTTP.CORSOrigins[0])
	}

	cfg.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	cfg.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	cfg.IdleTimeout = time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second
	cfg.ShutdownTimeout = time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	cfg.ConnMaxLifetime = time.Duration(cfg.Database.ConnMaxLifetimeMinutes) * time.Minute
	return &cfg, nil
}

// Validate fails when a setting required at startup is missing or inconsistent.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Auth.AccessSecret) == "" {
		missing = append(missing, EnvPrefix+"_AUTH_ACCESS_SECRET")
	}
	if strings.TrimSpace(c.Auth.RefreshSecret) == "" {
		missing = append(missing, EnvPrefix+"_AUTH_REFRESH_SECRET")
	}
	switch c.Database.Driver {
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			missing = append(missing, EnvPrefix+"_DATABASE_DSN")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}
	if c.Auth.MaxLoginAttempts <= 0 {
		return errors.New("config: auth.max_login_attempts must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
