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

// Config holds the configuration for the application. It is loaded once at
// startup and passed by pointer to every component; nothing mutates it after
// LoadConfig returns.
type Config struct {
	App struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"app"`
	Server struct {
		Addr            string        `mapstructure:"addr"`
		BodyLimit       string        `mapstructure:"body_limit"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	DB struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"database"`
	CORS struct {
		Origins []string `mapstructure:"-"`
		Raw     string   `mapstructure:"origins"`
	} `mapstructure:"cors"`
	Render struct {
		Timeout    time.Duration `mapstructure:"timeout"`
		ChromePath string        `mapstructure:"chrome_path"`
		NoSandbox  bool          `mapstructure:"no_sandbox"`
	} `mapstructure:"render"`
	Log struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"log"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// ErrMissingDatabaseURL is returned when no connection string is configured.
var ErrMissingDatabaseURL = errors.New("database url is not configured (set DATABASE_URL)")

// LoadConfig loads the configuration from an optional .env file, an optional
// config.yaml and the environment, in increasing order of precedence.
//
// envFile may be empty, in which case ./.env is tried. A missing .env file is
// not an error: in deployed environments variables are injected directly.
func LoadConfig(envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// legacy variable names used by existing deployments
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("cors.origins", "CORS_ORIGIN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// viper skips empty variables, so a blank CORS_ORIGIN would fall back to
	// the wildcard default
	if raw, ok := os.LookupEnv("CORS_ORIGIN"); ok && strings.TrimSpace(raw) == "" {
		config.CORS.Raw = raw
	}
	config.CORS.Origins = ParseOrigins(config.CORS.Raw)
	config.DB.URL = NormalizeDatabaseURL(config.DB.URL)

	if strings.TrimSpace(config.DB.URL) == "" {
		return nil, ErrMissingDatabaseURL
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "n8n Node Ingestion API")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.body_limit", "10M")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("database.url", "")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("render.timeout", 30*time.Second)
	v.SetDefault("render.chrome_path", "")
	v.SetDefault("render.no_sandbox", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.hostnames", []string{})
}

func loadDotEnv(envFile string) error {
	path := envFile
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if envFile != "" {
			return fmt.Errorf("env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ParseOrigins turns the CORS_ORIGIN value into an allow-list. "*" allows
// every origin; otherwise the value is split on commas. A blank value yields
// an empty list, which allows no cross-origin requests.
func ParseOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "*" {
		return []string{"*"}
	}
	origins := []string{}
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// NormalizeDatabaseURL strips a SQLAlchemy-style driver suffix
// ("postgresql+asyncpg://") so the same DATABASE_URL works with pgx.
func NormalizeDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	if base, _, hasDriver := strings.Cut(scheme, "+"); hasDriver {
		scheme = base
	}
	return scheme + "://" + rest
}

// AllowsAnyOrigin reports whether the CORS policy is the wildcard policy.
func (c *Config) AllowsAnyOrigin() bool {
	return len(c.CORS.Origins) == 1 && c.CORS.Origins[0] == "*"
}
