package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	DB            DBConfig
	Execution     ExecutionConfig
	Export        ExportConfig
	ObjectStore   ObjectStoreConfig
	AI            AIConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
	CLI           CLIConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DBConfig struct {
	Driver          string
	DSN             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type ExecutionConfig struct {
	Workers     int
	MaxRetained int
}

type ExportConfig struct {
	Dir string
}

type ObjectStoreConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
	// LinkExpiry bounds presigned download links for stored exports.
	LinkExpiry time.Duration
}

type AIConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

type CLIConfig struct {
	PollInterval time.Duration
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLPANE_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLPANE_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "SQLPANE_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "SQLPANE_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "SQLPANE_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "SQLPANE_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "SQLPANE_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "SQLPANE_DB_DRIVER", &cfg.DB.Driver) },
		func() error { return applyString(lookup, "SQLPANE_DB_DSN", &cfg.DB.DSN) },
		func() error { return applyString(lookup, "SQLPANE_DB_HOST", &cfg.DB.Host) },
		func() error { return applyInt(lookup, "SQLPANE_DB_PORT", &cfg.DB.Port) },
		func() error { return applyString(lookup, "SQLPANE_DB_USER", &cfg.DB.User) },
		func() error { return applyString(lookup, "SQLPANE_DB_PASSWORD", &cfg.DB.Password) },
		func() error { return applyString(lookup, "SQLPANE_DB_NAME", &cfg.DB.Name) },
		func() error { return applyInt(lookup, "SQLPANE_DB_MAX_OPEN_CONNS", &cfg.DB.MaxOpenConns) },
		func() error { return applyInt(lookup, "SQLPANE_DB_MAX_IDLE_CONNS", &cfg.DB.MaxIdleConns) },
		func() error { return applyDuration(lookup, "SQLPANE_DB_CONN_MAX_IDLE_TIME", &cfg.DB.ConnMaxIdleTime) },
		func() error { return applyDuration(lookup, "SQLPANE_DB_CONN_MAX_LIFETIME", &cfg.DB.ConnMaxLifetime) },
		func() error { return applyInt(lookup, "SQLPANE_EXEC_WORKERS", &cfg.Execution.Workers) },
		func() error { return applyInt(lookup, "SQLPANE_EXEC_MAX_RETAINED", &cfg.Execution.MaxRetained) },
		func() error { return applyString(lookup, "SQLPANE_EXPORT_DIR", &cfg.Export.Dir) },
		func() error { return applyBool(lookup, "SQLPANE_OBJECTSTORE_ENABLED", &cfg.ObjectStore.Enabled) },
		func() error { return applyString(lookup, "SQLPANE_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "SQLPANE_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "SQLPANE_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "SQLPANE_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error {
			return applyString(lookup, "SQLPANE_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "SQLPANE_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "SQLPANE_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "SQLPANE_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error {
			return applyDuration(lookup, "SQLPANE_OBJECTSTORE_LINK_EXPIRY", &cfg.ObjectStore.LinkExpiry)
		},
		func() error { return applyBool(lookup, "SQLPANE_AI_ENABLED", &cfg.AI.Enabled) },
		func() error { return applyString(lookup, "SQLPANE_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "SQLPANE_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "SQLPANE_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyDuration(lookup, "SQLPANE_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyBool(lookup, "SQLPANE_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "SQLPANE_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "SQLPANE_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "SQLPANE_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
		func() error { return applyDuration(lookup, "SQLPANE_CLI_POLL_INTERVAL", &cfg.CLI.PollInterval) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate reports every invalid setting at once.
func (c Config) validate() error {
	var errs []error
	if c.Service.Name == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.Execution.Workers <= 0 {
		errs = append(errs, errors.New("SQLPANE_EXEC_WORKERS must be > 0"))
	}
	if c.Execution.MaxRetained <= 0 {
		errs = append(errs, errors.New("SQLPANE_EXEC_MAX_RETAINED must be > 0"))
	}
	if c.CLI.PollInterval <= 0 {
		errs = append(errs, errors.New("SQLPANE_CLI_POLL_INTERVAL must be > 0"))
	}
	if c.ObjectStore.Enabled && c.ObjectStore.LinkExpiry < 0 {
		errs = append(errs, errors.New("SQLPANE_OBJECTSTORE_LINK_EXPIRY must not be negative"))
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		errs = append(errs, errors.New("SQLPANE_AI_API_KEY is required when SQLPANE_AI_ENABLED is set"))
	}
	return errors.Join(errs...)
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlpane-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		DB: DBConfig{
			Driver:          "postgres",
			Port:            5432,
			Name:            "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Execution: ExecutionConfig{
			Workers:     8,
			MaxRetained: 256,
		},
		Export: ExportConfig{
			Dir: ".",
		},
		ObjectStore: ObjectStoreConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "sqlpane-exports",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
			LinkExpiry:       15 * time.Minute,
		},
		AI: AIConfig{
			Enabled: false,
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
		CLI: CLIConfig{
			PollInterval: 50 * time.Millisecond,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Execution.Workers = 2
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
