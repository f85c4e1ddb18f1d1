package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("sqlpane-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.Port != 5432 || cfg.DB.Name != "postgres" {
		t.Fatalf("DB = %+v", cfg.DB)
	}
	if cfg.DB.MaxOpenConns != 10 {
		t.Fatalf("DB.MaxOpenConns = %d", cfg.DB.MaxOpenConns)
	}
	if cfg.Execution.Workers != 8 || cfg.Execution.MaxRetained != 256 {
		t.Fatalf("Execution = %+v", cfg.Execution)
	}
	if cfg.ObjectStore.Enabled {
		t.Fatal("ObjectStore.Enabled should default to false")
	}
	if cfg.AI.Enabled {
		t.Fatal("AI.Enabled should default to false")
	}
	if cfg.CLI.PollInterval != 50*time.Millisecond {
		t.Fatalf("CLI.PollInterval = %s", cfg.CLI.PollInterval)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"SQLPANE_PROFILE": "prod"})
	cfg, err := Load("sqlpane-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SQLPANE_PROFILE":                       "test",
		"SQLPANE_HTTP_ADDR":                     ":9999",
		"SQLPANE_HTTP_READ_TIMEOUT":             "2s",
		"SQLPANE_HTTP_WRITE_TIMEOUT":            "3s",
		"SQLPANE_LOG_LEVEL":                     "error",
		"SQLPANE_AUTH_REQUIRED":                 "true",
		"SQLPANE_AUTH_STATIC_KEYS":              "k1:alice:query_runner",
		"SQLPANE_SERVICE_NAME":                  "sqlpane-custom",
		"SQLPANE_DB_DRIVER":                     "duckdb",
		"SQLPANE_DB_DSN":                        "/tmp/warehouse.duckdb",
		"SQLPANE_DB_HOST":                       "db.internal",
		"SQLPANE_DB_PORT":                       "6543",
		"SQLPANE_DB_USER":                       "reporter",
		"SQLPANE_DB_PASSWORD":                   "hunter2",
		"SQLPANE_DB_NAME":                       "analytics",
		"SQLPANE_DB_MAX_OPEN_CONNS":             "42",
		"SQLPANE_DB_MAX_IDLE_CONNS":             "17",
		"SQLPANE_EXEC_WORKERS":                  "3",
		"SQLPANE_EXEC_MAX_RETAINED":             "9",
		"SQLPANE_EXPORT_DIR":                    "/var/exports",
		"SQLPANE_OBJECTSTORE_ENABLED":           "true",
		"SQLPANE_OBJECTSTORE_ENDPOINT":          "s3.example.com",
		"SQLPANE_OBJECTSTORE_BUCKET":            "exports-prod",
		"SQLPANE_OBJECTSTORE_REGION":            "us-west-2",
		"SQLPANE_OBJECTSTORE_ACCESS_KEY":        "abc",
		"SQLPANE_OBJECTSTORE_SECRET_KEY":        "def",
		"SQLPANE_OBJECTSTORE_USE_SSL":           "true",
		"SQLPANE_OBJECTSTORE_PREFIX":            "team-a",
		"SQLPANE_OBJECTSTORE_AUTO_CREATE_BUCKET": "false",
		"SQLPANE_OBJECTSTORE_LINK_EXPIRY":       "1h",
		"SQLPANE_AI_ENABLED":                    "true",
		"SQLPANE_AI_BASE_URL":                   "https://api.example.com/v1/",
		"SQLPANE_AI_API_KEY":                    "secret-key",
		"SQLPANE_AI_MODEL":                      "sql-model",
		"SQLPANE_AI_TIMEOUT":                    "21s",
		"SQLPANE_CLI_POLL_INTERVAL":             "120ms",
	})
	cfg, err := Load("sqlpane-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "sqlpane-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second || cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP timeouts = %s/%s", cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required || cfg.Auth.StaticKeys != "k1:alice:query_runner" {
		t.Fatalf("Auth = %+v", cfg.Auth)
	}
	if cfg.DB.Driver != "duckdb" || cfg.DB.DSN != "/tmp/warehouse.duckdb" {
		t.Fatalf("DB driver/dsn = %q/%q", cfg.DB.Driver, cfg.DB.DSN)
	}
	if cfg.DB.Host != "db.internal" || cfg.DB.Port != 6543 || cfg.DB.User != "reporter" || cfg.DB.Password != "hunter2" || cfg.DB.Name != "analytics" {
		t.Fatalf("DB server = %+v", cfg.DB)
	}
	if cfg.DB.MaxOpenConns != 42 || cfg.DB.MaxIdleConns != 17 {
		t.Fatalf("DB pool = %d/%d", cfg.DB.MaxOpenConns, cfg.DB.MaxIdleConns)
	}
	if cfg.Execution.Workers != 3 || cfg.Execution.MaxRetained != 9 {
		t.Fatalf("Execution = %+v", cfg.Execution)
	}
	if cfg.Export.Dir != "/var/exports" {
		t.Fatalf("Export.Dir = %q", cfg.Export.Dir)
	}
	if !cfg.ObjectStore.Enabled || cfg.ObjectStore.Endpoint != "s3.example.com" || cfg.ObjectStore.Bucket != "exports-prod" {
		t.Fatalf("ObjectStore = %+v", cfg.ObjectStore)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL = false, want true")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket = true, want false")
	}
	if cfg.ObjectStore.Prefix != "team-a" || cfg.ObjectStore.LinkExpiry != time.Hour {
		t.Fatalf("ObjectStore prefix/link expiry = %q/%s", cfg.ObjectStore.Prefix, cfg.ObjectStore.LinkExpiry)
	}
	if !cfg.AI.Enabled || cfg.AI.APIKey != "secret-key" || cfg.AI.Model != "sql-model" {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.CLI.PollInterval != 120*time.Millisecond {
		t.Fatalf("CLI.PollInterval = %s", cfg.CLI.PollInterval)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"SQLPANE_PROFILE": "oops"},
		{"SQLPANE_HTTP_READ_TIMEOUT": "NaN"},
		{"SQLPANE_DB_MAX_OPEN_CONNS": "oops"},
		{"SQLPANE_DB_PORT": "fivefourthreetwo"},
		{"SQLPANE_EXEC_WORKERS": "0"},
		{"SQLPANE_CLI_POLL_INTERVAL": "-1s"},
		{"SQLPANE_OBJECTSTORE_ENABLED": "maybe"},
		{"SQLPANE_AUTH_REQUIRED": "not-bool"},
		{"SQLPANE_LOG_LEVEL": "verbose"},
		{"SQLPANE_HTTP_ADDR": " "},
		{"SQLPANE_EXEC_MAX_RETAINED": "0"},
		{"SQLPANE_AI_ENABLED": "true"},
		{"SQLPANE_OBJECTSTORE_ENABLED": "true", "SQLPANE_OBJECTSTORE_LINK_EXPIRY": "-1m"},
	}
	for _, env := range tests {
		_, err := Load("sqlpane-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestLoadJoinsValidationErrors(t *testing.T) {
	_, err := Load("sqlpane-api", mapLookup(map[string]string{
		"SQLPANE_EXEC_WORKERS":      "0",
		"SQLPANE_CLI_POLL_INTERVAL": "0s",
	}))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"SQLPANE_EXEC_WORKERS", "SQLPANE_CLI_POLL_INTERVAL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
