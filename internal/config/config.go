// Package config loads and validates the server's configuration from
// flags, environment variables, and an optional config file, with
// precedence flags > env > file > defaults — the same layering the
// cobra+viper command trees in this codebase's lineage use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "MDB_MCP"

// boundEnvKeys are the config keys explicitly bound to a Config field
// above; anything else arriving as MDB_MCP_<SNAKE_CASE> is surfaced
// through Extra instead, coerced with coerceEnvValue.
var boundEnvKeys = map[string]bool{
	"TRANSPORT": true, "HTTP_HOST": true, "HTTP_PORT": true, "TELEMETRY": true,
	"BROWSER": true, "READ_ONLY": true, "INDEX_CHECK": true, "CONNECTION_STRING": true,
	"USERNAME": true, "PASSWORD": true, "API_BASE_URL": true, "API_CLIENT_ID": true,
	"API_CLIENT_SECRET": true, "LOG_PATH": true, "LOGGERS": true, "IDLE_TIMEOUT_MS": true,
	"NOTIFICATION_TIMEOUT_MS": true, "DISABLED_TOOLS": true, "CONFIRMATION_REQUIRED_TOOLS": true,
	"EXPORTS_PATH": true, "EXPORT_TTL_MS": true, "REGISTRY_DRIVER": true, "REGISTRY_DSN": true,
	"AZURE_STORAGE_CONNECTION_STRING": true, "AZURE_STORAGE_CONTAINER": true,
}

// Config is the fully resolved, validated server configuration.
type Config struct {
	Transport  string
	HTTPHost   string
	HTTPPort   int
	Telemetry  string
	Browser    bool
	ReadOnly   bool
	IndexCheck bool

	ConnectionString string
	Username         string
	Password         string

	APIBaseURL      string
	APIClientID     string
	APIClientSecret string

	LogPath               string
	Loggers               []string
	IdleTimeoutMS         int
	NotificationTimeoutMS int

	DisabledTools             []string
	ConfirmationRequiredTools []string

	ExportsPath    string
	ExportTTLMS    int
	RegistryDriver string
	RegistryDSN    string

	AzureStorageConnectionString string
	AzureStorageContainer        string

	// Extra holds MDB_MCP_<SNAKE_CASE> env vars (e.g. the mongosh-style
	// ssl*/tls*/oidc* pass-through flags) that don't map onto a typed
	// field above, coerced number/bool/array/string in that order.
	Extra map[string]any
}

var v = viper.New()

func setDefaults() {
	v.SetDefault("transport", "stdio")
	v.SetDefault("httpHost", "127.0.0.1")
	v.SetDefault("httpPort", 3000)
	v.SetDefault("telemetry", "enabled")
	v.SetDefault("browser", true)
	v.SetDefault("readOnly", false)
	v.SetDefault("indexCheck", false)
	v.SetDefault("logPath", "")
	v.SetDefault("loggers", []string{"stderr"})
	v.SetDefault("idleTimeoutMs", 600000)
	v.SetDefault("notificationTimeoutMs", 540000)
	v.SetDefault("disabledTools", []string{})
	v.SetDefault("confirmationRequiredTools", []string{})
	v.SetDefault("exportsPath", "./exports")
	v.SetDefault("exportTtlMs", int((10 * 60) * 1000))
	v.SetDefault("registryDriver", "")
	v.SetDefault("registryDsn", "")
}

// BindFlags binds every flag in flags to viper, so the precedence chain
// (flags override env which overrides file which overrides defaults)
// falls out of viper.Get rather than needing per-field "if flag was set"
// branches at every call site.
func BindFlags(flags *pflag.FlagSet) {
	v.BindPFlags(flags)
}

// GetConfigFile reports the config file viper actually loaded, empty if
// none was found.
func GetConfigFile() string {
	return v.ConfigFileUsed()
}

// SetPositionalConnectionString records a bare mongodb:// / mongodb+srv://
// positional CLI argument, which LoadWithConfigFile prefers over the
// deprecated --connectionString flag.
func SetPositionalConnectionString(uri string) {
	v.Set("positionalConnectionString", uri)
}

// LoadWithConfigFile resolves the full Config, searching for a config
// file at path (or, if empty, in ".", "./configs", "/etc/mongodb-mcp-server")
// and validating the result.
func LoadWithConfigFile(path string) (*Config, error) {
	setDefaults()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for snake := range boundEnvKeys {
		parts := strings.Split(strings.ToLower(snake), "_")
		for i := 1; i < len(parts); i++ {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
		_ = v.BindEnv(strings.Join(parts, ""), envPrefix+"_"+snake)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mongodb-mcp-server")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Transport:                    v.GetString("transport"),
		HTTPHost:                     v.GetString("httpHost"),
		HTTPPort:                     v.GetInt("httpPort"),
		Telemetry:                    v.GetString("telemetry"),
		Browser:                      v.GetBool("browser"),
		ReadOnly:                     v.GetBool("readOnly"),
		IndexCheck:                   v.GetBool("indexCheck"),
		ConnectionString:             resolveConnectionString(v),
		Username:                     v.GetString("username"),
		Password:                     v.GetString("password"),
		APIBaseURL:                   v.GetString("apiBaseUrl"),
		APIClientID:                  v.GetString("apiClientId"),
		APIClientSecret:              v.GetString("apiClientSecret"),
		LogPath:                      v.GetString("logPath"),
		Loggers:                      v.GetStringSlice("loggers"),
		IdleTimeoutMS:                v.GetInt("idleTimeoutMs"),
		NotificationTimeoutMS:        v.GetInt("notificationTimeoutMs"),
		DisabledTools:                v.GetStringSlice("disabledTools"),
		ConfirmationRequiredTools:    v.GetStringSlice("confirmationRequiredTools"),
		ExportsPath:                  v.GetString("exportsPath"),
		ExportTTLMS:                  v.GetInt("exportTtlMs"),
		RegistryDriver:               v.GetString("registryDriver"),
		RegistryDSN:                  v.GetString("registryDsn"),
		AzureStorageConnectionString: v.GetString("azureStorageConnectionString"),
		AzureStorageContainer:        v.GetString("azureStorageContainer"),
		Extra:                        extraEnvConfig(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConnectionString applies the positional-argument-over-flag
// precedence rule: a bare mongodb:// / mongodb+srv:// positional arg
// always wins over the deprecated --connectionString flag.
func resolveConnectionString(v *viper.Viper) string {
	if positional := v.GetString("positionalConnectionString"); positional != "" {
		return positional
	}
	return v.GetString("connectionString")
}

func validate(cfg *Config) error {
	if cfg.Transport != "stdio" && cfg.Transport != "http" {
		return fmt.Errorf("transport must be one of stdio, http (got %q)", cfg.Transport)
	}
	if cfg.Telemetry != "enabled" && cfg.Telemetry != "disabled" {
		return fmt.Errorf("telemetry must be one of enabled, disabled (got %q)", cfg.Telemetry)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("httpPort must be between 1 and 65535 (got %d)", cfg.HTTPPort)
	}
	if len(cfg.Loggers) == 0 {
		return fmt.Errorf("loggers must not be empty")
	}
	seen := map[string]bool{}
	for _, l := range cfg.Loggers {
		if l != "stderr" && l != "disk" && l != "mcp" {
			return fmt.Errorf("logger %q must be one of stderr, disk, mcp", l)
		}
		if seen[l] {
			return fmt.Errorf("logger %q specified more than once", l)
		}
		seen[l] = true
	}
	return nil
}

// extraEnvConfig scans the process environment for MDB_MCP_<SNAKE_CASE>
// vars not already bound to a Config field (the mongosh-compatible
// ssl*/tls*/oidc* surface), coercing each with coerceEnvValue. URL-valued
// keys are deliberately excluded from coercion elsewhere; here they would
// only land in Extra if unbound, which none of the URL fields are.
func extraEnvConfig() map[string]any {
	extra := map[string]any{}
	prefix := envPrefix + "_"
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		snake := strings.TrimPrefix(key, prefix)
		if boundEnvKeys[snake] {
			continue
		}
		extra[strings.ToLower(snake)] = coerceEnvValue(value)
	}
	return extra
}

// coerceEnvValue implements the MDB_MCP_<SNAKE_CASE> coercion order
// (number, then boolean, then comma-split array, then string) used for
// environment variables that don't map onto a typed viper default,
// mirroring how unknown env-derived overrides are applied to free-form
// config fields.
func coerceEnvValue(raw string) any {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return raw
}
