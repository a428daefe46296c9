package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func resetViper() {
	v = viper.New()
}

func newTestFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	return flags
}

func TestLoadWithConfigFileAppliesDefaults(t *testing.T) {
	resetViper()

	cfg, err := LoadWithConfigFile("")
	if err != nil {
		t.Fatalf("LoadWithConfigFile: %v", err)
	}
	if cfg.Transport != "stdio" {
		t.Fatalf("expected default transport stdio, got %q", cfg.Transport)
	}
	if cfg.HTTPPort != 3000 {
		t.Fatalf("expected default httpPort 3000, got %d", cfg.HTTPPort)
	}
	if len(cfg.Loggers) != 1 || cfg.Loggers[0] != "stderr" {
		t.Fatalf("expected default loggers [stderr], got %v", cfg.Loggers)
	}
}

func TestLoadWithConfigFileEnvOverridesDefault(t *testing.T) {
	resetViper()
	t.Setenv("MDB_MCP_TRANSPORT", "http")
	t.Setenv("MDB_MCP_HTTP_PORT", "8443")

	cfg, err := LoadWithConfigFile("")
	if err != nil {
		t.Fatalf("LoadWithConfigFile: %v", err)
	}
	if cfg.Transport != "http" {
		t.Fatalf("expected env-overridden transport http, got %q", cfg.Transport)
	}
	if cfg.HTTPPort != 8443 {
		t.Fatalf("expected env-overridden httpPort 8443, got %d", cfg.HTTPPort)
	}
}

func TestLoadWithConfigFileRejectsInvalidTransport(t *testing.T) {
	resetViper()
	t.Setenv("MDB_MCP_TRANSPORT", "carrier-pigeon")

	if _, err := LoadWithConfigFile(""); err == nil {
		t.Fatalf("expected an error for an invalid transport")
	}
}

func TestLoadWithConfigFileRejectsOutOfRangeHTTPPort(t *testing.T) {
	resetViper()
	t.Setenv("MDB_MCP_HTTP_PORT", "70000")

	if _, err := LoadWithConfigFile(""); err == nil {
		t.Fatalf("expected an error for an out-of-range httpPort")
	}
}

func TestLoadWithConfigFileRejectsEmptyLoggers(t *testing.T) {
	resetViper()
	v.Set("loggers", []string{})

	if _, err := LoadWithConfigFile(""); err == nil {
		t.Fatalf("expected an error for empty loggers")
	}
}

func TestPositionalConnectionStringTakesPrecedence(t *testing.T) {
	resetViper()
	v.Set("connectionString", "mongodb://flag-wins-if-no-positional/")
	SetPositionalConnectionString("mongodb://positional-wins/")

	cfg, err := LoadWithConfigFile("")
	if err != nil {
		t.Fatalf("LoadWithConfigFile: %v", err)
	}
	if cfg.ConnectionString != "mongodb://positional-wins/" {
		t.Fatalf("expected positional connection string to win, got %q", cfg.ConnectionString)
	}
}

func TestExtraEnvConfigCapturesUnboundMongoshStyleFlags(t *testing.T) {
	resetViper()
	t.Setenv("MDB_MCP_TLS_CA_FILE", "/etc/ssl/ca.pem")
	t.Setenv("MDB_MCP_OIDC_REDIRECT_URI", "http://localhost:9999/callback")

	cfg, err := LoadWithConfigFile("")
	if err != nil {
		t.Fatalf("LoadWithConfigFile: %v", err)
	}
	if cfg.Extra["tls_ca_file"] != "/etc/ssl/ca.pem" {
		t.Fatalf("expected Extra to capture tls_ca_file, got %v", cfg.Extra)
	}
	if cfg.Extra["oidc_redirect_uri"] != "http://localhost:9999/callback" {
		t.Fatalf("expected Extra to capture oidc_redirect_uri, got %v", cfg.Extra)
	}
}

func TestSuggestForUnknownFlagFindsCloseMatch(t *testing.T) {
	flags := newTestFlagSet()
	msg, ok := SuggestForUnknownFlag("readonly", flags)
	if !ok {
		t.Fatalf("expected a suggestion for a near-miss flag name")
	}
	if msg == "" {
		t.Fatalf("expected a non-empty suggestion message")
	}
}

func TestSuggestForUnknownFlagRejectsDistantName(t *testing.T) {
	flags := newTestFlagSet()
	if _, ok := SuggestForUnknownFlag("completely-unrelated-flag-name", flags); ok {
		t.Fatalf("expected no suggestion for a distant flag name")
	}
}
