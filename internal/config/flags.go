package config

import (
	"fmt"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/pflag"
)

// RegisterFlags declares every flag the CLI accepts on flags, mirroring
// the field set LoadWithConfigFile resolves. Flags left at their zero
// value don't override viper's env/file/default layers; BindFlags
// (called separately, once the command tree is fully built) makes that
// precedence work.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("transport", "stdio", "Transport to serve on: stdio or http")
	flags.String("httpHost", "127.0.0.1", "Host to bind the HTTP transport to")
	flags.Int("httpPort", 3000, "Port to bind the HTTP transport to")
	flags.String("telemetry", "enabled", "Telemetry reporting: enabled or disabled")
	flags.Bool("browser", true, "Allow opening a browser for OIDC auth-code flow")
	flags.Bool("readOnly", false, "Only register read/metadata/connect tools")
	flags.Bool("indexCheck", false, "Reject queries that would run a full collection scan")

	flags.String("connectionString", "", "MongoDB connection string (deprecated: prefer a positional argument)")
	flags.String("username", "", "MongoDB username, merged into connectionString if set")
	flags.String("password", "", "MongoDB password, merged into connectionString if set")

	flags.String("apiBaseUrl", "https://cloud.mongodb.com/api/atlas/v2", "Atlas Administration API base URL")
	flags.String("apiClientId", "", "Atlas API service account client id")
	flags.String("apiClientSecret", "", "Atlas API service account client secret")

	flags.String("logPath", "", "Directory for the disk logger's rotated files")
	flags.StringSlice("loggers", []string{"stderr"}, "Active log sinks: stderr, disk, mcp")
	flags.Int("idleTimeoutMs", 600000, "HTTP session idle timeout in milliseconds")
	flags.Int("notificationTimeoutMs", 540000, "HTTP session notification timeout in milliseconds")

	flags.StringSlice("disabledTools", nil, "Tool categories/operationTypes/names to exclude from registration")
	flags.StringSlice("confirmationRequiredTools", nil, "Tool names requiring an elicitation confirmation before execution")

	flags.String("exportsPath", "./exports", "Directory export files are written to")
	flags.Int("exportTtlMs", 600000, "How long a completed export's file is kept before expiry")
	flags.String("registryDriver", "", "Export job registry backend: sqlite, postgres, or empty for none")
	flags.String("registryDsn", "", "Export job registry connection string/path")

	flags.String("azureStorageConnectionString", "", "Azure Blob Storage connection string for export archival")
	flags.String("azureStorageContainer", "", "Azure Blob Storage container for export archival")
}

// SuggestForUnknownFlag returns a human-readable suggestion for an
// unrecognized flag name, naming the closest known flag if it's within
// edit distance 2, matching the mongosh-style "did you mean" behavior.
func SuggestForUnknownFlag(unknown string, flags *pflag.FlagSet) (string, bool) {
	best := ""
	bestDistance := -1
	flags.VisitAll(func(f *pflag.Flag) {
		d := levenshtein.ComputeDistance(unknown, f.Name)
		if bestDistance == -1 || d < bestDistance {
			bestDistance = d
			best = f.Name
		}
	})
	if bestDistance >= 0 && bestDistance <= 2 {
		return fmt.Sprintf("unknown flag --%s, did you mean --%s?", unknown, best), true
	}
	return fmt.Sprintf("unknown flag --%s", unknown), false
}
