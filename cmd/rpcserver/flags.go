package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DeFiCh/jsonrpsee/internal/config"
)

// Flag describes one command-line flag and its viper binding.
type Flag struct {
	Name         string
	DefaultValue interface{}
	Description  string
	BindTo       string
}

var flags = []Flag{
	{
		Name:         "http-host",
		DefaultValue: config.DefaultHTTPHost,
		Description:  "HTTP server host",
		BindTo:       "http.host",
	},
	{
		Name:         "http-port",
		DefaultValue: config.DefaultHTTPPort,
		Description:  "HTTP server port",
		BindTo:       "http.port",
	},
	{
		Name:         "max-request-body",
		DefaultValue: int64(config.DefaultMaxBodyMB),
		Description:  "Maximum request body size in MB",
		BindTo:       "rpc.max-request-body-mb",
	},
	{
		Name:         "max-response-body",
		DefaultValue: int64(config.DefaultMaxBodyMB),
		Description:  "Maximum response body size in MB",
		BindTo:       "rpc.max-response-body-mb",
	},
	{
		Name:         "max-log-length",
		DefaultValue: int64(config.DefaultMaxLogLength),
		Description:  "Truncate logged payloads at this many bytes",
		BindTo:       "rpc.max-log-length",
	},
	{
		Name:         "batch-requests",
		DefaultValue: true,
		Description:  "Accept batched JSON-RPC requests",
		BindTo:       "rpc.batch-requests",
	},
	{
		Name:         "allowed-hosts",
		DefaultValue: []string{},
		Description:  "Allowed host header values (comma-separated, '*' wildcards), empty allows all",
		BindTo:       "acl.allowed-hosts",
	},
	{
		Name:         "allowed-origins",
		DefaultValue: []string{},
		Description:  "Allowed origins (comma-separated, '*' wildcards), empty allows all",
		BindTo:       "acl.allowed-origins",
	},
	{
		Name:         "allowed-headers",
		DefaultValue: []string{},
		Description:  "Allowed CORS request headers, empty allows all",
		BindTo:       "acl.allowed-headers",
	},
	{
		Name:         "health-path",
		DefaultValue: "",
		Description:  "GET path for the health endpoint (empty disables it)",
		BindTo:       "health.path",
	},
	{
		Name:         "health-method",
		DefaultValue: "system_health",
		Description:  "RPC method invoked by the health endpoint",
		BindTo:       "health.method",
	},
	{
		Name:         "metrics-addr",
		DefaultValue: "",
		Description:  "Listen address for Prometheus metrics (empty disables them)",
		BindTo:       "metrics.addr",
	},
	{
		Name:         "log-level",
		DefaultValue: config.DefaultLogLevel,
		Description:  "Log level (debug, info, warn, error, fatal)",
		BindTo:       "log.level",
	},
	{
		Name:         "log-format",
		DefaultValue: config.DefaultLogFormat,
		Description:  "Log format (json or text)",
		BindTo:       "log.format",
	},
}

// registerFlags adds every flag to the command and binds it to viper.
func registerFlags(cmd *cobra.Command) error {
	for _, flag := range flags {
		switch v := flag.DefaultValue.(type) {
		case string:
			cmd.Flags().String(flag.Name, v, flag.Description)
		case int:
			cmd.Flags().Int(flag.Name, v, flag.Description)
		case int64:
			cmd.Flags().Int64(flag.Name, v, flag.Description)
		case bool:
			cmd.Flags().Bool(flag.Name, v, flag.Description)
		case []string:
			cmd.Flags().StringSlice(flag.Name, v, flag.Description)
		default:
			return fmt.Errorf("unsupported flag type: %T for flag %s", v, flag.Name)
		}

		if err := viper.BindPFlag(flag.BindTo, cmd.Flags().Lookup(flag.Name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	return nil
}
