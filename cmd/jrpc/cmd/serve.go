package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mnehpets/jrpc/internal/config"
	"github.com/mnehpets/jrpc/internal/server"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serves the demo JSON-RPC methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := readConfig(cmd, v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Start(ctx, cfg, version)
		},
	}

	f := serveCmd.Flags()
	f.String(config.FlagName(config.FlagListen), config.DefaultListen, "address to listen on")
	f.String(config.FlagName(config.FlagPath), config.DefaultPath, "path of the JSON-RPC endpoint")
	f.Int64(config.FlagName(config.FlagBodyLimit), config.DefaultBodyLimit, "maximum request body size in bytes, 0 for no limit")
	f.Bool(config.FlagName(config.FlagErrorDetail), true, "include failure details in error data")
	f.Bool(config.FlagName(config.FlagEnableMetrics), false, "serve Prometheus metrics")
	f.String(config.FlagName(config.FlagMetricsListen), config.DefaultMetricsListen, "address to serve metrics on")
	f.Bool(config.FlagName(config.FlagEnableTracing), false, "export trace spans to stderr")
	f.StringSlice(config.FlagName(config.FlagCORSOrigins), nil, "origins allowed to call the endpoint from a browser")
	f.StringSlice(config.FlagName(config.FlagBasicUsers), nil, "name:bcrypt-hash pairs accepted with basic authentication")
	f.String(config.FlagName(config.FlagOIDCIssuer), "", "OpenID Connect issuer of accepted bearer tokens")
	f.String(config.FlagName(config.FlagOIDCClientID), "", "audience of accepted bearer tokens")
	return serveCmd
}
