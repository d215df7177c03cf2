package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mnehpets/jrpc/internal/config"
	"github.com/mnehpets/jrpc/internal/log"
)

var version = "dev"

const flagEnvFile = "env-file"

// NewRootCmd returns the jrpc command tree. Each call builds fresh flags and
// config state.
func NewRootCmd() *cobra.Command {
	v := config.New()
	rootCmd := &cobra.Command{
		Use:           "jrpc",
		Short:         "a JSON-RPC 2.0 server and client over HTTP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString(flagEnvFile)
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			lvl, err := log.ParseLevel(v.GetString(config.FlagLogLevel))
			if err != nil {
				return fmt.Errorf("invalid log level %q", v.GetString(config.FlagLogLevel))
			}
			log.SetLevel(lvl)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String(config.FlagConfig, "", "config file (toml, yaml or json)")
	pf.String(flagEnvFile, ".env", "file of environment variables to load")
	pf.String(config.FlagName(config.FlagLogLevel), "", "log level: debug, info, warn, error, crit")

	rootCmd.AddCommand(newServeCmd(v), newCallCmd(v), newHashPasswordCmd())
	return rootCmd
}

func readConfig(cmd *cobra.Command, v *viper.Viper) (config.Config, error) {
	file, _ := cmd.Flags().GetString(config.FlagConfig)
	return config.ReadConfig(v, file)
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
