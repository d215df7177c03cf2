package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mnehpets/jrpc/auth"
	"github.com/mnehpets/jrpc/internal/config"
	"github.com/mnehpets/jrpc/jsonrpc"
)

const (
	flagID           = "id"
	flagTokenURL     = "token-url"
	flagClientID     = "client-id"
	flagClientSecret = "client-secret"
	flagScopes       = "scopes"
)

func newCallCmd(v *viper.Viper) *cobra.Command {
	callCmd := &cobra.Command{
		Use:   "call METHOD [PARAMS]",
		Short: "calls a JSON-RPC method and prints the result",
		Long: "Calls METHOD with PARAMS, a JSON array or object, and prints the result.\n" +
			"An error response is printed and makes the command fail.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfig(cmd, v)
			if err != nil {
				return err
			}
			if err := cfg.ValidateClient(); err != nil {
				return err
			}

			var params interface{}
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return errors.Errorf("params are not valid JSON: %s", args[1])
				}
				params = json.RawMessage(args[1])
			}

			client, err := newClient(cmd, cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			var opts []jsonrpc.CallOption
			if id, _ := cmd.Flags().GetString(flagID); id != "" {
				opts = append(opts, jsonrpc.WithID(id))
			}
			reply, err := client.Call(cmd.Context(), args[0], params, opts...)
			if err != nil {
				return err
			}
			if reply.Error != nil {
				out, _ := json.MarshalIndent(reply.Error, "", "  ")
				fmt.Fprintln(cmd.ErrOrStderr(), string(out))
				return reply.Error
			}

			var buf bytes.Buffer
			if err := json.Indent(&buf, reply.Result, "", "  "); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), buf.String())
			return nil
		},
	}

	f := callCmd.Flags()
	f.String(config.FlagName(config.FlagURL), "", "URL of the JSON-RPC endpoint")
	f.Duration(config.FlagName(config.FlagTimeout), config.DefaultTimeout, "call timeout, 0 for none")
	f.String(config.FlagName(config.FlagToken), "", "bearer token sent with the call")
	f.String(flagID, "", "request id, generated when empty")
	f.String(flagTokenURL, "", "OAuth2 token URL for the client credentials grant")
	f.String(flagClientID, "", "OAuth2 client id")
	f.String(flagClientSecret, "", "OAuth2 client secret")
	f.StringSlice(flagScopes, nil, "OAuth2 scopes")
	return callCmd
}

func newClient(cmd *cobra.Command, cfg config.Config) (*jsonrpc.Client, error) {
	ctx := context.Background()
	var hc *http.Client
	tokenURL, _ := cmd.Flags().GetString(flagTokenURL)
	switch {
	case tokenURL != "":
		id, _ := cmd.Flags().GetString(flagClientID)
		secret, _ := cmd.Flags().GetString(flagClientSecret)
		scopes, _ := cmd.Flags().GetStringSlice(flagScopes)
		hc = auth.ClientCredentialsClient(ctx, tokenURL, id, secret, scopes...)
	case cfg.Token != "":
		hc = auth.StaticTokenClient(ctx, cfg.Token)
	default:
		hc = &http.Client{}
	}
	return jsonrpc.NewClient(cfg.ClientURL,
		jsonrpc.WithHTTPClient(hc),
		jsonrpc.WithTimeout(cfg.ClientTimeout))
}
