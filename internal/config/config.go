// Package config reads the jrpc server and client settings from flags, the
// environment, an optional .env file and an optional config file.
//
// Precedence, highest first: flags, JRPC_* environment variables (a .env
// file is loaded into the environment without overriding what is already
// set), the config file, defaults.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "JRPC"

const (
	FlagConfig        = "config"
	FlagListen        = "listen"
	FlagPath          = "path"
	FlagLogLevel      = "log_level"
	FlagBodyLimit     = "body_limit"
	FlagErrorDetail   = "error_detail"
	FlagEnableMetrics = "enable_metrics"
	FlagMetricsListen = "metrics_listen"
	FlagEnableTracing = "enable_tracing"
	FlagCORSOrigins   = "cors_origins"
	FlagBasicUsers    = "basic_users"
	FlagOIDCIssuer    = "oidc_issuer"
	FlagOIDCClientID  = "oidc_client_id"
	FlagURL           = "url"
	FlagTimeout       = "timeout"
	FlagToken         = "token"
)

const (
	DefaultListen        = "127.0.0.1:8080"
	DefaultPath          = "/rpc"
	DefaultMetricsListen = "127.0.0.1:2112"
	DefaultBodyLimit     = 5 * 1024 * 1024
	DefaultTimeout       = 10 * time.Second
)

type Config struct {
	Listen        string        `mapstructure:"listen"`
	Path          string        `mapstructure:"path"`
	LogLevel      string        `mapstructure:"log_level"`
	BodyLimit     int64         `mapstructure:"body_limit"`
	ErrorDetail   bool          `mapstructure:"error_detail"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	MetricsListen string        `mapstructure:"metrics_listen"`
	EnableTracing bool          `mapstructure:"enable_tracing"`
	CORSOrigins   []string      `mapstructure:"cors_origins"`
	BasicUsers    []string      `mapstructure:"basic_users"`
	OIDCIssuer    string        `mapstructure:"oidc_issuer"`
	OIDCClientID  string        `mapstructure:"oidc_client_id"`
	ClientURL     string        `mapstructure:"url"`
	ClientTimeout time.Duration `mapstructure:"timeout"`
	Token         string        `mapstructure:"token"`
}

// New returns a viper instance carrying the defaults and reading JRPC_*
// environment variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(FlagListen, DefaultListen)
	v.SetDefault(FlagPath, DefaultPath)
	v.SetDefault(FlagLogLevel, "info")
	v.SetDefault(FlagBodyLimit, DefaultBodyLimit)
	v.SetDefault(FlagErrorDetail, true)
	v.SetDefault(FlagEnableMetrics, false)
	v.SetDefault(FlagMetricsListen, DefaultMetricsListen)
	v.SetDefault(FlagEnableTracing, false)
	v.SetDefault(FlagCORSOrigins, []string{})
	v.SetDefault(FlagBasicUsers, []string{})
	v.SetDefault(FlagOIDCIssuer, "")
	v.SetDefault(FlagOIDCClientID, "")
	v.SetDefault(FlagURL, "http://"+DefaultListen+DefaultPath)
	v.SetDefault(FlagTimeout, DefaultTimeout)
	v.SetDefault(FlagToken, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// FlagName is the command line spelling of a config key.
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// BindFlags binds every flag in fs whose name matches a config key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
			err = errors.Wrapf(bindErr, "bind flag %s", f.Name)
		}
	})
	return err
}

// LoadDotEnv loads path into the process environment. A missing file is
// not an error; variables that are already set win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(godotenv.Load(path), "load %s", path)
}

// ReadConfig reads file, when given, and decodes the merged settings.
// The file format follows its extension.
func ReadConfig(v *viper.Viper, file string) (Config, error) {
	var cfg Config
	if file != "" {
		expanded, err := homedir.Expand(file)
		if err != nil {
			return cfg, errors.Wrapf(err, "expand %s", file)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return cfg, errors.Wrapf(err, "read config %s", expanded)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// Validate checks the settings used by the server.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return validationError(fmt.Sprintf("invalid listen address: %s", c.Listen))
	}
	if !strings.HasPrefix(c.Path, "/") {
		return validationError(fmt.Sprintf("path must start with /: %s", c.Path))
	}
	if c.BodyLimit < 0 {
		return validationError("body_limit must not be negative")
	}
	if c.EnableMetrics {
		if _, _, err := net.SplitHostPort(c.MetricsListen); err != nil {
			return validationError(fmt.Sprintf("invalid metrics listen address: %s", c.MetricsListen))
		}
		if c.MetricsListen == c.Listen {
			return validationError("metrics must listen on a different address")
		}
	}
	if (c.OIDCIssuer == "") != (c.OIDCClientID == "") {
		return validationError("oidc_issuer and oidc_client_id must be set together")
	}
	if c.OIDCIssuer != "" {
		if err := checkURL(c.OIDCIssuer); err != nil {
			return validationError(fmt.Sprintf("invalid oidc issuer: %v", err))
		}
		if len(c.BasicUsers) > 0 {
			return validationError("basic_users and oidc_issuer cannot both be set")
		}
	}
	return nil
}

// ValidateClient checks the settings used by the client.
func (c *Config) ValidateClient() error {
	if err := checkURL(c.ClientURL); err != nil {
		return validationError(fmt.Sprintf("invalid url: %v", err))
	}
	if c.ClientTimeout < 0 {
		return validationError("timeout must not be negative")
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("unsupported scheme %q", u.Scheme)
	}
	return nil
}

func validationError(msg string) error {
	return errors.New(fmt.Sprintf("invalid config: %s", msg))
}
