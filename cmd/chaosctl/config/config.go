package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chaosswarm/chaosswarm/pkg/client"
)

// DefaultHelper is the helper address used when none is configured
const DefaultHelper = "localhost:8080"

// Config holds CLI configuration
type Config struct {
	Helper  string        `mapstructure:"helper"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig loads configuration from file, environment and flags, in
// increasing order of precedence. A missing default file is not an error;
// a missing file named with --config is.
func LoadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetDefault("helper", DefaultHelper)
	v.SetDefault("timeout", client.DefaultTimeout)
	v.SetEnvPrefix("CHAOSCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile, _ := cmd.Flags().GetString("config")
	explicit := configFile != ""
	if !explicit {
		if home, err := os.UserHomeDir(); err == nil {
			configFile = filepath.Join(home, ".chaosswarm", "config.yaml")
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with flags
	if helper, _ := cmd.Flags().GetString("helper"); helper != "" {
		cfg.Helper = helper
	}
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.Timeout = timeout
	}

	if cfg.Helper == "" {
		cfg.Helper = DefaultHelper
	}
	return cfg, nil
}

// NewClient creates a client for the configured helper
func (c *Config) NewClient() *client.Client {
	return client.New(c.Helper, c.Timeout)
}
