// Package config loads shaderdeck settings from defaults, .env files, an
// optional config file, SHADERDECK_* environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SHADERDECK"

type Config struct {
	// BaseURL is prepended to every shader and include name.
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds how long one include resolution may wait.
	Timeout time.Duration `mapstructure:"timeout"`

	// Addr is the listen address of the dev server.
	Addr string `mapstructure:"addr"`

	// Root is the directory the dev server serves the deck from.
	Root string `mapstructure:"root"`

	// OutDir receives the inlined shaders written by build.
	OutDir string `mapstructure:"out_dir"`

	Watch   bool `mapstructure:"watch"`
	Verbose bool `mapstructure:"verbose"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "../",
		Timeout: 10 * time.Second,
		Addr:    ":8080",
		Root:    ".",
		OutDir:  "dist",
	}
}

type LoadOptions struct {
	// ConfigFile is read when set; its format follows the extension.
	ConfigFile string

	// EnvFiles are loaded into the process environment if they exist.
	// Variables already set are not overridden.  Defaults to ".env".
	EnvFiles []string

	// Flags override every other source for the flags the user set.
	// Flag names map to keys by replacing "-" with "_".
	Flags *pflag.FlagSet
}

func Load(opts LoadOptions) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("base_url", defaults.BaseURL)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("addr", defaults.Addr)
	v.SetDefault("root", defaults.Root)
	v.SetDefault("out_dir", defaults.OutDir)
	v.SetDefault("watch", defaults.Watch)
	v.SetDefault("verbose", defaults.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return nil, fmt.Errorf("config file not found: %s", opts.ConfigFile)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if isKnownKey(key) {
				bindErr = errors.Join(bindErr, v.BindPFlag(key, f))
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}
	return &cfg, nil
}

func isKnownKey(key string) bool {
	switch key {
	case "base_url", "timeout", "addr", "root", "out_dir", "watch", "verbose":
		return true
	}
	return false
}
