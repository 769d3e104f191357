// Package commands implements the ksdebug command line.
package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dshills/keystorm-debug/internal/integration/debug/adapters"
	"github.com/dshills/keystorm-debug/internal/logger"
)

// EnvPrefix prefixes environment variables overriding flags, e.g.
// KSDEBUG_LOG_LEVEL.
const EnvPrefix = "KSDEBUG"

// VersionInfo is set at build time.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// settings holds flag values merged with the environment and the optional
// settings file.
type settings struct {
	v *viper.Viper
}

func newSettings() *settings {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	v.SetDefault("log-level", "info")
	v.SetDefault("auto-continue", true)
	return &settings{v: v}
}

// bind makes flags readable through the settings. Called before each
// command runs so only that command's flags are bound.
func (s *settings) bind(flags *pflag.FlagSet) error {
	return s.v.BindPFlags(flags)
}

// readFile loads the settings file if one is given or found.
func (s *settings) readFile() error {
	if path := s.v.GetString("settings"); path != "" {
		s.v.SetConfigFile(path)
		if err := s.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read settings %s: %w", path, err)
		}
		return nil
	}

	s.v.SetConfigName("settings")
	s.v.SetConfigType("yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		s.v.AddConfigPath(filepath.Join(dir, "ksdebug"))
	}
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read settings: %w", err)
	}
	return nil
}

func (s *settings) String(key string) string { return s.v.GetString(key) }

func (s *settings) Bool(key string) bool { return s.v.GetBool(key) }

func (s *settings) Int(key string) int { return s.v.GetInt(key) }

func (s *settings) logger() (*logger.Logger, error) {
	level, err := logger.ParseLevel(s.String("log-level"))
	if err != nil {
		return nil, err
	}
	return logger.New(logger.Config{Name: "ksdebug", Level: level}), nil
}

// catalog loads the tool catalog named by --config, or the built-in one.
func (s *settings) catalog() (*adapters.Catalog, string, error) {
	path := s.String("config")
	if path == "" {
		return adapters.DefaultCatalog(), "", nil
	}
	tools, err := adapters.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	return adapters.NewCatalog(tools...), path, nil
}

// NewRootCommand builds the ksdebug command tree.
func NewRootCommand(info VersionInfo) *cobra.Command {
	s := newSettings()

	root := &cobra.Command{
		Use:   "ksdebug",
		Short: "Drive debug adapters from the command line",
		Long: `ksdebug starts a Debug Adapter Protocol server such as dlv, debugpy or
js-debug, runs a program under it and reports where it stops.

Tools are read from a catalog file (JSON, TOML or YAML) with a top-level
"dap" list; without one the built-in delve, debugpy and js-debug entries are
used. Every flag can also be set through a KSDEBUG_ environment variable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.bind(cmd.Flags()); err != nil {
				return err
			}
			if err := s.readFile(); err != nil {
				return err
			}
			_, err := logger.ParseLevel(s.String("log-level"))
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "tool catalog file (.json, .toml, .yaml)")
	flags.String("settings", "", "settings file (default $XDG_CONFIG_HOME/ksdebug/settings.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newToolsCommand(s),
		newRunCommand(s),
		newVersionCommand(info),
	)
	return root
}
