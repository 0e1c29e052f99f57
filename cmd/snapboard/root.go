// ABOUTME: Root cobra command: loads .env, resolves viper configuration and installs the slog logger.
// ABOUTME: Subcommands read the resolved settings from the shared app struct.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/2389-research/snapboard/server"
)

// app carries state resolved once in PersistentPreRunE.
type app struct {
	viper  *viper.Viper
	cfg    *server.Config
	logger *slog.Logger
	// stderr receives logs; tests swap it.
	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{stderr: os.Stderr}
	var (
		envFile   string
		configDir string
	)

	cmd := &cobra.Command{
		Use:   "snapboard",
		Short: "Instant-camera photo board with AI edits",
		Long: `snapboard runs a shared board of polaroid-style photos.

Photos develop on the board, can be dragged, captioned, framed and filtered,
and can be reworked by an image model. Browsers connect over HTTP and
websockets, agents over MCP, and the terminal through the TUI.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := server.LoadDotEnv(envFile); err != nil {
				return err
			}
			if configDir == "" {
				configDir, _ = defaultConfigDir()
			}
			v, err := server.NewViper(configDir)
			if err != nil {
				return err
			}
			for _, key := range []string{server.KeyHome, server.KeyLogLevel} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flagName(key))); err != nil {
					return err
				}
			}
			for _, key := range []string{server.KeyBind, server.KeyAllowRemote, server.KeyAdvertise, server.KeyCameraDir, server.KeyEditProvider, server.KeyEditModel} {
				if f := cmd.Flags().Lookup(flagName(key)); f != nil {
					if err := v.BindPFlag(key, f); err != nil {
						return err
					}
				}
			}
			a.viper = v
			a.logger = newLogger(a.stderr, v.GetString(server.KeyLogLevel))
			slog.SetDefault(a.logger)
			return nil
		},
	}

	cmd.PersistentFlags().String(flagName(server.KeyHome), "", "Data directory (default ~/.snapboard)")
	cmd.PersistentFlags().String(flagName(server.KeyLogLevel), "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file if it exists")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory holding .snapboard.yaml (default $XDG_CONFIG_HOME/snapboard)")

	cmd.AddCommand(
		newServeCmd(a),
		newTUICmd(a),
		newMCPCmd(a),
		newGalleryCmd(a),
		newExportCmd(a),
		newSetupCmd(a),
	)
	return cmd
}

// config resolves and validates settings after flags are bound.
func (a *app) config() (*server.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := server.ConfigFrom(a.viper)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// defaultConfigDir is where .snapboard.yaml is looked up besides the working
// directory: $XDG_CONFIG_HOME/snapboard, else ~/.config/snapboard.
func defaultConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "snapboard"), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "snapboard"), nil
}

// flagName maps a config key to its CLI flag.
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(w, "unknown log level %q, using info\n", level)
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
