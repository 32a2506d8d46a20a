package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skosovsky/chatbridge/config"
	"github.com/skosovsky/chatbridge/internal/logging"
)

const rootLongDesc string = `chatbridge routes chat requests to a typed model backend, or to a
local command executor when the request carries tools.

Configuration is read from --config (YAML). Without it a local Ollama server
is used as both backend and executor. A .env file in the working directory is
loaded first, so API keys can live there.`

type rootCommander struct {
	configPath string
	envFile    string
	debug      bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	root := &rootCommander{}

	cmd := &cobra.Command{
		Use:           "chatbridge",
		Short:         "Route chat requests between typed backends and command executors",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return root.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if root.logger != nil {
				_ = root.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&root.configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.PersistentFlags().StringVar(&root.envFile, "env-file", "", "Path to a .env file (default: ./.env when present)")
	cmd.PersistentFlags().BoolVar(&root.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newChatCmd(root), newServeCmd(root), newPresetsCmd(root))
	return cmd
}

func (r *rootCommander) load(cmd *cobra.Command) error {
	if err := loadEnv(r.envFile); err != nil {
		return err
	}
	cfg := config.Default()
	if r.configPath != "" {
		loaded, err := config.Load(r.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if r.debug {
		cfg.Log.Debug = true
	}
	r.cfg = cfg
	r.logger = logging.New(cmd.ErrOrStderr(), cfg.Log.Debug)
	return nil
}

// loadEnv loads path, or ./.env when path is empty. A missing ./.env is not an error.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %q: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
