// Package main provides the shellm CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"shellm/internal/config"
)

var (
	// Global flags
	cfgPath   string
	modelFlag string
	hostFlag  string
	verbose   bool

	// Loaded configuration, available to every subcommand
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shellm",
	Short: "shellm - conversational shell agent for local models",
	Long: `shellm keeps a bounded conversation with a local Ollama model.

In chat mode it is a streaming REPL. In agent mode the model's replies
are executed as shell commands and their output is fed back as the next
turn, while you can interject guidance on stdin at any time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if modelFlag != "" {
			cfg.Ollama.Model = modelFlag
		}
		if hostFlag != "" {
			cfg.Ollama.Host = hostFlag
		}

		zcfg := zap.NewProductionConfig()
		var level zapcore.Level
		if err := level.Set(cfg.Logging.Level); err == nil {
			zcfg.Level = zap.NewAtomicLevelAt(level)
		}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: interactive chat
		return runChat(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.shellm.yaml)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "override the configured model")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "override the configured Ollama host")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
