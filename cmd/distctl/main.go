// Command distctl is the command-line surface over the engine core:
// install, update, and verify a build by product slug.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vaultforge/distengine/api"
	"github.com/vaultforge/distengine/config"
	"github.com/vaultforge/distengine/engine"
	"github.com/vaultforge/distengine/logger"
)

var (
	configPath string
	baseURL    string
	cfg        config.Config
)

func defaultInstallBasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Games", "distengine")
}

func newEngine() *engine.Engine {
	logger.SetLevel(logLevelFromString(cfg.LogLevel))
	client := api.NewHTTPClient(api.CDNURLBuilder{BaseURL: baseURL}, cfg.MaxDownloadWorkers, "distctl")
	return engine.New(client, logger.GetLogger())
}

func logLevelFromString(s string) logger.Level {
	switch s {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\n\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()

	rootCmd := &cobra.Command{
		Use:   "distctl",
		Short: "Distribution engine CLI",
		Long:  "distctl installs, updates, and verifies chunked game builds.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to an optional TOML config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "https://cdn.example.com", "CDN base URL serving manifests and chunks")

	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newUninstallCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newVerifyCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "distengine", "config.toml")
}
