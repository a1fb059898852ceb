// Command lawqa builds question-answer datasets from Bangladeshi statutes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/lawqa"
)

var version = "0.1.0"

// Global flags
var (
	configPath string
	logLevel   string
	logJSON    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lawqa",
		Short: "Statute QA dataset toolkit",
		Long: `lawqa turns Bangladeshi statutes into question-answer datasets.

It ingests law documents, generates QA pairs with a chat model, fills each
pair's input context from the sections its law reference cites, flags
duplicates and renders ChatML training texts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel, logJSON)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Config file path (YAML or JSON)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&logJSON, "log-json", false, "Log as JSON")

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(contextCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(dedupeCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(trainConfigCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setupLogging installs the default slog handler. The flag wins over the
// config file's log_level.
func setupLogging(level string, asJSON bool) error {
	if level == "" {
		if cfg, err := lawqa.LoadConfig(configPath); err == nil {
			level = cfg.LogLevel
		}
	}
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", level, err)
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if asJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func loadConfig() (lawqa.Config, error) {
	return lawqa.LoadConfig(configPath)
}

// openPipeline loads the config and opens the pipeline. The caller closes it.
func openPipeline() (lawqa.Pipeline, lawqa.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	p, err := lawqa.New(cfg)
	if err != nil {
		return nil, cfg, err
	}
	return p, cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
