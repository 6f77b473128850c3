package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/openrouter-mcp/internal/catalog"
	"github.com/ironsheep/openrouter-mcp/internal/config"
	"github.com/ironsheep/openrouter-mcp/internal/imaging"
	"github.com/ironsheep/openrouter-mcp/internal/logging"
	"github.com/ironsheep/openrouter-mcp/internal/openrouter"
	"github.com/ironsheep/openrouter-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configFile   string
	logLevel     string
	logFile      string
	defaultModel string
)

var rootCmd = &cobra.Command{
	Use:   "openrouter-mcp",
	Short: "MCP server for OpenRouter chat, vision and image generation",
	Long: `openrouter-mcp exposes OpenRouter models to MCP clients over stdin/stdout.

It needs an API key in OPENROUTER_API_KEY (a .env file in the working
directory is honoured). Other settings come from ~/.openrouter-mcp.yaml,
OPENROUTER_* environment variables or the flags below.`,
	SilenceUsage: true,
	RunE:         run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("openrouter-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.openrouter-mcp.yaml)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	rootCmd.Flags().StringVar(&defaultModel, "default-model", "", "model used when a tool call names none")
	rootCmd.AddCommand(versionCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().Load(configFile, map[string]any{
		"log_level":     logLevel,
		"log_file":      logFile,
		"default_model": defaultModel,
	})
	if err != nil {
		return err
	}

	// stdout carries the protocol; the logger writes to stderr.
	log, err := logging.NewLogger(&logging.Config{
		Level:        logging.LevelFromString(cfg.LogLevel),
		File:         cfg.LogFile,
		EnableCaller: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	log.Info("starting openrouter-mcp",
		logging.String("version", Version),
		logging.String("commit", GitCommit),
		logging.String("base_url", cfg.BaseURL),
	)

	client := openrouter.NewClient(openrouter.Config{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout,
		ImageTimeout: cfg.ImageTimeout,
		Title:        "openrouter-mcp",
	})

	router, err := server.NewRouter(server.Deps{
		Client:       client,
		Catalog:      catalog.NewCache(client, cfg.CatalogTTL, log),
		Images:       imaging.NewLoader(&http.Client{Timeout: cfg.Timeout}, log),
		DefaultModel: cfg.DefaultModel,
		ImageModel:   cfg.ImageModel,
		Log:          log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(router, Version, log).Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		log.Error("server error", logging.Error(err))
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
