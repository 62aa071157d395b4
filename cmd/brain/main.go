// Package main provides the brain binary: a local file classification
// service with a NATS request/reply endpoint, directory watch mode and
// semantic search over classified files.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/magicfolder/brain/llm/providers"

	"github.com/magicfolder/brain/config"
	"github.com/magicfolder/brain/rag"
	"github.com/magicfolder/brain/search"
)

const (
	Version = "0.1.0"
	appName = "brain"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Local file classification service",
		Long: `Brain classifies dropped files into categories using extension rules,
content keyword matching and LLM escalation for the uncertain remainder.

It serves classification requests over a NATS request/reply subject, can
watch a drop directory directly, and optionally maintains a semantic
index over classified files for natural-language search.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(&configPath, &logLevel))
	cmd.AddCommand(classifyCmd(&configPath, &logLevel))
	cmd.AddCommand(indexCmd(&configPath, &logLevel))
	cmd.AddCommand(searchCmd(&configPath, &logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func serveCmd(configPath, logLevel *string) *cobra.Command {
	var watchDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the classification service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}
			if watchDir != "" {
				cfg.Watch.Dir = watchDir
			}

			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := app.Start(ctx); err != nil {
				return err
			}

			logger.Info("Brain ready",
				slog.String("version", Version),
				slog.String("subject", cfg.Server.Subject))

			<-ctx.Done()
			logger.Info("Received shutdown signal")
			app.Shutdown(10 * time.Second)
			return nil
		},
	}

	cmd.Flags().StringVar(&watchDir, "watch", "", "Classify new files appearing in this directory")
	return cmd
}

func classifyCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>...",
		Short: "Classify files once and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}

			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}

			results := app.pipe.Process(cmd.Context(), args)
			out := make(map[string]string, len(results))
			for _, r := range results {
				out[r.Path] = r.Category.String()
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func indexCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "index <file>...",
		Short: "Classify files and add them to the semantic index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}
			cfg.RAG.Enabled = true

			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			ctx := cmd.Context()
			if err := app.startRAG(ctx); err != nil {
				return err
			}

			results := app.pipe.Process(ctx, args)
			for _, r := range results {
				if err := app.indexer.Index(ctx, r.Path, r.Content, r.Category.String()); err != nil {
					logger.Warn("indexing failed",
						slog.String("path", r.Path),
						slog.String("error", err.Error()))
					continue
				}
				fmt.Printf("%s  %s\n", r.Category, r.Path)
			}
			return nil
		},
	}
}

func searchCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed files by meaning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}
			cfg.RAG.Enabled = true

			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			ctx := cmd.Context()
			if err := app.startRAG(ctx); err != nil {
				return err
			}

			res, err := app.searcher.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			printSearchResult(res)
			return nil
		},
	}
}

func printSearchResult(res *search.Result) {
	if len(res.Matches) == 0 {
		fmt.Println("No matches.")
		return
	}
	for _, m := range res.Matches {
		printMatch(m)
	}
	if res.Dir != "" {
		fmt.Printf("\nResults linked in %s\n", res.Dir)
	}
}

func printMatch(m rag.Match) {
	fmt.Printf("%.2f  %-12s %s\n", m.Score, m.Category, m.Path)
	if m.Summary != "" {
		summary := m.Summary
		if len(summary) > 120 {
			summary = summary[:120] + "..."
		}
		fmt.Printf("      %s\n", summary)
	}
}

// setup loads config and installs the default logger.
func setup(configPath, logLevel string) (*config.Config, *slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
		if err == nil {
			err = cfg.Validate()
		}
	} else {
		cfg, err = config.NewLoader(logger).Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, logger, nil
}
