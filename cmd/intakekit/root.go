package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/intakekit/intakekit/config"
	"github.com/intakekit/intakekit/contextfetch"
	"github.com/intakekit/intakekit/conversation"
	"github.com/intakekit/intakekit/events"
	"github.com/intakekit/intakekit/jira"
	"github.com/intakekit/intakekit/llm"
	"github.com/intakekit/intakekit/server"
	"github.com/intakekit/intakekit/template"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "intakekit",
		Short: "LLM-interview PRD builder",
		Long:  "intakekit runs structured, multi-turn interviews against a language model to progressively fill in requirements documents.",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newTemplatesCmd(&configPath))
	return root
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the interview HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := template.NewRegistry(cfg.Templates.Dir, logger)
	if cfg.Templates.Watch {
		if err := registry.Watch(ctx); err != nil {
			logger.Warn("template watching disabled", "error", err)
		}
	}

	var notifiers conversation.Notifiers
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("intakekit"))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer nc.Drain() //nolint:errcheck
		notifiers = append(notifiers, events.NewPublisher(nc, cfg.NATS.SubjectPrefix, logger))
		logger.Info("lifecycle events enabled", "url", cfg.NATS.URL)
	}

	manager := conversation.NewManager(conversation.ManagerConfig{
		ExpiryWindow:  cfg.Sessions.ExpiryWindow,
		RemovalWindow: cfg.Sessions.RemovalWindow,
		SweepInterval: cfg.Sessions.SweepInterval,
	},
		conversation.WithLogger(logger),
	)

	metrics := server.NewMetrics(manager)
	notifiers = append(notifiers, metrics)
	manager.SetNotifier(notifiers)
	manager.Start(ctx)

	temperature := cfg.Model.Temperature
	client := llm.NewClient(llm.Endpoint{
		Provider:    cfg.Model.Provider,
		Model:       cfg.Model.Model,
		BaseURL:     cfg.Model.Endpoint,
		Temperature: &temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	},
		llm.WithLogger(logger),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.Model.Timeout}),
	)

	engine := conversation.NewEngine(manager, registry, llm.NewChat(client),
		conversation.WithMaxTurns(cfg.Model.MaxTurns),
		conversation.WithEngineLogger(logger),
	)

	srv := server.New(manager, engine, registry, metrics,
		server.WithServerLogger(logger),
		server.WithContextFetcher(contextfetch.NewFetcher()),
		server.WithIssueCreator(jira.NewClient(cfg.Jira, os.Getenv("JIRA_API_TOKEN"), logger)),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func newTemplatesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List available document templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			registry := template.NewRegistry(cfg.Templates.Dir, slog.Default())
			names, err := registry.Names()
			if err != nil {
				return err
			}
			for _, name := range names {
				t := registry.GetOrDefault(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t(%d sections, %d required)\n",
					name, len(t.Sections), len(t.RequiredSections()))
			}
			return nil
		},
	}
}
