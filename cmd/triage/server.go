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

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/triage/internal/api"
	"github.com/kalambet/triage/internal/config"
	"github.com/kalambet/triage/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the delivery consumer (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, _ := cmd.Flags().GetBool("skip-model-check")
		return runServer(skip)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run only the delivery consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, _ := cmd.Flags().GetBool("skip-model-check")
		return runWorker(skip)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the complaint tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show triage system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("skip-model-check", false, "do not check the inference engine or pull models on startup")
	workerCmd.Flags().Bool("skip-model-check", false, "do not check the inference engine or pull models on startup")
}

func runServer(skipModelCheck bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.API.Token == "" {
		return fmt.Errorf("missing required config: API token. Set it via environment variable TRIAGE_API_TOKEN")
	}
	setupLogging(cfg.Log.Level)
	slog.Info("starting triage", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{checkModels: !skipModelCheck, progress: os.Stderr})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("closing resources", "error", err)
		}
	}()

	src, pub, closeDelivery, err := a.openDelivery(ctx)
	if err != nil {
		return fmt.Errorf("opening delivery channel: %w", err)
	}
	defer closeDelivery()

	consumerDone := make(chan struct{})
	go func() {
		a.consumer(src).Run(ctx)
		close(consumerDone)
	}()
	slog.Info("delivery consumer started", "backend", cfg.Delivery.Backend)

	handler := api.NewHandler(api.Deps{
		Engine:        a.engine,
		Store:         a.store,
		Analytics:     a.analytics,
		Publisher:     pub,
		Index:         a.similarity,
		Token:         cfg.API.Token,
		SubmitLimiter: api.NewSubmitLimiter(cfg.API.SubmitRate, cfg.API.SubmitBurst),
		Gatherer:      a.registry,
		Logger:        slog.Default().With("component", "api"),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("triage listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			stop()
			<-consumerDone
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	// In-flight messages finish before storage closes.
	<-consumerDone
	return err
}

func runWorker(skipModelCheck bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{checkModels: !skipModelCheck, progress: os.Stderr})
	if err != nil {
		return err
	}
	defer a.Close()

	src, _, closeDelivery, err := a.openDelivery(ctx)
	if err != nil {
		return fmt.Errorf("opening delivery channel: %w", err)
	}
	defer closeDelivery()

	slog.Info("worker started", "backend", cfg.Delivery.Backend)
	a.consumer(src).Run(ctx)
	slog.Info("worker stopped")
	return nil
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol; keep logs quiet unless asked.
	if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Engine:     a.engine,
		Complaints: a.store,
		Analytics:  a.analytics,
		Version:    version,
	})
	stdio := server.NewStdioServer(mcpSrv)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	httpClient := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := httpClient.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		running = resp.StatusCode == http.StatusOK
		if running {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if engine.NewOllamaEngine(cfg.Ollama.BaseURL).IsRunning(ctx) {
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	} else {
		printStatus("Ollama", "not running")
	}
	printStatus("Chat model", "%s", cfg.Ollama.ChatModel)
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Vector index", "%s (dimension %d)", cfg.Index.Backend, cfg.Index.Dimension)
	printStatus("Delivery", "%s", cfg.Delivery.Backend)

	if running && cfg.API.Token != "" {
		client := &apiClient{baseURL: serverURL, token: cfg.API.Token, httpClient: httpClient}
		if r, err := client.get(ctx, "/analytics"); err == nil {
			var snap struct {
				Total int `json:"total_complaints"`
			}
			if decodeJSON(r, &snap) == nil {
				printStatus("Complaints", "%d", snap.Total)
			}
		}
		if r, err := client.get(ctx, "/stats"); err == nil {
			var stats struct {
				Queue          map[string]int `json:"queue"`
				IndexedVectors int            `json:"indexed_vectors"`
			}
			if decodeJSON(r, &stats) == nil {
				printStatus("Queue", "%d pending, %d running, %d failed",
					stats.Queue["pending"], stats.Queue["running"], stats.Queue["failed"])
				if stats.IndexedVectors >= 0 {
					printStatus("Indexed vectors", "%d", stats.IndexedVectors)
				} else {
					printStatus("Indexed vectors", "unavailable")
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
