package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/aura/internal/api"
	"github.com/kalambet/aura/internal/assistant"
	"github.com/kalambet/aura/internal/booking"
	"github.com/kalambet/aura/internal/config"
	"github.com/kalambet/aura/internal/dispatch"
	"github.com/kalambet/aura/internal/engine"
	"github.com/kalambet/aura/internal/extract"
	"github.com/kalambet/aura/internal/orchestrator"
	"github.com/kalambet/aura/internal/session"
	"github.com/kalambet/aura/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the A.U.R.A server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpStdio, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpStdio)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show A.U.R.A system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", true, "serve MCP tools over stdin/stdout")
}

// modelsFor returns the chat, fast and image models of the configured backend.
func modelsFor(cfg config.Config) assistant.Config {
	ac := assistant.Config{
		Name:          cfg.Assistant.Name,
		ContextTokens: cfg.Assistant.ContextTokens,
	}
	if cfg.Engine.Backend == config.BackendGemini {
		ac.ChatModel = cfg.Gemini.ChatModel
		ac.FastModel = cfg.Gemini.ChatModel
		ac.ImageModel = cfg.Gemini.ImageModel
		return ac
	}
	ac.ChatModel = cfg.Ollama.ChatModel
	ac.FastModel = cfg.Ollama.FastModel
	return ac
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func runServer(mcpStdio bool) error {
	fmt.Fprintf(os.Stderr, "aura version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	apiToken, err := config.GetAPIToken(config.DefaultSecrets())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.Detect(ctx, engine.DetectConfig{
		Backend:       cfg.Engine.Backend,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		GeminiAPIKey:  cfg.Gemini.APIKey,
	})
	if err != nil {
		return fmt.Errorf("detecting inference engine: %w", err)
	}
	models := modelsFor(cfg)
	if err := engine.EnsureReady(ctx, eng, []string{models.ChatModel, models.FastModel}, os.Stderr); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	catalog, err := booking.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("loading menu catalog: %w", err)
	}
	bookings := booking.NewService(store, catalog)

	sessions := session.NewManager(session.Config{
		NewLanguage: func(files *assistant.Files) orchestrator.Language {
			return assistant.New(eng, files, models)
		},
		Dispatcher:     dispatch.New(bookings.Handlers()),
		Extract:        extract.Text,
		Journal:        store,
		AssistantName:  cfg.Assistant.Name,
		MaxUploadBytes: int64(cfg.Upload.MaxBytes),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewHandler(api.Deps{
			Sessions:       sessions,
			Store:          store,
			Token:          apiToken,
			MaxUploadBytes: int64(cfg.Upload.MaxBytes),
		}),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("aura listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if mcpStdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Sessions: sessions, Store: store, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	return g.Wait()
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Engine", "%s", cfg.Engine.Backend)
	if cfg.Engine.Backend == config.BackendOllama {
		ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
		if err != nil {
			printStatus("Ollama", "not running")
		} else {
			ollamaResp.Body.Close()
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		}
	}

	models := modelsFor(cfg)
	printStatus("Chat model", "%s", models.ChatModel)
	printStatus("Fast model", "%s", models.FastModel)
	if models.ImageModel != "" {
		printStatus("Image model", "%s", models.ImageModel)
	}

	if running {
		if c, err := newAPIClient(); err == nil {
			c.httpClient = client
			var sessions []api.SessionView
			if resp, err := c.get(ctx, "/sessions"); err == nil && decodeJSON(resp, &sessions) == nil {
				printStatus("Sessions", "%d", len(sessions))
			}
			var orders []storage.Order
			if resp, err := c.get(ctx, "/orders?limit=100"); err == nil && decodeJSON(resp, &orders) == nil {
				printStatus("Orders", "%s", countLabel(len(orders), 100))
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
