package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/atlasstudy/atlas/internal/api"
	"github.com/atlasstudy/atlas/internal/auth"
	"github.com/atlasstudy/atlas/internal/completion"
	"github.com/atlasstudy/atlas/internal/config"
	"github.com/atlasstudy/atlas/internal/extract"
	"github.com/atlasstudy/atlas/internal/logger"
	"github.com/atlasstudy/atlas/internal/objectstore"
	"github.com/atlasstudy/atlas/internal/resolve"
	"github.com/atlasstudy/atlas/internal/storage"
	"github.com/atlasstudy/atlas/internal/study"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Atlas HTTP API (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the study tools over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		email, _ := cmd.Flags().GetString("email")
		if user == "" {
			return fmt.Errorf("--user is required")
		}
		return runMCP(auth.Identity{UserID: user, Email: email})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Atlas server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	mcpCmd.Flags().String("user", "", "user ID the tools act as")
	mcpCmd.Flags().String("email", "", "email recorded for the user")
}

// app holds the process-wide collaborators shared by serve and mcp.
type app struct {
	cfg     config.Config
	log     *logger.Logger
	store   *storage.Store
	objects objectstore.Store
	study   *study.Service
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	llm, err := completion.NewClient(cfg.Completion.APIKey, cfg.Completion.BaseURL, cfg.Completion.Model, cfg.Completion.TimeoutDuration())
	if err != nil {
		return nil, err
	}

	objects, err := objectstore.New(cfg.ObjectStore, log)
	if err != nil {
		return nil, fmt.Errorf("opening object store: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	resolver := resolve.New(objects, extract.New(log), objects.Bucket(), log)
	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		objects: objects,
		study:   study.New(resolver, llm, store, log),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing storage", "error", err)
	}
	a.log.Sync()
}

func runServer() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	verifier, err := auth.NewVerifier(a.cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("%w (set ATLAS_AUTH_JWT_SECRET)", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewHandler(api.Deps{
		Study:    a.study,
		Store:    a.store,
		Objects:  a.objects,
		Verifier: verifier,
		Log:      a.log,
	})

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("atlas listening", "addr", addr, "version", version, "model", a.cfg.Completion.Model, "objectstore", a.cfg.ObjectStore.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP(user auth.Identity) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Study: a.study,
		Store: a.store,
		User:  user,
	})
	a.log.Info("MCP server started (stdio transport)", "user", user.UserID)

	err = server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func showStatus() error {
	client, err := newAPIClient()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	printStatus("Server", "%s", serverStatus(ctx, client))
	printStatus("Completion", "%s", completionStatus(ctx, client.cfg.Completion))
	printStatus("Object store", "%s (bucket %s)", client.cfg.ObjectStore.Backend, client.cfg.ObjectStore.Bucket)
	printStatus("Data dir", "%s", client.cfg.Storage.DataDir)
	return nil
}

func serverStatus(ctx context.Context, client *apiClient) string {
	resp, err := client.get(ctx, "/health")
	if err != nil {
		return "stopped"
	}
	var health struct {
		Status        string `json:"status"`
		SchemaVersion int    `json:"schema_version"`
	}
	if err := decodeJSON(resp, &health); err != nil {
		return fmt.Sprintf("unhealthy (%v)", err)
	}
	return fmt.Sprintf("running at %s (schema v%d)", client.baseURL, health.SchemaVersion)
}

// completionStatus lists the provider's models, which checks both the
// endpoint and the API key without spending tokens.
func completionStatus(ctx context.Context, cfg config.CompletionConfig) string {
	if cfg.APIKey == "" {
		return "API key not set (ATLAS_COMPLETION_API_KEY)"
	}
	llm, err := completion.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.TimeoutDuration())
	if err != nil {
		return fmt.Sprintf("misconfigured (%v)", err)
	}

	models, err := llm.ListModels(ctx)
	if err != nil {
		return fmt.Sprintf("unreachable (%v)", err)
	}
	for _, m := range models {
		if m.ID == llm.Model() {
			return fmt.Sprintf("ok, %s available at %s", llm.Model(), cfg.BaseURL)
		}
	}
	return fmt.Sprintf("reachable, but model %s is not listed", llm.Model())
}
