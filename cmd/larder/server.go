package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/larder/internal/api"
	"github.com/kalambet/larder/internal/config"
	"github.com/kalambet/larder/internal/importer"
	"github.com/kalambet/larder/internal/querycache"
	"github.com/kalambet/larder/internal/recipes"
	"github.com/kalambet/larder/internal/remote"
	"github.com/kalambet/larder/internal/storage"
	"github.com/kalambet/larder/internal/todos"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the larder server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running larder server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show larder server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "larder.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// newLogHandler builds the slog handler selected by log.format.
func newLogHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "pretty":
		l := charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
			Prefix:          "larder",
		})
		l.SetLevel(charmlog.Level(level))
		return l
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "larder version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(newLogHandler(os.Stderr, cfg.Log))
	slog.SetDefault(logger)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("larder is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("larder is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()

	collection, err := recipes.Open(recipes.WithPersistence(store), recipes.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("opening recipe collection: %w", err)
	}
	defer collection.Close()

	todoList, err := todos.Open(todos.WithPersistence(store), todos.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("opening todo list: %w", err)
	}

	cache := querycache.New(querycache.WithGCTime(cfg.Cache.GCTime), querycache.WithLogger(logger))
	go cache.Run(ctx, time.Minute)

	github := remote.NewGitHub(cfg.GitHub.BaseURL,
		remote.WithToken(cfg.GitHub.Token),
		remote.WithRateLimit(cfg.GitHub.RequestsPerSecond),
		remote.WithLogger(logger),
	)
	posts := remote.NewPosts(cfg.Posts.BaseURL, remote.WithLogger(logger))
	catalog := remote.NewCatalog(cfg.Catalog.URL, remote.WithLogger(logger))

	deps := api.Deps{
		Recipes:        collection,
		Todos:          todoList,
		Cache:          cache,
		GitHub:         github,
		Posts:          posts,
		Catalog:        catalog,
		Importer:       importer.New(logger),
		Token:          cfg.Server.APIToken,
		CatalogPath:    cfg.Catalog.URL,
		StaleTime:      cfg.Cache.StaleTime,
		RecommendLimit: cfg.Recommend.Limit,
		Logger:         logger,
	}
	handler := api.NewHandler(deps)

	if prefetch := api.PrefetchPosts(ctx, deps); prefetch != nil {
		defer prefetch.Cancel()
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Recipes:        collection,
			RecommendLimit: cfg.Recommend.Limit,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", "error", err)
			}
		}()
		logger.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("larder listening", "addr", addr, "recipes", collection.Len())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("larder is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop larder (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to larder (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var health struct {
			Recipes int `json:"recipes"`
			Cached  int `json:"cached"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&health)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
			if decodeErr == nil {
				printStatus("Recipes", "%d", health.Recipes)
				printStatus("Cached queries", "%d", health.Cached)
			}
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir)); err == nil {
		printStatus("PID", "%d", pid)
	}
	printStatus("GitHub", "%s (token %s)", cfg.GitHub.BaseURL, tokenLabel(cfg.GitHub.Token))
	printStatus("Posts", "%s", cfg.Posts.BaseURL)
	if cfg.Catalog.URL != "" {
		printStatus("Catalog", "%s", cfg.Catalog.URL)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func tokenLabel(token string) string {
	if token == "" {
		return "not set"
	}
	return "set"
}
