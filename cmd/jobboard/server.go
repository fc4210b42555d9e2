package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	"github.com/kalambet/jobboard/internal/api"
	"github.com/kalambet/jobboard/internal/config"
	"github.com/kalambet/jobboard/internal/db"
	"github.com/kalambet/jobboard/internal/listing"
	"github.com/kalambet/jobboard/internal/outbox"
	"github.com/kalambet/jobboard/internal/profile"
	"github.com/kalambet/jobboard/internal/storage"
	"github.com/kalambet/jobboard/internal/storage/pgstore"
	"github.com/kalambet/jobboard/internal/sweeper"
	"github.com/kalambet/jobboard/internal/watchlist"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the jobboard server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpMode, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpMode)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running jobboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show jobboard server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "jobboard.pid")
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

func logLevel(name string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// openRepository opens the storage backend selected by storage.driver.
func openRepository(ctx context.Context, cfg config.Config) (storage.Repository, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		s, err := pgstore.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return s, nil
	default:
		s, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		return s, nil
	}
}

// openFeed returns the Redis change feed and filter cache when redis.url is
// set, and in-process ones otherwise.
func openFeed(ctx context.Context, cfg config.Config) (watchlist.Feed, listing.Cache, func(), error) {
	if cfg.Redis.URL == "" {
		return watchlist.NewLocalFeed(), listing.NewMemoryCache(), func() {}, nil
	}
	rdb, err := db.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			slog.Warn("closing redis", "error", err)
		}
	}
	return watchlist.NewRedisFeed(rdb), listing.NewRedisCache(rdb), closeFn, nil
}

func runServer(mcpMode bool) error {
	fmt.Fprintf(os.Stderr, "jobboard version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start twice.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("jobboard is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("jobboard is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()
	slog.Info("storage ready", "driver", cfg.Storage.Driver)

	feed, filterCache, closeRedis, err := openFeed(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRedis()

	hub := watchlist.NewHub(repo, feed, watchlist.Options{Concurrency: cfg.Watch.Concurrency})
	defer hub.Close()

	worker := outbox.NewWorker(repo, feed, 500*time.Millisecond)
	go worker.Run(ctx)

	sweep := sweeper.New(repo, feed, cfg.Sweep.Schedule)
	if err := sweep.Start(ctx); err != nil {
		return fmt.Errorf("starting sweeper: %w", err)
	}
	defer sweep.Stop()

	handler := api.NewAppHandler(api.AppDeps{
		Repo:       repo,
		Profiles:   profile.NewManager(repo),
		Hub:        hub,
		Cache:      filterCache,
		Categories: listing.DefaultCategories,
		Token:      apiToken,
	})

	if mcpMode {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Repo:       repo,
			Hub:        hub,
			Categories: listing.DefaultCategories,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConns)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "jobboard listening on %s\n", addr)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
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
		printError("jobboard is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop jobboard (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to jobboard (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
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

	printStatus("Storage", "%s", cfg.Storage.Driver)
	if cfg.Redis.URL != "" {
		printStatus("Change feed", "redis")
	} else {
		printStatus("Change feed", "in-process")
	}
	printStatus("Sweep", "%s", cfg.Sweep.Schedule)

	if running {
		if c, err := newAPIClient(); err == nil {
			c.httpClient = client
			if resp, err := c.get(ctx, "/postings"); err == nil {
				var postings []json.RawMessage
				if decodeJSON(resp, &postings) == nil {
					printStatus("Postings", "%d", len(postings))
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
