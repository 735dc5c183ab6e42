package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"todolists/internal/app"
	"todolists/internal/config"
	"todolists/internal/logging"
	"todolists/internal/session"
	"todolists/internal/store"
)

const purgeInterval = 10 * time.Minute

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("session store unavailable", "backend", cfg.SessionBackend, "err", err)
		return err
	}
	defer sessions.Close()

	cookies, err := session.NewCookies(cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure)
	if err != nil {
		return err
	}
	service := app.New(sessions, cookies, logger)
	httpServer, err := app.NewHTTPServer(service, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go purgeExpired(ctx, sessions, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "backend", cfg.SessionBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", "err", err)
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
		return err
	}
	logger.Info("stopped")
	return nil
}

func openSessionStore(ctx context.Context, cfg config.Config, logger *log.Logger) (session.Store, error) {
	switch cfg.SessionBackend {
	case config.BackendRedis:
		return session.NewRedisStore(cfg.RedisURL)
	case config.BackendPostgres:
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.ApplyMigrations(ctx, db, migrationsFS(cfg)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		return store.NewPostgresSessionStore(db), nil
	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store.NewSQLiteSessionStore(db), nil
	default:
		logger.Warn("sessions are kept in memory and lost on restart")
		return session.NewMemoryStore(), nil
	}
}

// migrationsFS prefers an on-disk directory when one is configured.
func migrationsFS(cfg config.Config) fs.FS {
	if dir := strings.TrimSpace(cfg.MigrationsDir); dir != "" {
		return os.DirFS(dir)
	}
	return store.Migrations()
}

// purgeExpired drops expired sessions from backends that do not expire
// entries on their own. Redis relies on key TTLs.
func purgeExpired(ctx context.Context, sessions session.Store, logger *log.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		switch s := sessions.(type) {
		case *session.MemoryStore:
			if n := s.PurgeExpired(); n > 0 {
				logger.Debug("purged expired sessions", "count", n)
			}
		case *store.SessionStore:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired sessions failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired sessions", "count", n)
			}
		default:
			return
		}
	}
}
