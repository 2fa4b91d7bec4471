// Command gateway runs the multi-tenant Antigravity proxy: it loads
// configuration, wires the account pool to the upstream OAuth client,
// and serves the OpenAI/Anthropic/Gemini-compatible HTTP surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/api"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/cache"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/config"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/dispatcher"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/logging"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/pool"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/toolconv"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/upstream"
)

var (
	Version = "dev"
	Commit  = "none"
)

func main() {
	var configPath string
	var shutdownTimeout time.Duration
	flag.StringVar(&configPath, "config", "config.yaml", "path to the gateway's YAML config file")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests on shutdown")
	flag.Parse()

	if wd, err := os.Getwd(); err == nil {
		_ = godotenv.Load(filepath.Join(wd, ".env"))
	}

	if err := run(configPath, shutdownTimeout); err != nil {
		log.WithError(err).Error("gateway exited with error")
		os.Exit(1)
	}
}

func run(configPath string, shutdownTimeout time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Setup(logging.Options{
		Level:    cfg.LogLevel,
		JSON:     cfg.LogJSON,
		FilePath: cfg.LogFile,
	})
	log.Infof("antigravity gateway %s (%s) starting", Version, Commit)

	watcher, err := config.NewWatcher(configPath, cfg)
	if err != nil {
		log.WithError(err).Warn("config watcher disabled")
	} else {
		defer watcher.Close()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	upstreamClient := upstream.New(upstream.Options{
		CallTimeout:  cfg.Pool.UpstreamCallTimeout,
		ClientID:     os.Getenv("ANTIGRAVITY_CLIENT_ID"),
		ClientSecret: os.Getenv("ANTIGRAVITY_CLIENT_SECRET"),
	})

	poolManager, err := pool.NewManager(pool.Options{
		DataPath:         filepath.Join(cfg.DataDir, "accounts.json"),
		DefaultProjectID: cfg.Pool.DefaultProjectID,
		DefaultCooldown:  cfg.Pool.DefaultCooldown,
		RefreshSkew:      cfg.Pool.TokenRefreshSkew,
		RefreshTimeout:   cfg.Pool.TokenRefreshTimeout,
		Refresher:        upstreamClient,
		Discoverer:       upstreamClient,
	})
	if err != nil {
		return fmt.Errorf("init account pool: %w", err)
	}

	sigCache := cache.NewSignatureCache()
	toolNames := cache.NewToolNameCache()
	defer toolNames.Close()
	mapper := toolconv.NewMapper(toolNames)

	disp := dispatcher.New(poolManager, upstreamClient, mapper, sigCache)

	server := api.NewServer(disp, poolManager, cfg.AdminUsername, cfg.AdminPassword, cfg.JWTSecret)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Engine(),
	}

	return serveWithGracefulShutdown(httpServer, shutdownTimeout)
}

func serveWithGracefulShutdown(srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return <-errCh
}
