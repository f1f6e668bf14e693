// Entry point for the sfc autofill daemon: loopback HTTP API, optional MCP
// stdio transport, local Chrome lifecycle, SQLite-backed memory store.
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/superfill/sfc/aimatch"
	"github.com/superfill/sfc/autofill"
	"github.com/superfill/sfc/bridge"
	"github.com/superfill/sfc/browser"
	"github.com/superfill/sfc/config"
	"github.com/superfill/sfc/connectivity"
	"github.com/superfill/sfc/dbopen"
	"github.com/superfill/sfc/keyvault"
	"github.com/superfill/sfc/kit"
	"github.com/superfill/sfc/match"
	"github.com/superfill/sfc/memcat"
	"github.com/superfill/sfc/memstore"
	"github.com/superfill/sfc/observability"
	"github.com/superfill/sfc/pagehost"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	oneShotURL := flag.String("url", "", "detect forms on this URL, print JSON and exit")
	logLevel := flag.String("log-level", env("SFC_LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *oneShotURL, logger); err != nil {
		slog.Error("sfc", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, oneShotURL string, logger *slog.Logger) error {
	// Memory store.
	store, err := memstore.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	// Telemetry DB, separate so event churn never contends with memories.
	eventsDB, err := dbopen.Open(cfg.Storage.TelemetryPath, dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
	if err != nil {
		return fmt.Errorf("open telemetry: %w", err)
	}
	defer eventsDB.Close()
	events := observability.NewEventLogger(eventsDB)

	if err := observability.Cleanup(ctx, eventsDB, cfg.Telemetry.RetentionDays); err != nil {
		logger.Warn("telemetry cleanup", "error", err)
	}

	// Key vault, bound to a per-installation secret.
	secret, err := installationSecret(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("installation secret: %w", err)
	}
	vault, err := keyvault.New(store, secret)
	if err != nil {
		return fmt.Errorf("key vault: %w", err)
	}

	// Browser.
	browsers := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headless:         !cfg.Browser.Headful,
		Stealth:          cfg.Browser.Stealth,
		NavigateTimeout:  cfg.Browser.NavigateTimeout,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})
	if err := browsers.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer browsers.Close()

	// Page host behind the message router.
	router := connectivity.New(connectivity.WithLogger(logger))
	host := pagehost.New(
		func(ctx context.Context, pageURL string) (pagehost.PageSession, error) {
			return browsers.OpenSession(ctx, pageURL)
		},
		pagehost.WithUsageRecorder(store),
		pagehost.WithLogger(logger),
	)
	defer host.Close()
	host.Register(router)

	if oneShotURL != "" {
		return detectOnce(ctx, router, oneShotURL)
	}

	// Matching engine, AI-assisted when a provider is configured. Fallback
	// and capacity events land in the telemetry DB alongside run events.
	engineOpts := []match.Option{
		match.WithConfig(cfg.Match),
		match.WithLogger(logger),
		match.WithEventHook(func(ctx context.Context, event string) {
			events.LogEvent(ctx, observability.RunEvent{
				RunID:        kit.GetRunID(ctx),
				EventType:    event,
				FallbackUsed: event == match.EventFallbackUsed,
			})
		}),
	}
	bridgeOpts := []bridge.Option{bridge.WithLogger(logger)}
	if ai, err := buildMatcher(ctx, cfg, store, vault, logger); err != nil {
		logger.Warn("ai matcher disabled", "error", err)
	} else if ai != nil {
		engineOpts = append(engineOpts, match.WithAIMatcher(ai))
		bridgeOpts = append(bridgeOpts, bridge.WithCategorizer(
			memcat.New(memcat.WithAnalyzer(ai), memcat.WithLogger(logger))))
	}
	engine := match.New(engineOpts...)

	runner := autofill.New(router, store, engine,
		autofill.WithEventLogger(events),
		autofill.WithMaxMemories(cfg.Match.MaxMemories),
		autofill.WithLogger(logger),
	)

	api := bridge.New(store, vault, router, runner, bridgeOpts...)

	// Optional MCP stdio transport for agent integrations.
	if cfg.Server.MCPStdio {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "sfc", Version: "1.0.0"}, nil)
		api.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("mcp stdio", "error", err)
			}
		}()
	}

	// HTTP server.
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	api.RegisterHTTP(mux)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

// detectOnce runs a single detection pass and prints the response to stdout.
func detectOnce(ctx context.Context, router *connectivity.Router, pageURL string) error {
	payload, err := json.Marshal(autofill.DetectFormsRequest{URL: pageURL})
	if err != nil {
		return err
	}
	raw, err := router.Call(ctx, autofill.ServiceDetectForms, payload)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	var resp autofill.DetectFormsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("detect: %s", resp.Error)
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// buildMatcher assembles the AI matcher from settings, the key vault and
// config overrides. A nil matcher with nil error means the AI path is off.
func buildMatcher(ctx context.Context, cfg *config.Config, store *memstore.Store, vault *keyvault.Vault, logger *slog.Logger) (*aimatch.Matcher, error) {
	name := cfg.Provider.Name
	if name == "" {
		settings, err := store.GetSettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		name = settings.Provider
	}
	if name == "" || name == "none" {
		return nil, nil
	}
	provider, err := aimatch.ParseProvider(name)
	if err != nil {
		return nil, err
	}

	apiKey := cfg.Provider.APIKey
	if apiKey == "" && provider.RequiresKey() {
		apiKey, err = vault.GetKey(ctx, string(provider))
		if errors.Is(err, keyvault.ErrNoKey) {
			return nil, fmt.Errorf("no API key stored for %s", provider)
		}
		if err != nil {
			return nil, fmt.Errorf("unseal key: %w", err)
		}
	}

	opts := []aimatch.Option{aimatch.WithLogger(logger)}
	if cfg.Provider.Model != "" {
		opts = append(opts, aimatch.WithModel(cfg.Provider.Model))
	}
	return aimatch.New(provider, apiKey, opts...)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("SFC_CONFIG")
	}
	if path == "" {
		cfg := config.Default()
		applyEnv(cfg)
		return cfg, nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// applyEnv lets a few env vars override file values, for container use.
func applyEnv(cfg *config.Config) {
	if v := os.Getenv("SFC_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("SFC_DB"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SFC_BROWSER_REMOTE"); v != "" {
		cfg.Browser.Remote = v
	}
	if v := os.Getenv("SFC_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("SFC_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
}

// installationSecret loads the vault secret. SFC_SECRET wins; otherwise a
// random secret is generated once next to the database and reused.
func installationSecret(dbPath string) ([]byte, error) {
	if v := os.Getenv("SFC_SECRET"); v != "" {
		sum := sha256.Sum256([]byte(v))
		return sum[:], nil
	}

	path := filepath.Join(filepath.Dir(dbPath), "sfc.secret")
	if data, err := os.ReadFile(path); err == nil && len(data) >= 32 {
		return data[:32], nil
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		return nil, fmt.Errorf("persist secret: %w", err)
	}
	return secret, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
