package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"clubattendance/internal/api"
	"clubattendance/internal/attendance"
	"clubattendance/internal/auth"
	"clubattendance/internal/config"
	"clubattendance/internal/logger"
	"clubattendance/internal/queue"
	"clubattendance/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	lg, err := logger.New(logger.ParseLevel(cfg.LogLevel), cfg.LogDir)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Close()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, lg); err != nil {
		lg.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App, lg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := map[string]api.HealthCheck{}

	recordStore, dbHealth, closeStore, err := openStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeStore()
	if dbHealth != nil {
		health["db"] = dbHealth
	}

	var redisClient *store.Redis
	if cfg.QueueBackend == "redis" || cfg.SettingsBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		health["redis"] = redisClient.Healthy
	}

	var q queue.Queue
	var tally api.Summarizer
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
		go drainLocally(ctx, q, lg)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
		tally = store.NewTally(redisClient.Client)
	}

	engine := attendance.NewEngine(attendance.DefaultConfig(), cfg.Location)
	var settings api.SettingsSaver
	if cfg.SettingsBackend == "redis" {
		shared := store.NewSettingsStore(redisClient.Client)
		settings = shared
		syncSettings(ctx, shared, engine, lg)
		startSettingsLoop(ctx, shared, engine, cfg.SettingsSyncInterval, lg)
	} else {
		lg.Infof("attendance settings are per-process (SETTINGS_BACKEND=%s)", cfg.SettingsBackend)
	}

	svc := attendance.NewService(engine, recordStore, cfg.DedupPolicy, lg)
	if cfg.AdminPasswordHash == "" {
		lg.Warnf("ADMIN_PASSWORD_HASH not set, admin login disabled")
	}

	h := api.NewHandler(api.Deps{
		Service:  svc,
		Signer:   auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Admin:    auth.NewAdminCredentials(cfg.AdminUsername, cfg.AdminPasswordHash),
		Queue:    q,
		Settings: settings,
		Tally:    tally,
		Health:   health,
		Log:      lg,
	})
	router := api.NewRouter(h, api.RouterOptions{RateLimitPerMin: cfg.RateLimitPerMin, Production: cfg.Production()})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Infof("starting server on :%s (store=%s, queue=%s, dedup=%s, tz=%s)",
			cfg.HTTPPort, cfg.StoreBackend, cfg.QueueBackend, cfg.DedupPolicy, cfg.Location)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	lg.Infof("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Errorf("server forced shutdown: %v", err)
	}
	lg.Infof("server exited")
	return nil
}

// openStore opens the configured record store; the health check is nil for the memory backend.
func openStore(ctx context.Context, cfg config.App, lg *logger.Logger) (attendance.Store, api.HealthCheck, func(), error) {
	if cfg.StoreBackend == "memory" {
		lg.Warnf("using in-memory attendance store, records are lost on restart")
		return attendance.NewMemoryStore(), nil, func() {}, nil
	}

	dsn := cfg.DatabaseURL
	if cfg.StoreBackend == store.BackendSQLite {
		dsn = cfg.SQLitePath
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, nil, err
			}
		}
	}
	db, err := store.NewDB(cfg.StoreBackend, dsn)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	lg.Infof("%s store ready", cfg.StoreBackend)
	return attendance.NewRepository(db.Client), db.Healthy, func() { _ = db.Close() }, nil
}

// drainLocally consumes the in-memory queue so publishes never block when no worker runs.
func drainLocally(ctx context.Context, q queue.Queue, lg *logger.Logger) {
	msgs, err := q.Consume(ctx)
	if err != nil {
		lg.Errorf("local queue consume failed: %v", err)
		return
	}
	for msg := range msgs {
		lg.Debugf("local queue: %s %s", msg.Type, msg.Body)
	}
}

func syncSettings(ctx context.Context, shared *store.SettingsStore, engine *attendance.Engine, lg *logger.Logger) {
	s, ok, err := shared.Load(ctx)
	switch {
	case err != nil:
		lg.Warnf("settings sync: %v", err)
	case ok:
		engine.Restore(s)
	default:
		if err := shared.Save(ctx, engine.Settings()); err != nil {
			lg.Warnf("settings seed: %v", err)
		}
	}
}

func startSettingsLoop(ctx context.Context, shared *store.SettingsStore, engine *attendance.Engine, every time.Duration, lg *logger.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				syncSettings(ctx, shared, engine, lg)
			}
		}
	}()
}
