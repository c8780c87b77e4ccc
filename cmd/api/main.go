package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"voice-routing/internal/audit"
	"voice-routing/internal/auth"
	"voice-routing/internal/calendar"
	"voice-routing/internal/calls"
	"voice-routing/internal/config"
	"voice-routing/internal/contacts"
	"voice-routing/internal/distance"
	"voice-routing/internal/ghl"
	"voice-routing/internal/metrics"
	"voice-routing/internal/routing"
	"voice-routing/internal/workspace"
	"voice-routing/pkg/logger"
	"voice-routing/pkg/utils"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	m := metrics.New()
	timeout := cfg.Routing.UpstreamTimeout

	crm := ghl.New(cfg.GHL, nil)
	estimator, err := distance.NewGoogleEstimator(distance.GoogleOptions{
		APIKey:  cfg.Maps.APIKey,
		BaseURL: cfg.Maps.BaseURL,
		Timeout: timeout,
	})
	if err != nil {
		log.Error("distance init failed", "err", err)
		os.Exit(1)
	}
	estimator.Observer = m

	checker := calendar.NewChecker(crm, timeout)
	checker.Observer = m
	booker := calendar.NewBooker(crm, timeout)
	booker.Observer = m
	resolver := contacts.NewResolver(crm, timeout)
	resolver.Observer = m

	selector := routing.NewSelector(checker, estimator)
	selector.Exclusions = m

	store := workspace.NewPostgresStore(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	deps := dependencies{
		Workflow: &routing.Workflow{
			Workspaces: store,
			Selector:   selector,
			Contacts:   resolver,
			Booker:     booker,
			Guard:      routing.NewRedisCallGuard(rdb, cfg.Routing.CallGuardTTL),
			Recorder:   routing.AuditAdapter{Audit: auditSvc},
			Counter:    m,
		},
		Calls:       calls.NewService(calls.NewPostgresRepo(db)),
		AgentAdmin:  store,
		Audit:       auditSvc,
		Metrics:     m,
		RequireAuth: auth.RequireAccessToken(authManager),
	}

	r := gin.New()
	r.Use(logger.Middleware(log))
	r.Use(logger.Recovery())
	registerRoutes(r, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// One routing run is several sequential upstream calls.
		WriteTimeout: 6*timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
