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

	"med-reminder/internal/auth"
	"med-reminder/internal/config"
	"med-reminder/internal/dispatch"
	"med-reminder/internal/httpapi"
	"med-reminder/internal/journal"
	"med-reminder/internal/media"
	"med-reminder/pkg/logger"
	"med-reminder/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
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

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	repo, err := journal.NewPostgresRepo(db)
	if err != nil {
		log.Error("journal init failed", "err", err)
		os.Exit(1)
	}
	jrnl := journal.NewService(repo)

	client, err := media.NewClient(media.ClientConfig{
		URL:       cfg.Media.URL,
		APIKey:    cfg.Media.APIKey,
		APISecret: cfg.Media.APISecret,
	})
	if err != nil {
		log.Error("media client init failed", "err", err)
		os.Exit(1)
	}

	dispatcher, err := dispatch.New(client, cfg.Agent.Name, jrnl, log)
	if err != nil {
		log.Error("dispatcher init failed", "err", err)
		os.Exit(1)
	}

	var authMW gin.HandlerFunc
	if cfg.Auth.JWTSecret != "" {
		mgr, err := auth.NewManager(cfg.Auth)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
		authMW = auth.RequireServiceToken(mgr)
	} else {
		log.Warn("service auth disabled; dispatch API is open")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, httpapi.Handlers{Dispatcher: dispatcher, Journal: jrnl}, authMW)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
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

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
