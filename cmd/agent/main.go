package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"med-reminder/internal/attempts"
	"med-reminder/internal/config"
	"med-reminder/internal/dispatch"
	"med-reminder/internal/escalate"
	"med-reminder/internal/journal"
	"med-reminder/internal/media"
	"med-reminder/internal/session"
	"med-reminder/pkg/logger"
	"med-reminder/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// The agent worker receives job assignments from the platform over HTTP and
// drives each call to completion.

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

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	counter, err := attempts.NewRedisCounter(rdb, "")
	if err != nil {
		log.Error("attempt counter init failed", "err", err)
		os.Exit(1)
	}
	guard, err := attempts.NewRedisGuard(rdb)
	if err != nil {
		log.Error("line guard init failed", "err", err)
		os.Exit(1)
	}

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

	escalator, err := escalate.NewCoordinator(dispatcher, log)
	if err != nil {
		log.Error("escalation coordinator init failed", "err", err)
		os.Exit(1)
	}

	runner, err := session.NewRunner(session.RunnerConfig{
		SIP:        client,
		Rooms:      client,
		Dispatcher: dispatcher,
		Escalator:  escalator,
		Attempts:   counter,
		Guard:      guard,
		Journal:    jrnl,
		TrunkID:    cfg.Media.SIPTrunkID,
		NewSession: session.LogFactory(log),
		Log:        log,
	})
	if err != nil {
		log.Error("runner init failed", "err", err)
		os.Exit(1)
	}

	var jobs sync.WaitGroup

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// The platform posts one assignment per dispatched call. Jobs run in the
	// background: dialing with WaitUntilAnswered can take the better part of
	// a minute.
	r.POST("/jobs", func(c *gin.Context) {
		var job session.Job
		if err := c.ShouldBindJSON(&job); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if job.Room == "" || job.Metadata == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "room and metadata required"})
			return
		}
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			if _, err := runner.Run(rootCtx, job); err != nil {
				log.Error("job failed", "room", job.Room, "err", err)
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"accepted": true, "room": job.Room})
	})

	srv := &http.Server{
		Addr:              cfg.JobAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("agent worker listening", "addr", srv.Addr, "agent", cfg.Agent.Name, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("job server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("job server shutdown failed", "err", err)
	}

	done := make(chan struct{})
	go func() {
		jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("shutdown timeout with jobs still running")
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
