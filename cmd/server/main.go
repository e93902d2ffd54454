package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leanpass/internal/api"
	"leanpass/internal/auth"
	"leanpass/internal/config"
	"leanpass/internal/db"
	"leanpass/internal/llm"
	"leanpass/internal/logger"
	"leanpass/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	completer := llm.New(cfg.LLMKey,
		llm.WithBaseURL(cfg.LLMBaseURL),
		llm.WithModel(cfg.LLMModel),
		llm.WithAttribution(cfg.LLMReferer, cfg.LLMTitle),
		llm.WithTimeout(cfg.LLMTimeout),
	)
	if !completer.Configured() {
		log.Warn("OPENROUTER_API_KEY not set; analysis endpoints will answer 503")
	}

	revoker, closeRevoker, err := newRevoker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRevoker()

	users := services.NewUserService(conn)
	subjects := services.NewSubjectService(conn)
	exams := services.NewExamService(conn, subjects, cfg.MaxUploadBytes)
	guides := services.NewStudyGuideService(conn)
	analysis := services.NewAnalysisService(exams, guides, completer, log.With("component", "analysis"))

	sessions := auth.NewSessions(auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL), revoker, users, cfg.CookieSecure)
	server := api.NewServer(api.Services{
		Users:    users,
		Subjects: subjects,
		Exams:    exams,
		Guides:   guides,
		Analysis: analysis,
	}, sessions, log.With("component", "api"), cfg.MaxUploadBytes)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Synchronous analysis waits on the model.
		WriteTimeout: cfg.LLMTimeout*3 + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "env", cfg.Env, "model", completer.Model())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newRevoker shares revocations through Redis when REDIS_URL is set and
// keeps them in memory otherwise.
func newRevoker(ctx context.Context, cfg config.Config, log *logger.Logger) (auth.Revoker, func(), error) {
	if cfg.RedisURL == "" {
		log.Info("using in-memory token revocation")
		return auth.NewMemoryRevoker(), func() {}, nil
	}
	redisRevoker, err := auth.NewRedisRevoker(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("using redis token revocation")
	return redisRevoker, func() {
		if err := redisRevoker.Close(); err != nil {
			log.Warn("close redis", "error", err)
		}
	}, nil
}
