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

	"github.com/go-co-op/gocron/v2"

	"pongrt/internal/app/game"
	"pongrt/internal/app/presence"
	"pongrt/internal/configs"
	"pongrt/internal/handler"
	"pongrt/internal/pkg/auth/jwt"
	"pongrt/internal/pkg/logx"
)

const (
	inviteSweepInterval    = 5 * time.Second
	limiterCleanupInterval = time.Minute
	shutdownTimeout        = 10 * time.Second
)

func runServe(parent context.Context) error {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		return err
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("invite_ttl", cfg.InviteTTL).
		Str("gameplay_config", cfg.GameplayFile).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := connectInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer infra.Close()

	rooms := game.NewRoomManager(cfg.Gameplay, game.WithRecorder(infra.Recorder))
	hub := game.NewHub(game.HubDeps{
		Registry: presence.NewRegistry(),
		Lobby:    presence.NewLobby(),
		Names:    presence.NewNames(infra.NameStore, infra.NameResolver),
		Invites:  game.NewInviteBook(cfg.InviteTTL, nil),
		Rooms:    rooms,
	})

	deps := &handler.AppDeps{
		Config:         cfg,
		Hub:            hub,
		Verifier:       jwt.NewVerifier(cfg.JWTSecret),
		UpgradeLimiter: handler.NewUpgradeLimiter(),
	}
	if infra.Matches != nil {
		deps.Matches = infra.Matches
	}

	scheduler, err := startJobs(hub, deps)
	if err != nil {
		return err
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     handler.Router(deps),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logx.Info(fmt.Sprintf("Pong server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logx.Info("Received shutdown signal. Starting graceful shutdown...")
	case err := <-serverErr:
		logx.Error(err, "Server failed to start")
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	if err := scheduler.Shutdown(); err != nil {
		logx.Error(err, "Scheduler shutdown failed")
	}

	// Closes rooms and waits for pending match recordings.
	rooms.Shutdown()

	logx.Info("Server gracefully stopped.")
	return nil
}

// startJobs schedules the invitation sweep and the rate limiter cleanup.
func startJobs(hub *game.Hub, deps *handler.AppDeps) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	jobs := []struct {
		name     string
		interval time.Duration
		task     func()
	}{
		{"invite-sweep", inviteSweepInterval, func() { hub.SweepInvites() }},
		{"limiter-cleanup", limiterCleanupInterval, func() {
			if removed := deps.UpgradeLimiter.Cleanup(time.Now()); removed > 0 {
				logx.Info("Removed idle rate limiter buckets", "count", removed)
			}
		}},
	}

	for _, job := range jobs {
		if _, err := scheduler.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(job.task),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
	}

	scheduler.Start()
	return scheduler, nil
}
