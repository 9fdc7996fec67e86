package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/avetan/studio/internal/adapters/http"
	"github.com/avetan/studio/internal/app"
	"github.com/avetan/studio/internal/config"
	"github.com/avetan/studio/internal/devices"
	"github.com/avetan/studio/internal/record"
	"github.com/avetan/studio/internal/roomapi"
	"github.com/avetan/studio/internal/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	machine := session.NewMachine()
	registry := devices.NewRegistry(devices.NewSyntheticEnumerator(), cfg.DevicePoll, machine)
	coordinator := record.NewCoordinator(record.NewDrainRecorder())
	api := roomapi.NewClient(cfg.APIBase)
	agent := app.NewAgent(cfg, machine, coordinator, registry, api)

	go machine.Run(ctx)
	go registry.Watch(ctx)

	if err := agent.JoinRoom(ctx); err != nil {
		log.Error().Err(err).Msg("failed to join room")
	}

	token := router.NewControlToken()
	log.Info().Str("token", token).Msg("control API token")

	r := router.SetupRouter(cfg, agent, token)
	addr := fmt.Sprintf(":%d", cfg.ControlPort)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("studio agent started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	agent.Leave(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Agent exited gracefully")
}
