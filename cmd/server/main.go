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

	router "github.com/dkeye/Screen/internal/adapters/http"
	ws "github.com/dkeye/Screen/internal/adapters/signal"
	"github.com/dkeye/Screen/internal/app/remote"
	"github.com/dkeye/Screen/internal/app/rooms"
	"github.com/dkeye/Screen/internal/config"
	"github.com/dkeye/Screen/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.DebugCounters() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	reg := core.NewRegistry()
	ctl := ws.NewController(reg, cfg.RemoteControlToken)
	roomEng := rooms.NewEngine(ctl, reg, cfg.AutoCreateRooms())
	remoteEng := remote.NewEngine(ctl, reg, roomEng, remote.Options{
		AllowSameMachine: cfg.SameMachineAllowed(),
		Debug:            cfg.DebugCounters(),
	})
	ctl.Bind(roomEng, remoteEng)

	r := router.SetupRouter(cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Screen server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
