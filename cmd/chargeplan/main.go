package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jameshartig/chargeplan/pkg/charger"
	"github.com/jameshartig/chargeplan/pkg/composite"
	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/server"
	"github.com/jameshartig/chargeplan/pkg/smartcharging"
	"github.com/jameshartig/chargeplan/pkg/storage"

	"github.com/levenlabs/go-lflag"
)

func main() {
	// init packages
	c := charger.Configured()
	s := storage.Configured()
	engine := composite.Configured()
	svc := smartcharging.Configured(s, engine)

	// init server
	srv := server.Configured(c, s, svc)

	// parse flags
	lflag.Configure()

	// lflag automatically sets llog's level, but we need to set the slog level
	level, err := log.LLogLevel()
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Ctx(ctx).InfoContext(ctx, "composite engine configured", slog.String("tieBreak", string(engine.TieBreak())))

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
