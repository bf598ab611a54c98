package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"taskmaster/internal/app"
	"taskmaster/internal/config"
	"taskmaster/internal/logging"
	"taskmaster/internal/notify"
	"taskmaster/internal/ui"
)

func main() {
	configPath := flag.String("config", config.ResolveConfigPath(), "path to config.toml")
	headless := flag.Bool("headless", false, "run the reminder scheduler without the UI, logging to stderr")
	flag.Parse()

	cfg, err := config.LoadOrCreate(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *headless {
		os.Exit(runHeadless(cfg))
	}
	os.Exit(runUI(cfg))
}

func runUI(cfg config.Config) int {
	logger, closer, err := logging.New(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		fmt.Printf("failed to open log: %v\n", err)
		return 1
	}
	defer closer.Close()

	term := notify.NewTerminal(os.Stdout)
	a, err := app.Open(cfg, logger, notify.Multi{term, notify.NewLog(logger)})
	if err != nil {
		fmt.Printf("failed to open database: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a.Start(ctx)
	runErr := ui.Run(a.Core, cfg, term.Alerts())
	cancel()

	if err := a.Close(); err != nil {
		logger.Error().Err(err).Msg("close failed")
	}
	if runErr != nil {
		fmt.Printf("error running program: %v\n", runErr)
		return 1
	}
	return 0
}

func runHeadless(cfg config.Config) int {
	logger := logging.Console(cfg.LogLevel)
	a, err := app.Open(cfg, logger, notify.NewLog(logger))
	if err != nil {
		logger.Error().Err(err).Msg("failed to open database")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	a.Start(ctx)
	logger.Info().Str("db", cfg.DBPath).Int("tasks", a.Store.Len()).Msg("running headless, ctrl+c to stop")
	<-ctx.Done()

	return closeApp(a, logger)
}

func closeApp(a *app.App, logger zerolog.Logger) int {
	if err := a.Close(); err != nil {
		logger.Error().Err(err).Msg("close failed")
		return 1
	}
	return 0
}
