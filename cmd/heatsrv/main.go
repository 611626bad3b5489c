package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"
	"github.com/vctt94/heatracer/pkg/config"
	"github.com/vctt94/heatracer/pkg/server"
)

func main() {
	var (
		cfgPath     string
		listenAddr  string
		debugLevel  string
		turnTimeout time.Duration
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&listenAddr, "listen", "", "Override listen address, e.g. 0.0.0.0:8080")
	flag.StringVar(&debugLevel, "debuglevel", "", "Logging level: trace, debug, info, warn, error")
	flag.DurationVar(&turnTimeout, "turntimeout", -1, "Default phase timer (0 disables)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if debugLevel != "" {
		cfg.DebugLevel = debugLevel
	}
	if turnTimeout >= 0 {
		cfg.TurnTimeout = turnTimeout
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	backend := slog.NewBackend(os.Stdout)
	log := backend.Logger("HEAT")
	if level, ok := slog.LevelFromString(cfg.DebugLevel); ok {
		log.SetLevel(level)
	}

	srv := server.NewServer(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		os.Exit(1)
	}
}
