// Command pulsed runs the Pulse monitoring and notification daemon.
// No flags. Exit code 0 on clean shutdown, non-zero only on config or
// storage initialization failure.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nugget/pulse/internal/buildinfo"
	"github.com/nugget/pulse/internal/pulseconfig"
	"github.com/nugget/pulse/internal/pulselog"
	"github.com/nugget/pulse/internal/supervisor"
)

func main() {
	cfgPath, err := pulseconfig.FindConfig("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "pulsed:", err)
		os.Exit(1)
	}

	cfg, err := pulseconfig.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pulsed: loading config:", err)
		os.Exit(1)
	}

	logger, err := pulselog.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pulsed:", err)
		os.Exit(1)
	}

	logger.Info("pulsed: starting", "build", buildinfo.String())

	sup, err := supervisor.New(cfg, logger)
	if err != nil {
		logger.Error("pulsed: startup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("pulsed: shutdown signal received")
		cancel()
	}()

	if err := sup.Run(ctx); err != nil {
		logger.Error("pulsed: exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("pulsed: stopped")
}
