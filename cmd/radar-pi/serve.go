package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/yegors/radar-pi/internal/api"
	"github.com/yegors/radar-pi/internal/radar"
	"github.com/yegors/radar-pi/pkg/logger"
)

// runServe is the render server child. It serves until SIGTERM.
func runServe(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	host := fs.String("host", "127.0.0.1", "Listen host")
	port := fs.Int("port", 0, "Listen port")
	dataFile := fs.String("data", "", "Display record JSON file")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "console", "Log format (console, json)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return radar.ExitOK
		}
		return radar.ExitUsage
	}
	if *port <= 0 || *port > 65535 {
		fmt.Fprintf(stderr, "radar-pi serve: -port must be between 1 and 65535\n")
		return radar.ExitUsage
	}
	if *dataFile == "" {
		fmt.Fprintf(stderr, "radar-pi serve: -data is required\n")
		return radar.ExitUsage
	}

	log, err := logger.New(logger.Config{Level: *logLevel, Format: *logFormat})
	if err != nil {
		fmt.Fprintf(stderr, "radar-pi serve: %v\n", err)
		return radar.ExitUsage
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := api.NewRouter(*dataFile, log)
	if err := api.Serve(ctx, *host, *port, router.Routes(), log); err != nil {
		log.Error("Render server failed", logger.Error(err))
		return radar.ExitFailure
	}
	return radar.ExitOK
}
