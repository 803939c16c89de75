package app

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

// Run is the process entrypoint used by cmd/onecar. It loads an optional
// .env file, builds the App, and serves until SIGINT or SIGTERM.
func Run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := NewLogger(cfg.Server.LogLevel, cfg.Server.LogFormat, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
