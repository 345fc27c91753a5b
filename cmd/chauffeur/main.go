package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/udrive-hq/chauffeur/internal/bot"
	"github.com/udrive-hq/chauffeur/internal/config"
)

var VERSION = "dev"

func main() {
	envFile := pflag.String("env-file", ".env", "path to an env file to load before reading the environment")
	showVersion := pflag.Bool("version", false, "print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(VERSION)
		return
	}

	// A missing env file is fine; the environment may carry everything.
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "error loading env file:", err)
		os.Exit(1)
	}

	conf, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	var l *slog.Logger
	if conf.Debug {
		l = slog.Default()
	} else {
		l = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}

	b, err := bot.New(conf, l)
	if err != nil {
		l.Error("error building bot", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info("starting", "version", VERSION, "prefix", conf.Prefix, "sync_commands", conf.SyncCommands)

	if err := b.Run(ctx); err != nil {
		l.Error("fatal connection error", "error", err)
		os.Exit(1)
	}

	l.Info("stopped")
}
