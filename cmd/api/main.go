package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"taskReminder/internal/app"
	"taskReminder/internal/config"

	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yml", "путь к файлу конфигурации YAML")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintln(os.Stderr, "task-reminder:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	a := app.New(cfg)
	if err := a.Init(ctx); err != nil {
		return err
	}
	return a.Run(ctx)
}
