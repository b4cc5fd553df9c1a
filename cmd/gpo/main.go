package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gposync/internal/buildinfo"
	"github.com/dmitrijs2005/gposync/internal/client/cli"
	"github.com/dmitrijs2005/gposync/internal/client/config"
	"github.com/dmitrijs2005/gposync/internal/logging"
)

func main() {
	cfg, args, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(args) == 0 {
		buildinfo.PrintBuildData(os.Stdout)
	}

	logger, closer, err := logging.New(logging.Config{
		Backend: cfg.LogBackend,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := app.Run(ctx, args); err != nil {
		stop()
		closer.Close()
		log.Fatalf("%v", err)
	}
}
