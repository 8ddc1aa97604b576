package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/storage-adapters/catalog"
	"github.com/ruteri/storage-adapters/cmd/flags"
	"github.com/ruteri/storage-adapters/config"
	"github.com/ruteri/storage-adapters/httpserver"
	"github.com/ruteri/storage-adapters/metrics"
	"github.com/ruteri/storage-adapters/registry"
	"github.com/urfave/cli/v2"
)

var listenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

func main() {
	app := &cli.App{
		Name:  "storage-server",
		Usage: "Serve named storage adapters over HTTP",
		Flags: append([]cli.Flag{
			listenAddrFlag,
			flags.ConfigFlag,
			flags.StoreFlag,
			flags.VaultCertFlag,
			flags.VaultKeyFlag,
		}, flags.CommonFlags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := flags.LoadStores(cCtx)
	if err != nil {
		logger.Error("Failed to load store configuration", "err", err)
		return err
	}
	if len(cfg.Stores) == 0 {
		return errors.New("no stores configured, use --config or --store")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registry.New(logger, registry.WithObserver(metrics.Observer{}))
	if err := config.Apply(ctx, cfg, flags.StorageFactory(cCtx, logger), reg, logger); err != nil {
		logger.Error("Failed to register stores", "err", err)
		return err
	}
	logger.Info("Stores registered", "stores", reg.Names())

	handler := httpserver.NewHandler(reg, catalog.NewCollection(logger), logger)
	server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cCtx.String(listenAddrFlag.Name)), handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}
