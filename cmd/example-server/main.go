package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gidyola79/VidioAgent/internal/logging"
)

func main() {
	configPath := flag.String("config", "server-config.yaml", "path to server config file")
	listenAddr := flag.String("listen", "", "override listen address")
	flag.Parse()

	if err := run(*configPath, *listenAddr); err != nil {
		fmt.Fprintf(os.Stderr, "example-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listenAddr string) error {
	config, err := LoadServerConfig(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		config.ListenAddr = listenAddr
	}

	logger, err := logging.New("", logging.ParseLevel(config.LogLevel))
	if err != nil {
		return err
	}
	defer logger.Close()
	logger = logger.Named("server")
	logger.Infof("VidioAgent example server starting, config %s", configPath)

	store := NewStore()
	if err := store.Seed(config.Businesses); err != nil {
		return fmt.Errorf("seed businesses: %w", err)
	}
	logger.Infof("seeded %d businesses", len(config.Businesses))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewServer(config, store, logger).Run(ctx)
}
