package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"chronicle/aggregate"
	"chronicle/config"
	"chronicle/core/chronicle"
	"chronicle/core/events"
	"chronicle/observability/logging"
	"chronicle/rpc"
	"chronicle/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CHRONICLE_ENV"))
	logger := logging.Setup("chronicled", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	blobs, err := storage.NewBoltBlobStore(cfg.BlobPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to open blob store: %v", err))
	}
	defer blobs.Close()

	owner, err := cfg.Owner()
	if err != nil {
		logger.Error("invalid owner address", slog.Any("error", err))
		os.Exit(1)
	}
	factoryAddr, err := cfg.Factory()
	if err != nil {
		logger.Error("invalid factory address", slog.Any("error", err))
		os.Exit(1)
	}
	aggregatorAddr, err := cfg.Aggregator()
	if err != nil {
		logger.Error("invalid aggregator address", slog.Any("error", err))
		os.Exit(1)
	}

	store := chronicle.NewKVStorage(db)
	aggregator := aggregate.New(owner, store)
	factory, err := chronicle.NewFactory(chronicle.FactoryConfig{
		Address:        factoryAddr,
		Aggregator:     aggregator,
		AggregatorAddr: aggregatorAddr,
		Pauses:         aggregator,
		Store:          store,
		Blobs:          blobs,
		Emitter:        events.NewSlogEmitter(logger),
	})
	if err != nil {
		logger.Error("failed to open factory", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("chronicled starting",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("data_dir", cfg.DataDir),
	)

	server := rpc.NewServer(factory, aggregator, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
