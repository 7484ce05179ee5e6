package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"synapse-node/consensus"
	"synapse-node/db"
	"synapse-node/epoch"
	"synapse-node/events"
	"synapse-node/handlers"
	"synapse-node/health"
	"synapse-node/logger"
	"synapse-node/mempool"
	"synapse-node/mesh"
	"synapse-node/models"
	"synapse-node/registry"
	"synapse-node/repository"
	"synapse-node/routers"
	"synapse-node/transport"
)

func main() {
	// Load config
	viper.SetConfigFile("config/config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}
	setDefaults()

	appLogFile := viper.GetString("log.app_log_file")
	logLevel := viper.GetString("log.level")

	if err := logger.InitLogger(appLogFile, logLevel); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}

	logger.Logger.Info("Starting synapse consensus node...")

	// Connect to LevelDB
	leveldbPath := viper.GetString("leveldb.path")
	ldb, err := db.NewLevelDB(leveldbPath)
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()

	blockRepo := repository.NewBlockRepository(ldb)
	bus := events.NewBus()

	minStake, err := uint256.FromDecimal(viper.GetString("consensus.min_stake"))
	if err != nil {
		logger.Logger.Fatal("Invalid consensus.min_stake", zap.Error(err))
	}
	reg := registry.NewRegistry(minStake, bus)

	// Local participant identity
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		logger.Logger.Fatal("Failed to generate node key", zap.Error(err))
	}
	localID := hex.EncodeToString(pub)
	logger.Logger.Info("Local participant identity", zap.String("participant_id", localID))

	verifier := consensus.NewEd25519Verifier()
	verifier.RegisterKey(localID, pub)
	signer := consensus.NewEd25519Signer(priv)

	localStake, err := uint256.FromDecimal(viper.GetString("consensus.local_stake"))
	if err != nil {
		logger.Logger.Fatal("Invalid consensus.local_stake", zap.Error(err))
	}
	if err := reg.Register(localID, localStake, nil); err != nil {
		logger.Logger.Fatal("Failed to register local participant", zap.Error(err))
	}

	// Collaborators
	meshClient := mesh.NewClient(
		viper.GetString("mesh.url"),
		localID,
		viper.GetDuration("mesh.timeout"),
	)
	pool := mempool.New()
	broadcast := transport.NewLoopback()

	// Consensus core
	selector := consensus.NewProposerSelector(
		viper.GetFloat64("consensus.stake_weight"),
		viper.GetFloat64("consensus.reputation_weight"),
	)
	assembler := consensus.NewBlockAssembler(meshClient, pool, blockRepo, signer)
	validator := consensus.NewBlockValidator(
		reg, selector, verifier, blockRepo, bus,
		viper.GetFloat64("consensus.min_consensus_threshold"),
		viper.GetDuration("consensus.pending_timeout"),
	)
	engine := consensus.NewEngine(
		viper.GetDuration("consensus.slot_interval"),
		reg, selector, assembler, validator, meshClient, broadcast,
	)

	epochCfg := epoch.Config{
		Duration:            viper.GetDuration("epoch.duration"),
		MaxInactivity:       viper.GetDuration("epoch.max_inactivity"),
		MaxWeightAdjustment: viper.GetFloat64("epoch.max_weight_adjustment"),
		MaxReputationChange: viper.GetFloat64("epoch.max_reputation_change"),
	}
	coordinator := epoch.NewCoordinator(epochCfg, reg, meshClient, meshClient, meshClient, bus)

	// Health and metrics. The reporter is a prometheus collector, so every
	// scrape computes fresh values.
	promRegistry := prometheus.NewRegistry()
	reporter := health.NewReporter(reg, blockRepo, epochCfg.MaxInactivity)
	promRegistry.MustRegister(reporter)

	// On each accepted block: drop its transactions from the pool and, when
	// a retention window is configured, prune blocks that fell out of it.
	retainBlocks := viper.GetInt64("leveldb.retain_blocks")
	sub, cancelSub := bus.Subscribe()
	defer cancelSub()
	go func() {
		for ev := range sub {
			if ev.Type != events.BlockAccepted {
				continue
			}
			b, ok := ev.Detail.(*models.Block)
			if !ok {
				continue
			}
			ids := make([]string, 0, len(b.Transactions))
			for _, tx := range b.Transactions {
				ids = append(ids, tx.ID)
			}
			pool.Remove(ids)

			if retainBlocks > 0 && b.Height > retainBlocks {
				pruned, err := blockRepo.PruneBlocksBefore(b.Height - retainBlocks + 1)
				if err != nil {
					logger.Logger.Error("Block pruning failed", zap.Error(err))
				} else if pruned > 0 {
					logger.Logger.Info("Pruned old blocks", zap.Int("count", pruned))
				}
			}
		}
	}()

	// The consensus tick and the epoch tick are independently stoppable
	engineCtx, stopEngine := context.WithCancel(context.Background())
	epochCtx, stopEpoch := context.WithCancel(context.Background())
	go engine.Run(engineCtx)
	go coordinator.Run(epochCtx)

	// HTTP API
	h := handlers.NewHandler(reg, reporter, blockRepo, pool, verifier)
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h, promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", viper.GetInt("server.port")),
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Logger.Info("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", viper.GetInt("server.port")))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")
	stopEngine()
	stopEpoch()
	srv.Close()
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("log.app_log_file", "logs/app.log")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("leveldb.path", "data/chain")
	viper.SetDefault("leveldb.retain_blocks", 0) // 0 keeps the full chain
	viper.SetDefault("mesh.url", "http://localhost:8545")
	viper.SetDefault("mesh.timeout", "5s")
	viper.SetDefault("consensus.slot_interval", "1s")
	viper.SetDefault("consensus.pending_timeout", "30s")
	viper.SetDefault("consensus.min_consensus_threshold", 0.67)
	viper.SetDefault("consensus.stake_weight", consensus.DefaultStakeWeight)
	viper.SetDefault("consensus.reputation_weight", consensus.DefaultReputationWeight)
	viper.SetDefault("consensus.min_stake", "0")
	viper.SetDefault("consensus.local_stake", "1000")
	viper.SetDefault("epoch.duration", "5m")
	viper.SetDefault("epoch.max_inactivity", "1h")
	viper.SetDefault("epoch.max_weight_adjustment", 0.1)
	viper.SetDefault("epoch.max_reputation_change", 0.1)
}
