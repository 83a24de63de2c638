// Command anchor-core is the anchoring process entrypoint: it loads
// configuration, opens the Postgres connection, wires the
// candidate/Merkle/emit collaborators into an AnchorCoordinator, and
// runs the coordinator, the ReadinessScheduler and the GarbageCollector
// on their own timers until signalled to stop. Grounded on the
// teacher's abci-service.go main(), adapted from a single Tendermint
// node process to three independently ticking loops.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tmflags "github.com/tendermint/tendermint/libs/cli/flags"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/chainpoint/anchor-core/candidate"
	"github.com/chainpoint/anchor-core/config"
	"github.com/chainpoint/anchor-core/coordinator"
	"github.com/chainpoint/anchor-core/emit"
	"github.com/chainpoint/anchor-core/gc"
	"github.com/chainpoint/anchor-core/merkle"
	"github.com/chainpoint/anchor-core/ports"
	"github.com/chainpoint/anchor-core/scheduler"
	"github.com/chainpoint/anchor-core/store"
	"github.com/chainpoint/anchor-core/util"
)

func main() {
	conf, err := config.Load(util.GetEnv("ANCHOR_CONFIG_DIR", "."))
	if util.LogError(err) != nil {
		os.Exit(1)
	}

	logger := initLogger(conf.LogLevel)

	pg, err := store.NewPostgres(conf.PostgresURI, logger)
	if util.LoggerError(logger, err) != nil {
		os.Exit(1)
	}
	if err := pg.EnsureSchema(); util.LoggerError(logger, err) != nil {
		os.Exit(1)
	}

	requests := store.NewRequestStore(pg)
	anchors := store.NewAnchorStore(pg)
	transactions := store.NewTransactionStore(pg)
	logLatestTransaction(context.Background(), transactions, logger)

	streams, contentStore, blockchain, events := productionAdapters(conf, logger)

	selector := candidate.NewDefaultSelector(streams, requests, logger)
	builder := merkle.NewMerkleBuilder(contentStore, conf.MerkleDepthLimit)
	emitter := emit.NewAnchorEmitter(contentStore, logger)

	anchorCoordinator := &coordinator.AnchorCoordinator{
		Requests:          requests,
		Anchors:           anchors,
		Transactions:      transactions,
		Selector:          selector,
		Builder:           builder,
		Emitter:           emitter,
		Blockchain:        blockchain,
		ContentStore:      contentStore,
		Limit:             conf.StreamLimit,
		PubsubTopic:       conf.PubsubTopic,
		MaxAnchorAttempts: conf.MaxAnchorAttempts,
		Logger:            logger.With("module", "coordinator"),
	}

	readinessScheduler := &scheduler.ReadinessScheduler{
		Requests:           requests,
		Events:             events,
		StreamLimit:        conf.StreamLimit,
		MinStreamCount:     conf.MinStreamCount,
		ReadyRetryInterval: conf.ReadyRetryInterval.Milliseconds(),
		Logger:             logger.With("module", "scheduler"),
	}

	collector := &gc.GarbageCollector{
		Requests:     requests,
		Streams:      streams,
		ExpiryWindow: conf.ExpiryWindow,
		Logger:       logger.With("module", "gc"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	trapSignal(logger, cancel)

	go runEvery(ctx, conf.SchedulerInterval, func() {
		_ = util.LoggerError(logger, readinessScheduler.EmitAnchorEventIfReady(ctx))
	})
	go runEvery(ctx, conf.CoordinatorInterval, func() {
		_ = util.LoggerError(logger, anchorCoordinator.AnchorRequests(ctx))
	})
	go runEvery(ctx, conf.GCInterval, func() {
		_ = util.LoggerError(logger, collector.CollectPinnedStreams(ctx))
	})

	logger.Info("anchor-core started")
	<-ctx.Done()
	logger.Info("anchor-core shutting down")
}

// logLatestTransaction reports the most recent confirmed anchor
// transaction at startup, the way the teacher's node logs its last
// known chain state before resuming work.
func logLatestTransaction(ctx context.Context, transactions *store.TransactionStore, logger log.Logger) {
	tx, err := transactions.FindLatest(ctx)
	if util.LoggerError(logger, err) != nil {
		return
	}
	if tx == nil {
		logger.Info("no prior anchor transaction found")
		return
	}
	logger.Info("resuming after prior anchor transaction", "chainId", tx.ChainID, "txHash", tx.TxHash, "blockNumber", tx.BlockNumber)
}

// runEvery runs fn immediately and then every interval until ctx is
// cancelled, mirroring the teacher's SyncMonitor sleep-then-act loop.
func runEvery(ctx context.Context, interval time.Duration, fn func()) {
	fn()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func trapSignal(logger log.Logger, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Info("received signal, stopping", "signal", sig.String())
		cancel()
	}()
}

func initLogger(level string) log.Logger {
	logger := log.NewTMLogger(log.NewSyncWriter(os.Stdout))
	if level == "" {
		level = "info"
	}
	filtered, err := tmflags.ParseLogLevel(level, logger, "info")
	if err != nil {
		return logger.With("module", "main")
	}
	return filtered.With("module", "main")
}

// productionAdapters constructs the ports implementations this
// process runs against. anchor-core depends only on the ports
// interfaces; wiring a real blockchain node, content-addressed store,
// stream service and event bus is a deployment concern external to
// this repository, so this constructor is the single seam a
// downstream build replaces.
func productionAdapters(conf config.Config, logger log.Logger) (ports.StreamService, ports.ContentStore, ports.BlockchainClient, ports.EventProducer) {
	panic("productionAdapters: no production ports.StreamService/ContentStore/BlockchainClient/EventProducer adapter is wired into this build; inject one from the deployment that embeds anchor-core")
}
