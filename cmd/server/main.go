package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coldchain/domain/inventory"
	"coldchain/infra/kafka"
	"coldchain/infra/outbox"
	"coldchain/jobs/broadcaster"
	"coldchain/service"
	"coldchain/snapshot"
	"coldchain/wal"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var (
		walDir        = envOr("WAL_DIR", "./wal_data")
		outboxDir     = envOr("OUTBOX_DIR", "./outbox_data")
		snapshotPath  = envOr("SNAPSHOT_PATH", "./inventory.dat")
		brokers       = strings.Split(envOr("KAFKA_BROKERS", "localhost:9092"), ",")
		arrivalsTopic = envOr("KAFKA_ARRIVALS_TOPIC", "lot-arrivals")
		dispatchTopic = envOr("KAFKA_DISPATCH_TOPIC", "dispatch-events")
		group         = envOr("KAFKA_GROUP", "coldchain")
	)

	pool := inventory.NewOrderPool(1 << 16)
	tree := inventory.NewTree(pool)

	if err := snapshot.Load(snapshotPath, tree); err != nil {
		logger.Error("snapshot load failed", "path", snapshotPath, "err", err)
		os.Exit(1)
	}
	logger.Info("snapshot loaded", "path", snapshotPath, "lots", tree.Size())

	if n, err := service.Replay(walDir, tree); err != nil {
		logger.Error("journal replay failed", "err", err)
		os.Exit(1)
	} else if n > 0 {
		logger.Info("journal replayed", "records", n)
	}

	journal, err := wal.Open(wal.Config{Dir: walDir, FlushInterval: 2 * time.Second})
	if err != nil {
		logger.Error("journal open failed", "dir", walDir, "err", err)
		os.Exit(1)
	}

	ob, err := outbox.Open(outboxDir)
	if err != nil {
		logger.Error("outbox open failed", "dir", outboxDir, "err", err)
		os.Exit(1)
	}
	defer ob.Close()

	svc := service.New(tree, journal, ob, logger)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bc, err := broadcaster.New(ob, brokers, dispatchTopic, 500*time.Millisecond, logger)
	if err != nil {
		logger.Warn("broadcaster disabled", "err", err)
	} else {
		defer bc.Close()
		go bc.Run(ctx)
	}

	consumer := kafka.NewArrivalConsumer(brokers, arrivalsTopic, group, svc, logger)
	defer consumer.Close()
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logger.Error("arrival consumer stopped", "err", err)
			stop()
		}
	}()

	logger.Info("dispatch engine up",
		"snapshot", snapshotPath, "wal", walDir, "brokers", brokers)
	<-ctx.Done()

	if err := svc.Save(snapshotPath); err != nil {
		logger.Error("final save failed", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete", "lots", svc.Count())
}
