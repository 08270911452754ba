package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/catalog"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/config"
	kafkax "github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/kafka"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/logging"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/orders"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/postgres"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/redisx"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/stockwatch"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.Must(cfg.ServiceName + "-stockwatch")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	alerts := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockLow, 1024)
	alerts.Start(ctx)

	watcher := &stockwatch.Watcher{
		Ledger:          &catalog.PGLedger{DB: db},
		Redis:           rdb,
		Producer:        alerts,
		MinStockDefault: cfg.MinStockDefault,
		ServiceName:     cfg.ServiceName + "-stockwatch",
		Log:             log,
	}

	group := getenv("STOCKWATCH_GROUP", "stockwatch")
	workers, err := strconv.Atoi(getenv("STOCKWATCH_WORKERS", "4"))
	if err != nil || workers <= 0 {
		workers = 4
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderPlaced, workers, log)

	go func() {
		log.Info("consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicOrderPlaced),
			zap.Int("workers", workers),
		)
		if err := cons.Start(ctx, watcher.HandleOrderPlaced); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
	alerts.WaitClosed()
}
