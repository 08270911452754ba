package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/catalog"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/checkout"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/config"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/httpx"
	kafkax "github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/kafka"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/logging"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/orders"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/postgres"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/redisx"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/reports"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.Must(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MigrationsDir != "" {
		if err := postgres.Migrate(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	placed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	placed.Start(ctx)
	statusChanged := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	statusChanged.Start(ctx)

	ledger := &catalog.PGLedger{DB: db}
	store := &orders.PGStore{DB: db}

	defaultChannel, ok := orders.ParseChannel(cfg.DefaultChannel)
	if !ok {
		log.Fatal("unknown default channel", zap.String("channel", cfg.DefaultChannel))
	}

	handler := &httpx.Handler{
		Checkout: &checkout.Service{
			Ledger:         ledger,
			Store:          store,
			DefaultChannel: defaultChannel,
			Log:            log,
		},
		Orders: &orders.Service{
			Store:  store,
			Strict: cfg.StrictStatusFlow,
			Log:    log,
		},
		Reports: &reports.Engine{
			Orders:          store,
			Ledger:          ledger,
			MinStockDefault: cfg.MinStockDefault,
		},
		Ledger:       ledger,
		Redis:        rdb,
		PlacedEvents: placed,
		StatusEvents: statusChanged,
		Metrics:      httpx.NewMetrics(prometheus.DefaultRegisterer),
		Service:      cfg.ServiceName,
	}

	router := httpx.NewRouter()
	handler.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	placed.Close()
	statusChanged.Close()
	cancel()
	placed.WaitClosed()
	statusChanged.WaitClosed()
}
