package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-checkout.git/internal/config"
	"github.com/ariefcatur/go-checkout.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-checkout.git/internal/metrics"
	"github.com/ariefcatur/go-checkout.git/internal/postgres"
	"github.com/ariefcatur/go-checkout.git/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	txm := &postgres.TxManager{Pool: db}
	worker := &inventory.Worker{
		Tx:     txm,
		Orders: &postgres.OrderStore{Tx: txm},
		Ledger: &inventory.Ledger{
			Products:  &postgres.ProductStore{Tx: txm},
			Movements: &postgres.MovementStore{Tx: txm},
		},
		Redis:   rdb,
		Log:     logger,
		Metrics: metrics.New("stockworker"),
	}

	go func() {
		addr := getenv("METRICS_ADDR", ":9091")
		log.Printf("metrics listening at %s", addr)
		_ = http.ListenAndServe(addr, worker.Metrics.Handler())
	}()

	group := getenv("STOCK_GROUP", "stock-reconciler")
	workers := mustAtoi(os.Getenv("STOCK_WORKERS"), "8")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicOrderCreated, workers, 3)
	cons.OnExhausted(worker.Escalate)

	go func() {
		log.Printf("stock consumer started: group=%s topic=%s workers=%d", group, checkout.TopicOrderCreated, workers)
		if err := cons.Start(ctx, worker.HandleOrderCreated); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
