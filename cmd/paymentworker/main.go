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
	kafkax "github.com/ariefcatur/go-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-checkout.git/internal/metrics"
	"github.com/ariefcatur/go-checkout.git/internal/payment"
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
	svc := payment.NewService(txm,
		&postgres.OrderStore{Tx: txm},
		&postgres.PaymentStore{Tx: txm},
		logger,
		payment.MockGateway{},
		payment.NewStripeGateway(cfg.StripeBaseURL, cfg.StripeAPIKey, cfg.StripeWebhookSecret),
	)
	worker := &payment.Worker{
		Service: svc,
		Redis:   rdb,
		Log:     logger,
		Metrics: metrics.New("paymentworker"),
	}

	go func() {
		addr := getenv("METRICS_ADDR", ":9092")
		log.Printf("metrics listening at %s", addr)
		_ = http.ListenAndServe(addr, worker.Metrics.Handler())
	}()

	group := getenv("PAYMENT_GROUP", "payment-reconciler")
	workers := mustAtoi(os.Getenv("PAYMENT_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicPaymentWebhook, workers, 3)
	cons.OnExhausted(worker.Escalate)

	go func() {
		log.Printf("payment consumer started: group=%s topic=%s workers=%d", group, checkout.TopicPaymentWebhook, workers)
		if err := cons.Start(ctx, worker.HandleWebhookEvent); err != nil {
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
