package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-checkout.git/internal/config"
	"github.com/ariefcatur/go-checkout.git/internal/httpx"
	"github.com/ariefcatur/go-checkout.git/internal/inventory"
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

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	orderProd := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicOrderCreated, 1024)
	orderProd.Start(ctx)
	webhookProd := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicPaymentWebhook, 1024)
	webhookProd.Start(ctx)

	// Stores & services
	txm := &postgres.TxManager{Pool: db}
	products := &postgres.ProductStore{Tx: txm}
	carts := &postgres.CartStore{Tx: txm}
	orders := &postgres.OrderStore{Tx: txm}
	payments := &postgres.PaymentStore{Tx: txm}
	movements := &postgres.MovementStore{Tx: txm}

	ledger := &inventory.Ledger{Products: products, Movements: movements}
	cartSvc := &checkout.CartService{Tx: txm, Products: products, Carts: carts}
	factory := &checkout.OrderFactory{Tx: txm, Products: products, Carts: carts, Orders: orders, Ledger: ledger}
	paySvc := payment.NewService(txm, orders, payments, logger,
		payment.MockGateway{},
		payment.NewStripeGateway(cfg.StripeBaseURL, cfg.StripeAPIKey, cfg.StripeWebhookSecret),
	)

	m := metrics.New("api")
	router := httpx.NewRouter(m)
	(&httpx.CartHandler{Service: cartSvc, Products: products}).Register(router)
	(&httpx.CheckoutHandler{
		Factory:  factory,
		Orders:   orders,
		Producer: orderProd,
		Redis:    rdb,
		Metrics:  m,
		Service:  cfg.ServiceName,
	}).Register(router)
	(&httpx.PaymentHandler{
		Service:  paySvc,
		Payments: payments,
		Producer: webhookProd,
		Metrics:  m,
		Log:      logger,
		Name:     cfg.ServiceName,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	orderProd.Close()
	webhookProd.Close()
	cancel()
	orderProd.WaitClosed()
	webhookProd.WaitClosed()
}
