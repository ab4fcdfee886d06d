package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soko-arts/marketplace/internal/logger"
	"github.com/soko-arts/marketplace/internal/notify"
	"github.com/soko-arts/marketplace/internal/order"
	"github.com/soko-arts/marketplace/internal/payment"
	"github.com/soko-arts/marketplace/internal/router"
	"github.com/soko-arts/marketplace/internal/shipment"
	"github.com/soko-arts/marketplace/internal/shipping"
	storage "github.com/soko-arts/marketplace/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		panic(err)
	}
}

func run() error {
	cfg, err := NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewPostgresStorage(cfg.DatabaseConnection)
	if err != nil {
		log.Fatalf("Failed to initialize Postgres storage: %v", err)
	}
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := store.Ping(pingCtx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Warning: failed to close storage: %v", err)
		}
	}()

	var publisher notify.Publisher = notify.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}
	dispatcher := notify.NewDispatcher(store, publisher)

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}
	mpesaClient := &payment.MpesaClient{
		Client:         httpClient,
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		ShortCode:      cfg.MpesaShortCode,
		Passkey:        cfg.MpesaPasskey,
		CallbackURL:    cfg.MpesaCallbackURL,
	}
	pesapalClient := &payment.PesapalClient{
		Client:         httpClient,
		BaseURL:        cfg.PesapalBaseURL,
		ConsumerKey:    cfg.PesapalConsumerKey,
		ConsumerSecret: cfg.PesapalSecret,
		CallbackURL:    cfg.PesapalCallbackURL,
		IPNID:          cfg.PesapalIPNID,
	}

	shippingHandler := shipping.NewHandler()

	shipmentSvc := shipment.NewService(store, store, dispatcher)
	shipmentHandler := shipment.NewHandler(shipmentSvc)

	orderSvc := order.NewService(store)
	orderHandler := order.NewHandler(orderSvc)

	paymentSvc := payment.NewService(store, dispatcher, shipmentSvc, mpesaClient, pesapalClient, []byte(cfg.PesapalSecret))
	paymentHandler := payment.NewHandler(paymentSvc)

	notifyHandler := notify.NewHandler(store)

	r := router.NewRouter(shippingHandler, shipmentHandler, orderHandler, paymentHandler, notifyHandler, []byte(cfg.JWTSecret))

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		payment.DispatcherLoop(
			ctx,
			pesapalClient,
			store,
			paymentSvc,
			cfg.PollWorkers,
			cfg.PollInterval,
		)
	}()

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
	return nil
}
