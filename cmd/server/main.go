package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiromine/jewelshop/internal/cart"
	"github.com/shiromine/jewelshop/internal/checkout"
	"github.com/shiromine/jewelshop/internal/config"
	"github.com/shiromine/jewelshop/internal/handlers"
	"github.com/shiromine/jewelshop/internal/logging"
	"github.com/shiromine/jewelshop/internal/metrics"
	"github.com/shiromine/jewelshop/internal/mykafka"
	"github.com/shiromine/jewelshop/internal/order"
	"github.com/shiromine/jewelshop/internal/payment"
	httpserver "github.com/shiromine/jewelshop/internal/transport/http"
	loggingmw "github.com/shiromine/jewelshop/pkg/middleware/logging"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	config.MustNonEmpty(configuration.JWT_SECRET, "JWT_SECRET")
	config.MustNonEmpty(configuration.GATEWAY_URL, "GATEWAY_URL")

	logger := logging.New(configuration.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(ctx, configuration)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod, err = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
		if err != nil {
			log.Fatal(err)
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	gateway := payment.NewClient(configuration.GATEWAY_URL, configuration.GATEWAY_API_KEY)

	cartSvc := &cart.Service{DB: db}
	orderSvc := &order.Service{
		DB:             db,
		Producer:       prod,
		TaxRatePercent: configuration.TaxRatePercent,
		ShippingFee:    configuration.ShippingFee,
	}
	intents := &payment.Intents{DB: db, Gateway: gateway}
	reconciler := &payment.Reconciler{DB: db, Gateway: gateway, Orders: orderSvc, Confirmations: m.Confirmations}
	orchestrator := &checkout.Orchestrator{
		Orders:        orderSvc,
		Intents:       intents,
		Reconciler:    reconciler,
		OrdersCreated: m.OrdersCreated,
	}

	sweeper := &order.Sweeper{
		Service:  orderSvc,
		TTL:      configuration.PendingOrderTTL,
		Interval: configuration.SweepInterval,
		Swept:    m.SweptOrders,
	}
	go sweeper.Run(logging.IntoContext(ctx, logger))

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		CartHandler:    &handlers.CartHandler{Svc: cartSvc, Producer: prod, JWTSecret: jwtSecret},
		OrderHandler:   &handlers.OrderHandler{Svc: orderSvc, Checkout: orchestrator, JWTSecret: jwtSecret},
		PaymentHandler: &handlers.PaymentHandler{Intents: intents, Checkout: orchestrator, JWTSecret: jwtSecret},
		Metrics:        m,
		JWTSecret:      jwtSecret,
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", configuration.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if prod != nil {
		if err := prod.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
