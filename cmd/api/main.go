package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/greenzone/shop-backend/internal/catalog"
	"github.com/greenzone/shop-backend/internal/checkout"
	"github.com/greenzone/shop-backend/internal/config"
	"github.com/greenzone/shop-backend/internal/httpx"
	kafkax "github.com/greenzone/shop-backend/internal/kafka"
	"github.com/greenzone/shop-backend/internal/notify"
	"github.com/greenzone/shop-backend/internal/orders"
	"github.com/greenzone/shop-backend/internal/payments"
	"github.com/greenzone/shop-backend/internal/postgres"
	"github.com/greenzone/shop-backend/internal/redisx"
	"github.com/greenzone/shop-backend/internal/stripex"
)

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	if err := postgres.RunMigrations(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for paid-order notifications
	prod := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicOrderPaid, 1024)
	prod.Start(ctx)

	// Repos
	catalogRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}

	// Payment provider
	stripe := stripex.NewClient(cfg.StripeAPIKey, cfg.StripeAPIBase)
	verifier := stripex.NewVerifier(cfg.StripeWebhookSecret)
	if verifier.Mode == stripex.VerificationDisabled {
		log.Warn().Msg("webhook signature verification disabled: no STRIPE_WEBHOOK_SECRET set")
	}

	// Services
	checkoutSvc := &checkout.Service{
		Catalog:    catalogRepo,
		Orders:     orderRepo,
		Sessions:   stripe,
		SuccessURL: cfg.SuccessURL,
		CancelURL:  cfg.CancelURL,
	}
	reconciler := &payments.Reconciler{
		Store:    orderRepo,
		Verifier: verifier,
		Sessions: stripe,
		Notifier: &notify.Publisher{Producer: prod, Service: cfg.ServiceName},
		Redis:    rdb,
	}

	// HTTP
	router := httpx.NewRouter()
	(&httpx.ShopHandler{
		Catalog:   catalogRepo,
		Orders:    orderRepo,
		Checkout:  checkoutSvc,
		Confirmer: reconciler,
		Redis:     rdb,
	}).Register(router)
	(&httpx.WebhookHandler{Reconciler: reconciler}).Register(router)
	(&httpx.AdminHandler{
		Catalog:  catalogRepo,
		Orders:   orderRepo,
		Password: cfg.AdminPassword,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // stop accepting, flush pending
	prod.WaitClosed() // drain
}
