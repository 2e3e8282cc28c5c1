package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/greenzone/shop-backend/internal/config"
	kafkax "github.com/greenzone/shop-backend/internal/kafka"
	"github.com/greenzone/shop-backend/internal/notify"
	"github.com/greenzone/shop-backend/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SendgridAPIKey != "" && cfg.EmailFrom != "" {
		mailer = notify.NewSendgridMailer(cfg.SendgridAPIKey, cfg.EmailFrom)
	} else {
		log.Warn().Msg("sendgrid not configured, mail goes to the log")
	}

	h := &notify.Handler{
		Redis:      rdb,
		Mailer:     mailer,
		AdminEmail: cfg.AdminEmail,
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, notify.TopicOrderPaid, workers)

	go func() {
		log.Info().Str("group", group).Str("topic", notify.TopicOrderPaid).Int("workers", workers).
			Msg("notifier consumer started")
		if err := cons.Start(ctx, h.HandleOrderPaid); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down consumer...")
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
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
