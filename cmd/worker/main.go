package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"taskmanager/internal/cache"
	"taskmanager/internal/config"
	"taskmanager/internal/log"
	"taskmanager/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	client, err := cache.NewRedisClient(context.Background(), cfg.Redis, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	var email, sms notify.Sender
	if cfg.Notify.SMTP.Host != "" && cfg.Notify.SMTP.Username != "" {
		sender, err := notify.NewEmailSender(cfg.Notify.SMTP)
		if err != nil {
			logger.Fatal().Err(err).Msg("smtp sender setup failed")
		}
		email = sender
	} else {
		logger.Warn().Msg("smtp not configured, email notifications disabled")
	}
	if cfg.Notify.Twilio.AccountSID != "" {
		sms = notify.NewSMSSender(cfg.Notify.Twilio)
	} else {
		logger.Warn().Msg("twilio not configured, sms notifications disabled")
	}

	processor := notify.NewProcessor(email, sms, logger)
	consumer := notify.NewConsumer(
		client,
		cfg.Notify.Stream,
		cfg.Notify.Group,
		cfg.Notify.Consumer,
		cfg.Notify.ClaimInterval,
		logger,
		processor,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- consumer.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
		return
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown signal received, waiting for in-flight deliveries")
	select {
	case <-done:
		logger.Info().Msg("worker exited cleanly")
	case <-time.After(notify.DefaultHandleTimeout + 5*time.Second):
		logger.Warn().Msg("worker shutdown timed out")
	}
}
