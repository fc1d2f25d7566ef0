package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nashenas/anonbot/internal/audit"
	"github.com/nashenas/anonbot/internal/bot"
	"github.com/nashenas/anonbot/internal/config"
	"github.com/nashenas/anonbot/internal/engine"
	"github.com/nashenas/anonbot/internal/mailbox"
	"github.com/nashenas/anonbot/internal/messaging"
	"github.com/nashenas/anonbot/internal/metrics"
	"github.com/nashenas/anonbot/internal/store"
	"github.com/nashenas/anonbot/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// --- Postgres ---
	db, err := store.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to open postgres: %v", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	mailboxStore := mailbox.NewStore(rdb)

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSUrl
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Telegram ---
	tg := telegram.NewClient(cfg.BotToken)

	sink := audit.New(natsClient, tg, cfg.LogChannelID)

	eng := engine.New(engine.Config{
		SearchTimeout:    cfg.SearchTimeout,
		IdleTimeout:      cfg.IdleTimeout,
		ThrottleInterval: cfg.ThrottleInterval,
	}, bot.NewNotifier(tg, sink), bot.NewDeliverer(tg), sink)

	b := bot.New(tg, eng, db, mailboxStore, sink, cfg.BotUsername)

	log.Printf("anonbot starting")
	log.Printf("  listen_addr:       %s", cfg.ListenAddr)
	log.Printf("  webhook_path:      %s", cfg.WebhookPath)
	log.Printf("  redis_addr:        %s", cfg.RedisAddr)
	log.Printf("  nats_url:          %s", cfg.NATSUrl)
	log.Printf("  log_channel:       %d", cfg.LogChannelID)
	log.Printf("  search_timeout:    %s", cfg.SearchTimeout)
	log.Printf("  idle_timeout:      %s", cfg.IdleTimeout)
	log.Printf("  throttle_interval: %s", cfg.ThrottleInterval)

	if cfg.WebhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := tg.SetWebhook(ctx, cfg.WebhookURL+cfg.WebhookPath)
		cancel()
		if err != nil {
			log.Fatalf("failed to register webhook: %v", err)
		}
		log.Printf("webhook registered at %s%s", cfg.WebhookURL, cfg.WebhookPath)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           telegram.NewRouter(cfg.WebhookPath, b, metrics.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("http shutdown error: %v", err)
		}

		natsClient.Close()
		if err := db.Close(); err != nil {
			log.Printf("postgres close error: %v", err)
		}
		if err := rdb.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("anonbot stopped")
}
