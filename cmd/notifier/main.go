package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"roombook/internal/activity"
	"roombook/internal/config"
	"roombook/internal/mq"
)

func main() {
	cfg := config.LoadNotifier()
	logger := log.New(os.Stdout, "[notifier] ", log.LstdFlags|log.Lmicroseconds)

	feed := activity.NewRing(cfg.EventBufferSize)

	client, err := mq.Connect(mq.Config{
		BrokerURL: cfg.MQTTBroker,
		ClientID:  cfg.MQTTClientID,
		Logger:    logger,
		OnConnect: func(c mqtt.Client) {
			mq.Subscribe(logger, c, func(topic string, payload []byte) {
				feed.Record(topic, payload)
				logger.Printf("ACTIVITY topic=%s payload=%s", topic, payload)
			}, mq.TopicAll)
		},
	})
	if err != nil {
		logger.Fatalf("mqtt connect: %v", err)
	}
	defer client.Disconnect(250)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"notifier"}`))
	})

	// /events?topic=roombook/bookings narrows the feed by topic prefix.
	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		events := feed.Snapshot(r.URL.Query().Get("topic"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count":  len(events),
			"events": events,
		})
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on %s (mqtt=%s)", cfg.Addr, cfg.MQTTBroker)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Printf("stopped")
}
