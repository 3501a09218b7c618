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

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roombook/internal/api"
	"roombook/internal/availability"
	"roombook/internal/config"
	"roombook/internal/metrics"
	"roombook/internal/mq"
	"roombook/internal/session"
	"roombook/internal/sse"
	"roombook/internal/storage"
	"roombook/internal/web"
)

func main() {
	cfg := config.LoadGateway()
	logger := log.New(os.Stdout, "[gateway] ", log.LstdFlags|log.Lmicroseconds)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state, closer, err := storage.Open(ctx, cfg.State)
	if err != nil {
		logger.Fatalf("open state: %v", err)
	}
	defer closer.Close()

	client := api.New(cfg.API.BaseURL, cfg.API.Timeout)
	sessions, err := session.NewStore(ctx, state, client, logger)
	if err != nil {
		logger.Fatalf("restore session: %v", err)
	}
	client.Tokens = sessions

	// SSE hub
	hub := sse.NewHub(logger)
	go hub.Run(ctx)

	// With a broker, activity goes out over MQTT and comes back through the
	// bridge, so other gateways see it too. Without one, the hub gets it
	// directly.
	var events mq.Publisher = hub
	if cfg.MQTTBroker != "" {
		mqttClient, err := mq.Connect(mq.Config{
			BrokerURL: cfg.MQTTBroker,
			ClientID:  cfg.MQTTClientID,
			Logger:    logger,
			OnConnect: func(c mqtt.Client) {
				mq.Subscribe(logger, c, hub.Bridge, mq.TopicAll)
			},
		})
		if err != nil {
			logger.Fatalf("mqtt connect: %v", err)
		}
		defer mqttClient.Disconnect(250)

		events = mq.NewPublisher(mqttClient, logger)
	}

	engine := availability.New(client, logger,
		availability.WithPublisher(events),
		availability.WithConcurrency(cfg.RefreshConcurrency),
	)
	app := web.New(web.Deps{
		Logger:       logger,
		Session:      sessions,
		API:          client,
		Availability: engine,
		Events:       events,
		Stream:       hub.Handler(),
	})

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"gateway"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// The stream is long lived; everything else gets a deadline.
	r.Group(func(r chi.Router) {
		r.Use(timeoutExcept("/api/stream", 20*time.Second))
		r.Mount("/api", app.Routes())
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r}

	go func() {
		logger.Printf("listening on %s (api=%s, state=%s, mqtt=%q)", cfg.Addr, cfg.API.BaseURL, cfg.State.Backend, cfg.MQTTBroker)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Printf("stopped")
}

func timeoutExcept(path string, d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := middleware.Timeout(d)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == path {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}
