package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/bootstrap"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/config"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/kafka"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/transport/httpapi"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("invalid configuration: " + err.Error())
	}

	// Observability
	if err := observability.InitLogger(cfg.ServiceName, cfg.LogLevel); err != nil {
		panic(err)
	}
	log := observability.Log
	defer log.Sync()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracer(cfg.ServiceName, cfg.JaegerURL)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	ctx, cancel := setupSignalHandler(log)
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to start messenger", zap.Error(err))
	}
	defer app.Close()

	consumer := initRepairConsumer(ctx, cfg, app, log)

	// Servers
	obsSrv := initObservabilityServer(cfg, app)
	apiSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.NewHandler(app.Service, 5*time.Second), httpapi.RouterOptions{
			ServiceName:       cfg.ServiceName,
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
			Store:             app.Store,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	startServers(cfg, obsSrv, apiSrv, log)

	<-ctx.Done()
	performGracefulShutdown(obsSrv, apiSrv, consumer, log)
}

func setupSignalHandler(log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
		cancel()
	}()
	return ctx, cancel
}

// initRepairConsumer replays inbox fan-outs that a send could not finish.
// It returns nil when Kafka is not configured.
func initRepairConsumer(ctx context.Context, cfg config.Config, app *bootstrap.App, log *zap.Logger) *kafka.Consumer {
	if len(cfg.KafkaBrokers) == 0 {
		log.Warn("KAFKA_BROKERS not set, inbox repair events are disabled")
		return nil
	}
	consumer, err := kafka.NewConsumer(kafka.ConsumerOptions{
		Brokers:      cfg.KafkaBrokers,
		Topics:       []string{cfg.KafkaRepairTopic},
		Group:        cfg.KafkaRepairGroup,
		MaxRetries:   uint64(cfg.RetryAttempts),
		RetryBackoff: cfg.RetryInitialBackoff,
	}, kafka.NewRepairHandler(app.Service))
	if err != nil {
		log.Fatal("failed to create kafka consumer", zap.Error(err))
	}
	consumer.Start(ctx)
	return consumer
}

func initObservabilityServer(cfg config.Config, app *bootstrap.App) *http.Server {
	mux := chi.NewRouter()
	mux.Use(observability.MetricsMiddleware(cfg.ServiceName))
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Get("/health/live", observability.HealthLiveHandler)
	mux.Get("/health/ready", observability.HealthReadyHandler(app.Store))
	return &http.Server{Addr: cfg.ObsHTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func startServers(cfg config.Config, obsSrv, apiSrv *http.Server, log *zap.Logger) {
	go func() {
		log.Info("starting observability server", zap.String("addr", cfg.ObsHTTPAddr))
		if err := obsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("observability server error", zap.Error(err))
		}
	}()
	go func() {
		log.Info("starting api server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store_backend", cfg.StoreBackend),
		)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()
}

func performGracefulShutdown(obs, api *http.Server, consumer *kafka.Consumer, log *zap.Logger) {
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := api.Shutdown(ctx); err != nil {
		log.Error("error during api server shutdown", zap.Error(err))
	}
	if err := obs.Shutdown(ctx); err != nil {
		log.Error("error during observability server shutdown", zap.Error(err))
	}
	if consumer != nil {
		select {
		case <-consumer.Done():
		case <-ctx.Done():
			log.Warn("kafka consumer did not stop in time")
		}
		consumer.Close()
	}
	log.Info("shutdown complete, exiting")
}
