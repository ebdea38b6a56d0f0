package server

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
)

// App encapsulates the service lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	registry   *usecase.ModelRegistry
	httpServer *xhttp.Server
	limiter    *ratelimit.Limiter
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
}

// New creates the App. limiter and consumer may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	registry *usecase.ModelRegistry,
	httpServer *xhttp.Server,
	limiter *ratelimit.Limiter,
	consumer *pkgkafka.Consumer,
	handlers ...pkgkafka.MessageHandler,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		registry:   registry,
		httpServer: httpServer,
		limiter:    limiter,
		consumer:   consumer,
		handlers:   handlers,
	}
}

// Run loads the model, starts the HTTP server and the Kafka consumer, and
// blocks until ctx is cancelled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.registry.Warmup(ctx); err != nil {
		a.log.Error("model warmup failed", applogger.Error(err))
		return err
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	if a.limiter != nil {
		go a.limiter.Run(ctx, a.cfg.Server.RateLimit.Window)
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	a.log.Info("pricecast started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("variant", a.cfg.Forecast.Variant),
		applogger.String("source", a.cfg.Source.Type),
		applogger.String("artifacts", a.cfg.Artifacts.Backend))

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// In-flight training is abandoned after a short grace period.
	done := make(chan struct{})
	go func() {
		a.registry.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		a.log.Warn("exiting with training still in progress")
	}

	a.log.Info("shutdown complete")
	return nil
}
