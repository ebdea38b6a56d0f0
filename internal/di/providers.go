package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"PriceCast/internal/domain/repository"
	"PriceCast/internal/handler/api"
	internalrepo "PriceCast/internal/repository"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/services/predictor"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/cache"
	pkgch "PriceCast/pkg/clickhouse"
	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
	"PriceCast/pkg/server"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", "pricecast")), nil
}

// ProvideRegistry creates the private Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.NewWithRegisterer(reg)
}

// ProvideRedisCache connects to Redis when enabled; otherwise it returns nil.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.Pool.Size, cfg.Redis.Pool.MinIdle, cfg.Redis.Pool.WaitTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideResponseCache layers an in-process cache over Redis, or uses the
// in-process cache alone.
func ProvideResponseCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func()) {
	if rc == nil {
		mc := cache.NewMemoryCache(cache.WithMemoryDefaultTTL(cfg.Forecast.CacheTTL))
		return mc, func() { _ = mc.Close() }
	}
	lc := cache.NewLayeredCache(rc, cache.WithLayeredMemory(1000, time.Minute))
	return lc, func() { _ = lc.Close() }
}

// ProvidePriceSource selects the history backend from source.type.
func ProvidePriceSource(cfg *config.Config, l *applogger.Logger) (repository.PriceSource, func(), error) {
	if cfg.Source.Type == "clickhouse" {
		src, cleanup, err := NewClickHousePriceSource(cfg, l)
		if err != nil {
			return nil, nil, err
		}
		return src, cleanup, nil
	}
	return NewYahooPriceSource(cfg, l), func() {}, nil
}

// NewYahooPriceSource builds the Yahoo chart client from source.yahoo.
func NewYahooPriceSource(cfg *config.Config, l *applogger.Logger) *internalrepo.YahooPriceSource {
	y := cfg.Source.Yahoo
	client := xhttp.NewClient(
		xhttp.WithTimeout(y.Timeout),
		xhttp.WithUserAgent(y.UserAgent),
		xhttp.WithRetry(y.Retries, 500*time.Millisecond),
	)
	return internalrepo.NewYahooPriceSource(y.BaseURL, client, l)
}

// NewClickHousePriceSource connects and makes sure the closes table exists.
func NewClickHousePriceSource(cfg *config.Config, l *applogger.Logger) (*internalrepo.CHPriceSource, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	src := internalrepo.NewCHPriceSource(client, ch.Table, l)
	if err := client.InitSchema(ctx, src.Schema()); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return src, func() { _ = client.Close() }, nil
}

// ProvideArtifactStore selects the artifact backend from artifacts.backend.
func ProvideArtifactStore(cfg *config.Config, rc *cache.RedisCache) (repository.ArtifactStore, error) {
	switch cfg.Artifacts.Backend {
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("artifacts.backend 'redis' requires redis.enabled")
		}
		return internalrepo.NewCacheArtifactStore(rc), nil
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s3 := cfg.Artifacts.S3
		return internalrepo.NewS3ArtifactStore(ctx, s3.Bucket, s3.Prefix, s3.Region)
	default:
		return internalrepo.NewFileArtifactStore(cfg.Artifacts.Dir)
	}
}

// ProvideEventPublisher publishes forecast events to Kafka when enabled.
func ProvideEventPublisher(cfg *config.Config, reg *prometheus.Registry) (repository.EventPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopEventPublisher{}, func() {}, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithBatchTimeout(k.Producer.BatchTimeout),
		pkgkafka.WithWriteTimeout(k.Producer.WriteTimeout),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaEventPublisher(producer, k.Producer.Topic)
	return pub, func() { _ = pub.Close() }, nil
}

// ProvideTrainerConfig maps the training and forecast sections.
func ProvideTrainerConfig(cfg *config.Config) (usecase.TrainerConfig, error) {
	v, err := predictor.ParseVariant(cfg.Forecast.Variant)
	if err != nil {
		return usecase.TrainerConfig{}, err
	}
	residual := predictor.Variant("")
	if cfg.Training.Residual != "" {
		if residual, err = predictor.ParseVariant(cfg.Training.Residual); err != nil {
			return usecase.TrainerConfig{}, fmt.Errorf("training.residual: %w", err)
		}
	}
	t := cfg.Training
	return usecase.TrainerConfig{
		Symbols:      t.Symbols,
		PeriodDays:   t.PeriodDays,
		TestFraction: t.TestFraction,
		Seed:         t.Seed,
		Variant:      v,
		Options: predictor.Options{
			LookBack: cfg.Forecast.LookBack,
			Residual: residual,
			Forest: predictor.ForestOptions{
				Trees:          t.Forest.Trees,
				MaxDepth:       t.Forest.MaxDepth,
				MinSamplesLeaf: t.Forest.MinSamplesLeaf,
				MaxFeatures:    t.Forest.MaxFeatures,
				Seed:           t.Seed,
			},
			Sequence: predictor.SequenceOptions{
				Reservoir:      t.Sequence.Reservoir,
				SpectralRadius: t.Sequence.SpectralRadius,
				InputScale:     t.Sequence.InputScale,
				Density:        t.Sequence.Density,
				Leak:           t.Sequence.Leak,
				Ridge:          t.Sequence.Ridge,
				Seed:           t.Seed,
			},
		},
	}, nil
}

func ProvideTrainer(source repository.PriceSource, m repository.Metrics, l *applogger.Logger, tc usecase.TrainerConfig) *usecase.Trainer {
	return usecase.NewTrainer(source, m, l, tc)
}

// ProvideModelRegistry creates the registry; with Redis enabled training is
// also serialised across replicas.
func ProvideModelRegistry(
	cfg *config.Config,
	store repository.ArtifactStore,
	trainer *usecase.Trainer,
	m repository.Metrics,
	rc *cache.RedisCache,
	l *applogger.Logger,
) *usecase.ModelRegistry {
	opts := []usecase.RegistryOption{
		usecase.WithTrainingTimeout(cfg.Training.Timeout),
		usecase.WithRetryBackoff(cfg.Training.RetryBackoff),
		usecase.WithRegistryLogger(l),
	}
	if rc != nil {
		opts = append(opts, usecase.WithLocker(rc))
	}
	return usecase.NewModelRegistry(store, trainer, m, cfg.Artifacts.Key, opts...)
}

func ProvideForecaster(
	cfg *config.Config,
	registry *usecase.ModelRegistry,
	source repository.PriceSource,
	pub repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Forecaster {
	f := cfg.Forecast
	return usecase.NewForecaster(registry, source, pub, m, l, usecase.ForecasterConfig{
		MaxHorizon:      f.MaxHorizon,
		HistoryDays:     f.HistoryDays,
		HistoryWindow:   f.HistoryWindow,
		DisplayAccuracy: f.DisplayAccuracy,
	})
}

// ProvideRateLimiter creates the per-client limiter shared by the API
// handler and the app, which prunes it.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)
}

func ProvideForecastHandler(
	cfg *config.Config,
	l *applogger.Logger,
	forecaster *usecase.Forecaster,
	registry *usecase.ModelRegistry,
	c cache.Service,
	limiter *ratelimit.Limiter,
) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(l, forecaster, registry, c, cfg.Forecast.CacheTTL, limiter)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.ForecastEchoHandler, reg *prometheus.Registry) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetrics(metricsPath, reg),
	)
}

// ProvideKafkaConsumer creates the retrain command consumer, or nil when
// Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	k := cfg.Kafka
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(k.Brokers),
		pkgkafka.WithConsumerGroupID(k.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(k.Consumer.Workers),
		pkgkafka.WithConsumerDLQ(k.Consumer.DLQTopic),
		pkgkafka.WithConsumerRetry(k.Consumer.RetryMax, k.Consumer.BackoffMin, k.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(k.Consumer.MinBytes, k.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideRetrainHandler(cfg *config.Config, registry *usecase.ModelRegistry, m repository.Metrics, l *applogger.Logger) *usecase.RetrainHandler {
	return usecase.NewRetrainHandler(cfg.Kafka.Consumer.Topic, registry, m, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	registry *usecase.ModelRegistry,
	httpServer *xhttp.Server,
	limiter *ratelimit.Limiter,
	consumer *pkgkafka.Consumer,
	retrain *usecase.RetrainHandler,
) *server.App {
	return server.New(cfg, l, registry, httpServer, limiter, consumer, retrain)
}

// Core is the forecasting pipeline without any network listeners, used by the CLI.
type Core struct {
	Forecaster *usecase.Forecaster
	Registry   *usecase.ModelRegistry
}

func ProvideCore(f *usecase.Forecaster, r *usecase.ModelRegistry) *Core {
	return &Core{Forecaster: f, Registry: r}
}

// NewBackfill copies Yahoo closes into ClickHouse.
func NewBackfill(cfg *config.Config, l *applogger.Logger) (*usecase.Backfill, func(), error) {
	sink, cleanup, err := NewClickHousePriceSource(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	return usecase.NewBackfill(NewYahooPriceSource(cfg, l), sink, l), cleanup, nil
}
