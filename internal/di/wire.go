//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PriceCast/pkg/config"
	"PriceCast/pkg/server"
)

var coreSet = wire.NewSet(
	// Ambient
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideRedisCache,

	// Storage and publishing
	ProvidePriceSource,
	ProvideArtifactStore,
	ProvideEventPublisher,

	// Use cases
	ProvideTrainerConfig,
	ProvideTrainer,
	ProvideModelRegistry,
	ProvideForecaster,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvideResponseCache,
		ProvideRateLimiter,
		ProvideForecastHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideRetrainHandler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeCore wires the forecasting pipeline without listeners.
func InitializeCore(cfg *config.Config) (*Core, func(), error) {
	wire.Build(coreSet, ProvideCore)
	return nil, nil, nil
}

