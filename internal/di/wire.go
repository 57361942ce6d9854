//go:build wireinject
// +build wireinject

package di

import (
	"QuantPulse/pkg/config"
	"QuantPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Strategy configuration
		ProvideRegistry,
		ProvideConfigRegistry,

		// Repositories
		ProvideCandleStore,
		ProvideSignalCache,
		ProvideSignalSink,
		ProvideLeaseStore,
		ProvideQueue,
		ProvideJobQueue,

		// Use cases
		ProvideExecutor,
		ProvidePipelineJobHandler,
		ProvideArbiter,
		ProvideTickIngestor,
		ProvideTickCollector,
		ProvideKafkaTicksHandler,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
