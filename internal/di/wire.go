//go:build wireinject
// +build wireinject

package di

import (
	"GoldPulse/pkg/config"
	"GoldPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideEventPublisher,

		// Repositories
		ProvideSignalStore,

		// Market data
		ProvideMarketStream,
		ProvideFeed,

		// Risk and execution
		ProvideRiskGate,
		ProvideBroker,
		ProvideCoordinator,

		// Signal pipeline
		ProvideDeduplicator,
		ProvideStrategies,
		ProvidePipeline,
		ProvideWorkers,

		// Side channels
		ProvideNotifier,
		ProvideNotifyQueue,
		ProvideScheduler,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
