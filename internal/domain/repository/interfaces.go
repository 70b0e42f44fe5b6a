package repository

import (
	"context"
	"time"

	"GoldPulse/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// MarketData supplies candle history for strategy evaluation.
type MarketData interface {
	Candles(ctx context.Context, symbol string, tf Timeframe, n int) ([]models.Candle, error)
	LastTick(ctx context.Context, symbol string) (*models.Tick, error)
}

// SignalStore persists published signals and their lifecycle updates.
type SignalStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, s *models.Signal) error
	UpdateStatus(ctx context.Context, s *models.Signal) error
	Recent(ctx context.Context, symbol string, limit int) ([]*models.Signal, error)
	ByID(ctx context.Context, id string) (*models.Signal, error)
	// PublishedSince returns every signal published after since,
	// regardless of status, used to rebuild dedup state on restart.
	PublishedSince(ctx context.Context, since time.Time) ([]*models.Signal, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// Publisher emits signal lifecycle events to the outside world.
type Publisher interface {
	Publish(ctx context.Context, s *models.Signal) error
	Close() error
}

// Broker places and tracks orders against a trading backend.
type Broker interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.OrderAck, error)
	CloseOrder(ctx context.Context, ticket string) error
	Events() <-chan models.BrokerEvent
	Health(ctx context.Context) error
	Close() error
}

// Notifier delivers human-facing alerts.
type Notifier interface {
	NotifySignal(ctx context.Context, s *models.Signal) error
	NotifyClose(ctx context.Context, s *models.Signal) error
	NotifyText(ctx context.Context, text string) error
}

type Metrics interface {
	RecordSignalGenerated(timeframe, strategy string)
	RecordSignalPublished(timeframe, strategy string)
	RecordDuplicateSuppressed(timeframe, reason string)
	RecordValidationFailure(timeframe, reason string)
	RecordRiskRejection(reason string)
	RecordExecution(result string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordFingerprintCacheSize(n int)
	RecordOpenPositions(n int)
	RecordEquity(v float64)
}
