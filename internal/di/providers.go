package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"GoldPulse/internal/dedup"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/internal/execution"
	"GoldPulse/internal/handler/api"
	"GoldPulse/internal/pipeline"
	internalrepo "GoldPulse/internal/repository"
	"GoldPulse/internal/risk"
	"GoldPulse/internal/service/broker"
	"GoldPulse/internal/service/jobs"
	"GoldPulse/internal/service/marketdata"
	"GoldPulse/internal/service/notify"
	"GoldPulse/internal/strategy"
	"GoldPulse/internal/subscriber"
	pkgcache "GoldPulse/pkg/cache"
	pkgch "GoldPulse/pkg/clickhouse"
	"GoldPulse/pkg/config"
	xhttp "GoldPulse/pkg/http"
	pkgkafka "GoldPulse/pkg/kafka"
	applogger "GoldPulse/pkg/logger"
	"GoldPulse/pkg/metrics"
	"GoldPulse/pkg/queue"
	"GoldPulse/pkg/server"
)

// ProvideLogger creates the shared application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// signal schema exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ddl := []string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}
	if err := client.InitSchema(ctx, ddl); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the ClickHouse signal store.
func ProvideSignalStore(chClient *pkgch.Client, cfg *config.Config) repository.SignalStore {
	return internalrepo.NewClickHouseSignalStore(chClient.DB(), cfg.ClickHouse.Database+".signals")
}

// ProvideEventPublisher creates the Kafka lifecycle event publisher, or a
// no-op when Kafka is disabled.
func ProvideEventPublisher(cfg *config.Config) (repository.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NoopPublisher{}, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideMarketStream creates the tick WebSocket client.
func ProvideMarketStream(cfg *config.Config, log *applogger.Logger) repository.MarketStream {
	return marketdata.NewStream(
		cfg.MarketData.APIKey,
		cfg.MarketData.WebSocketURL,
		cfg.Pipeline.Symbol,
		cfg.MarketData.ReconnectDelay,
		cfg.MarketData.PingInterval,
		log,
	)
}

// ProvideFeed creates the candle aggregation feed over the stream.
func ProvideFeed(stream repository.MarketStream, cfg *config.Config,
	log *applogger.Logger, m repository.Metrics,
) *marketdata.Feed {
	return marketdata.NewFeed(cfg.Pipeline.Symbol, stream, log, m)
}

// ProvideNotifier creates the Telegram notifier, or a no-op when disabled.
func ProvideNotifier(cfg *config.Config, log *applogger.Logger) repository.Notifier {
	if !cfg.Telegram.Enabled {
		return notify.Noop{}
	}
	return notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
}

// ProvideNotifyQueue creates the in-process queue that decouples alert
// delivery from the signal bus.
func ProvideNotifyQueue(notifier repository.Notifier, log *applogger.Logger) *queue.MemoryQueue {
	return queue.NewMemoryQueue(log, &queue.QueueConfig{
		Workers:    2,
		QueueSize:  64,
		RetryLimit: 3,
		RetryDelay: 2 * time.Second,
	}, []queue.Job{
		subscriber.NewSignalNotifyJob(notifier),
		subscriber.NewCloseNotifyJob(notifier),
	})
}

// ProvideRiskGate creates the shared risk gate over a fresh ledger.
func ProvideRiskGate(cfg *config.Config, log *applogger.Logger, m repository.Metrics) *risk.Gate {
	state := risk.NewState(cfg.Risk.InitialEquity)
	return risk.NewGate(risk.Config{
		MaxPositions:    cfg.Risk.MaxPositions,
		MaxRiskPerTrade: cfg.Risk.MaxRiskPerTrade,
		DailyLossLimit:  cfg.Risk.DailyLossLimit,
		MinEquityFrac:   cfg.Risk.MinEquityFrac,
	}, state, log, m)
}

// ProvideBroker creates the configured broker backend.
func ProvideBroker(cfg *config.Config, feed *marketdata.Feed, log *applogger.Logger) repository.Broker {
	if cfg.Broker.Mode == "bridge" {
		return broker.NewBridge(cfg.Broker.BridgeURL, log,
			broker.WithBridgeTimeout(cfg.Broker.Timeout))
	}
	return broker.NewPaper(feed, cfg.Pipeline.Symbol, log,
		broker.WithSlippage(cfg.Broker.PaperSlipPt))
}

// ProvideCoordinator creates the order coordinator. The closure callback
// is attached later, once the bus exists.
func ProvideCoordinator(b repository.Broker, gate *risk.Gate, store repository.SignalStore,
	log *applogger.Logger, m repository.Metrics,
) *execution.Coordinator {
	return execution.NewCoordinator(b, gate, store, log, m)
}

// ProvideDeduplicator creates the dedup layer, optionally backed by Redis
// for cross-replica admission.
func ProvideDeduplicator(store repository.SignalStore, cfg *config.Config,
	log *applogger.Logger, m repository.Metrics,
) (*dedup.Deduplicator, error) {
	fc := dedup.NewFingerprintCache(cfg.Pipeline.DedupWindow)

	opts := []dedup.Option{dedup.WithMetrics(m)}
	if cfg.Redis.Enabled {
		host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
		if err != nil {
			return nil, fmt.Errorf("redis addr: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("redis port: %w", err)
		}
		shared, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(host),
			pkgcache.WithRedisPort(port),
			pkgcache.WithRedisPassword(cfg.Redis.Password),
			pkgcache.WithRedisDB(cfg.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		opts = append(opts, dedup.WithSharedCache(shared))
	}

	return dedup.New(fc, store, cfg.Pipeline.DedupWindow, log, opts...), nil
}

// ProvideStrategies resolves the configured strategy names.
func ProvideStrategies(cfg *config.Config) ([]strategy.Strategy, error) {
	names := cfg.Pipeline.Strategies
	if len(names) == 0 {
		return strategy.All(), nil
	}
	out := make([]strategy.Strategy, 0, len(names))
	for _, name := range names {
		s, err := strategy.New(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ProvidePipeline assembles the validator, dedup, subscribers, and bus
// into the signal pipeline. Persistence is registered first so a signal
// is durable before any side effect sees it.
func ProvidePipeline(cfg *config.Config, d *dedup.Deduplicator, store repository.SignalStore,
	publisher repository.Publisher, notifyQueue *queue.MemoryQueue, gate *risk.Gate,
	coord *execution.Coordinator, log *applogger.Logger, m repository.Metrics,
) *pipeline.Pipeline {
	validator := pipeline.NewValidator(cfg.Pipeline.MaxSignalAge,
		pipeline.WithMinRiskReward(cfg.Pipeline.MinRiskReward),
		pipeline.WithMaxEntryDrift(cfg.Pipeline.MaxEntryDrift),
	)

	subs := []pipeline.Subscriber{
		subscriber.NewPersistence(store),
		subscriber.NewEvents(publisher, log),
		subscriber.NewNotification(notifyQueue, log),
		subscriber.NewExecution(gate, coord, store, log),
	}
	bus := pipeline.NewBus(log, subs, pipeline.WithBusMetrics(m))

	pipe := pipeline.NewPipeline(validator, d, bus, log, m)
	coord.SetOnClosed(pipe.NotifyClosed)
	return pipe
}

// ProvideWorkers creates one evaluation worker per configured timeframe.
func ProvideWorkers(cfg *config.Config, feed *marketdata.Feed, strategies []strategy.Strategy,
	pipe *pipeline.Pipeline, log *applogger.Logger, m repository.Metrics,
) (*pipeline.WorkerGroup, error) {
	tfs := cfg.Pipeline.Timeframes
	if len(tfs) == 0 {
		tfs = []string{string(repository.DefaultTimeframe())}
	}

	workers := make([]*pipeline.TimeframeWorker, 0, len(tfs))
	for _, raw := range tfs {
		if !repository.IsValidTimeframe(repository.Timeframe(raw)) {
			return nil, fmt.Errorf("unknown timeframe %q", raw)
		}
		tf := repository.NormalizeTimeframe(raw)
		workers = append(workers, pipeline.NewTimeframeWorker(
			cfg.Pipeline.Symbol, tf, feed, strategies, pipe, log, m,
			pipeline.WithWindow(cfg.Pipeline.CandleWindow),
			pipeline.WithCloseDelay(cfg.Pipeline.CloseDelay),
		))
	}
	return pipeline.NewWorkerGroup(workers...), nil
}

// ProvideScheduler creates the recurring-jobs scheduler.
func ProvideScheduler(gate *risk.Gate, notifier repository.Notifier, pipe *pipeline.Pipeline,
	cfg *config.Config, log *applogger.Logger,
) *jobs.Scheduler {
	opts := []jobs.SchedulerOption{jobs.WithStats(pipe.Stats)}
	if cfg.Telegram.Enabled && cfg.Telegram.Heartbeat > 0 {
		opts = append(opts, jobs.WithHeartbeat(cfg.Telegram.Heartbeat))
	}
	return jobs.NewScheduler(gate, notifier, cfg.Risk.DailyResetHour, log, opts...)
}

// ProvideHTTPHandler creates the read-only API surface.
func ProvideHTTPHandler(log *applogger.Logger, store repository.SignalStore, gate *risk.Gate,
	b repository.Broker, stream repository.MarketStream, pipe *pipeline.Pipeline, cfg *config.Config,
) xhttp.Handler {
	return api.NewSignalsHandler(log, store, gate, b, stream, pipe, cfg.Pipeline.Symbol)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	chClient *pkgch.Client,
	store repository.SignalStore,
	publisher repository.Publisher,
	d *dedup.Deduplicator,
	feed *marketdata.Feed,
	b repository.Broker,
	coord *execution.Coordinator,
	workers *pipeline.WorkerGroup,
	notifyQueue *queue.MemoryQueue,
	scheduler *jobs.Scheduler,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, server.Components{
		ClickHouse:   chClient,
		Store:        store,
		Publisher:    publisher,
		Deduplicator: d,
		Feed:         feed,
		Broker:       b,
		Coordinator:  coord,
		Workers:      workers,
		NotifyQueue:  notifyQueue,
		Scheduler:    scheduler,
		Handler:      handler,
	})
}
