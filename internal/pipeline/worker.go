package pipeline

import (
	"context"
	"sync"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/internal/strategy"
	"GoldPulse/pkg/logger"
)

// TimeframeWorker drives one timeframe: it waits for each candle close,
// fetches the recent window from the market-data collaborator, runs the
// strategy evaluators and forwards any candidate into the pipeline. Workers
// are independent; a slow or failing feed on one timeframe never blocks the
// others.
type TimeframeWorker struct {
	symbol     string
	tf         repository.Timeframe
	data       repository.MarketData
	strategies []strategy.Strategy
	pipe       *Pipeline
	log        *logger.Logger
	m          repository.Metrics

	window      int
	maxAttempts int
	baseBackoff time.Duration
	// closeDelay gives the feed time to finalize the bar after the
	// nominal close before we fetch.
	closeDelay time.Duration
}

// WorkerOption configures a TimeframeWorker.
type WorkerOption func(*TimeframeWorker)

// WithWindow sets how many candles are fetched per evaluation.
func WithWindow(n int) WorkerOption {
	return func(w *TimeframeWorker) {
		if n > 0 {
			w.window = n
		}
	}
}

// WithRetry sets the bounded retry policy for feed errors.
func WithRetry(attempts int, base time.Duration) WorkerOption {
	return func(w *TimeframeWorker) {
		if attempts > 0 {
			w.maxAttempts = attempts
		}
		if base > 0 {
			w.baseBackoff = base
		}
	}
}

// WithCloseDelay sets the settle delay after a nominal candle close.
func WithCloseDelay(d time.Duration) WorkerOption {
	return func(w *TimeframeWorker) { w.closeDelay = d }
}

// NewTimeframeWorker creates a worker for one timeframe.
func NewTimeframeWorker(symbol string, tf repository.Timeframe, data repository.MarketData,
	strategies []strategy.Strategy, pipe *Pipeline, log *logger.Logger, m repository.Metrics,
	opts ...WorkerOption,
) *TimeframeWorker {
	w := &TimeframeWorker{
		symbol:      symbol,
		tf:          tf,
		data:        data,
		strategies:  strategies,
		pipe:        pipe,
		log:         log,
		m:           m,
		window:      100,
		maxAttempts: 5,
		baseBackoff: time.Second,
		closeDelay:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Timeframe returns the worker's timeframe.
func (w *TimeframeWorker) Timeframe() repository.Timeframe { return w.tf }

// Run blocks until ctx is cancelled, evaluating once at startup and then at
// every candle close. An in-flight evaluation finishes before Run returns.
func (w *TimeframeWorker) Run(ctx context.Context) {
	w.log.Info("timeframe worker started",
		logger.String("symbol", w.symbol),
		logger.String("timeframe", string(w.tf)))

	// Evaluate the current last candle once at startup. The validator's
	// max-age check keeps a stale bar from turning into a signal.
	w.evaluate(ctx)

	for {
		next := w.tf.NextClose(time.Now()).Add(w.closeDelay)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info("timeframe worker stopped",
				logger.String("timeframe", string(w.tf)))
			return
		case <-timer.C:
			w.evaluate(ctx)
		}
	}
}

// evaluate runs one pass: fetch candles with bounded retries, then run each
// strategy on the window.
func (w *TimeframeWorker) evaluate(ctx context.Context) {
	started := time.Now()
	candles, err := w.fetchCandles(ctx)
	if err != nil {
		// Retries exhausted. Log and wait for the next close rather
		// than terminating the worker.
		w.log.Error("candle fetch failed, skipping pass",
			logger.String("timeframe", string(w.tf)),
			logger.Error(err))
		if w.m != nil {
			w.m.RecordError("data_feed")
		}
		return
	}
	if len(candles) == 0 {
		return
	}

	last := candles[len(candles)-1]
	currentPrice := last.Close
	if tick, err := w.data.LastTick(ctx, w.symbol); err == nil && tick != nil {
		currentPrice = tick.Mid()
	}

	for _, st := range w.strategies {
		if len(candles) < st.MinCandles() {
			continue
		}
		c := st.Evaluate(candles)
		if c == nil {
			continue
		}
		c.Symbol = w.symbol
		c.Timeframe = string(w.tf)
		c.CandleTime = last.CloseTime
		c.CurrentPrice = currentPrice

		if _, err := w.pipe.Process(ctx, *c); err != nil {
			w.log.Error("pipeline publish failed",
				logger.String("timeframe", string(w.tf)),
				logger.String("strategy", st.Name()),
				logger.Error(err))
		}
	}

	if w.m != nil {
		w.m.RecordLatency("worker_pass", time.Since(started).Seconds())
	}
}

// fetchCandles retries transient feed errors with exponential backoff.
func (w *TimeframeWorker) fetchCandles(ctx context.Context) ([]models.Candle, error) {
	backoff := w.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		candles, err := w.data.Candles(ctx, w.symbol, w.tf, w.window)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		w.log.Warn("candle fetch error",
			logger.String("timeframe", string(w.tf)),
			logger.Int("attempt", attempt),
			logger.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// WorkerGroup runs a set of workers and waits for them on shutdown.
type WorkerGroup struct {
	workers []*TimeframeWorker
	wg      sync.WaitGroup
}

// NewWorkerGroup creates a group over workers.
func NewWorkerGroup(workers ...*TimeframeWorker) *WorkerGroup {
	return &WorkerGroup{workers: workers}
}

// Start launches every worker on its own goroutine.
func (g *WorkerGroup) Start(ctx context.Context) {
	for _, w := range g.workers {
		g.wg.Add(1)
		go func(w *TimeframeWorker) {
			defer g.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has finished its in-flight pass and
// stopped.
func (g *WorkerGroup) Wait() { g.wg.Wait() }
