package marketdata

import (
	"context"
	"fmt"
	"sync"

	"GoldPulse/internal/domain/models"
	drepo "GoldPulse/internal/domain/repository"
	"GoldPulse/pkg/logger"
)

// Feed implements MarketData by aggregating the tick stream into candles
// per timeframe. It keeps a bounded ring of completed bars plus the bar
// currently forming; workers read completed history, never the forming
// bar.
type Feed struct {
	symbol  string
	stream  drepo.MarketStream
	log     *logger.Logger
	m       drepo.Metrics
	maxBars int

	mu       sync.RWMutex
	lastTick *models.Tick
	bars     map[drepo.Timeframe][]models.Candle
	forming  map[drepo.Timeframe]*models.Candle
}

// NewFeed creates a candle feed over the tick stream.
func NewFeed(symbol string, stream drepo.MarketStream, log *logger.Logger, m drepo.Metrics) *Feed {
	return &Feed{
		symbol:  symbol,
		stream:  stream,
		log:     log,
		m:       m,
		maxBars: 500,
		bars:    make(map[drepo.Timeframe][]models.Candle),
		forming: make(map[drepo.Timeframe]*models.Candle),
	}
}

// Start connects the stream and launches the aggregation loop.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.stream.Connect(ctx); err != nil {
		return err
	}
	if err := f.stream.Subscribe(ctx); err != nil {
		return err
	}
	ticks, errs := f.stream.Read(ctx)
	go f.consume(ctx, ticks, errs)
	return nil
}

func (f *Feed) consume(ctx context.Context, ticks <-chan *models.Tick, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			if err != nil {
				if f.m != nil {
					f.m.RecordError("stream")
				}
				f.log.Warn("market stream error, reconnecting", logger.Error(err))
				if rerr := f.stream.Reconnect(ctx); rerr != nil {
					f.log.Error("reconnect failed", logger.Error(rerr))
				} else {
					ticks, errs = f.stream.Read(ctx)
				}
			}
		case t := <-ticks:
			if t == nil {
				continue
			}
			f.apply(t)
		}
	}
}

// apply folds one tick into every timeframe's forming bar.
func (f *Feed) apply(t *models.Tick) {
	price := t.Mid()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastTick = t
	if f.m != nil {
		f.m.RecordLastPrice(t.Symbol, price)
	}

	for _, tf := range drepo.AllTimeframes() {
		open := tf.Bucket(t.Time)
		cur := f.forming[tf]

		if cur == nil || !cur.OpenTime.Equal(open) {
			if cur != nil {
				f.finalize(tf, *cur)
			}
			f.forming[tf] = &models.Candle{
				Symbol:    t.Symbol,
				Timeframe: string(tf),
				Open:      price,
				High:      price,
				Low:       price,
				Close:     price,
				OpenTime:  open,
				CloseTime: open.Add(tf.Duration()),
			}
			continue
		}

		if price > cur.High {
			cur.High = price
		}
		if price < cur.Low {
			cur.Low = price
		}
		cur.Close = price
		cur.Volume++
	}
}

// finalize appends a completed bar, trimming the ring. Caller holds the
// lock.
func (f *Feed) finalize(tf drepo.Timeframe, c models.Candle) {
	bars := append(f.bars[tf], c)
	if len(bars) > f.maxBars {
		bars = bars[len(bars)-f.maxBars:]
	}
	f.bars[tf] = bars
}

// Candles returns the most recent n completed bars, oldest first.
func (f *Feed) Candles(_ context.Context, symbol string, tf drepo.Timeframe, n int) ([]models.Candle, error) {
	if symbol != f.symbol {
		return nil, fmt.Errorf("unknown symbol %q", symbol)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	bars := f.bars[tf]
	if len(bars) == 0 {
		return nil, fmt.Errorf("no %s candles yet", tf)
	}
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	out := make([]models.Candle, len(bars))
	copy(out, bars)
	return out, nil
}

// LastTick returns the most recent tick, or an error before the first one.
func (f *Feed) LastTick(_ context.Context, symbol string) (*models.Tick, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.lastTick == nil || symbol != f.symbol {
		return nil, fmt.Errorf("no tick for %q", symbol)
	}
	t := *f.lastTick
	return &t, nil
}

// Seed preloads completed bars, used at startup from persisted history or
// in tests.
func (f *Feed) Seed(tf drepo.Timeframe, candles []models.Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range candles {
		f.finalize(tf, c)
	}
}

// Stop closes the underlying stream.
func (f *Feed) Stop() error { return f.stream.Close() }

// IsConnected reports stream health.
func (f *Feed) IsConnected() bool { return f.stream.IsConnected() }
