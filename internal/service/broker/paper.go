package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/internal/risk"
	"GoldPulse/pkg/logger"
)

// pointSize is one XAUUSD point in price terms.
const pointSize = 0.01

type paperPosition struct {
	signalID   string
	direction  models.Direction
	fillPrice  float64
	lots       float64
	stopLoss   float64
	takeProfit float64
}

// Paper is a simulated broker. Orders fill immediately at the current
// quote plus configured slippage, and a monitor goroutine watches live
// ticks to close positions when their stop or target is crossed.
type Paper struct {
	data     repository.MarketData
	symbol   string
	slipPts  float64
	interval time.Duration
	contract risk.Contract
	log      *logger.Logger

	mu   sync.Mutex
	open map[string]*paperPosition
	seq  int

	events chan models.BrokerEvent
	stop   chan struct{}
	once   sync.Once
}

// PaperOption configures the paper broker.
type PaperOption func(*Paper)

// WithSlippage sets the simulated fill slippage in points.
func WithSlippage(points float64) PaperOption {
	return func(p *Paper) { p.slipPts = points }
}

// WithPollInterval sets how often open positions are checked against the
// latest tick.
func WithPollInterval(d time.Duration) PaperOption {
	return func(p *Paper) {
		if d > 0 {
			p.interval = d
		}
	}
}

// NewPaper creates a paper broker over the live market data feed.
func NewPaper(data repository.MarketData, symbol string, log *logger.Logger, opts ...PaperOption) *Paper {
	p := &Paper{
		data:     data,
		symbol:   symbol,
		slipPts:  2,
		interval: time.Second,
		contract: risk.GoldContract(),
		log:      log,
		open:     make(map[string]*paperPosition),
		events:   make(chan models.BrokerEvent, 16),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run watches ticks until the context ends or Close is called.
func (p *Paper) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

func (p *Paper) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.OrderAck, error) {
	if req.Lots <= 0 {
		return nil, fmt.Errorf("invalid lot size %v", req.Lots)
	}

	fill := req.Entry
	if tick, err := p.data.LastTick(ctx, req.Symbol); err == nil {
		if req.Direction == models.Long {
			fill = tick.Ask
		} else {
			fill = tick.Bid
		}
	}
	slip := p.slipPts * pointSize
	if req.Direction == models.Long {
		fill += slip
	} else {
		fill -= slip
	}

	p.mu.Lock()
	p.seq++
	ticket := fmt.Sprintf("paper-%d", p.seq)
	p.open[ticket] = &paperPosition{
		signalID:   req.SignalID,
		direction:  req.Direction,
		fillPrice:  fill,
		lots:       req.Lots,
		stopLoss:   req.StopLoss,
		takeProfit: req.TakeProfit,
	}
	p.mu.Unlock()

	p.log.Info("paper fill",
		logger.String("ticket", ticket),
		logger.String("signal_id", req.SignalID),
		logger.Float64("price", fill),
		logger.Float64("lots", req.Lots))

	return &models.OrderAck{Ticket: ticket, FillPrice: fill, FilledAt: time.Now().UTC()}, nil
}

func (p *Paper) CloseOrder(ctx context.Context, ticket string) error {
	p.mu.Lock()
	pos, ok := p.open[ticket]
	if ok {
		delete(p.open, ticket)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown ticket %q", ticket)
	}

	exit := pos.fillPrice
	if tick, err := p.data.LastTick(ctx, p.symbol); err == nil {
		exit = p.exitQuote(pos.direction, tick)
	}
	p.emit(ticket, pos, models.BrokerEventManual, exit)
	return nil
}

func (p *Paper) Events() <-chan models.BrokerEvent { return p.events }

func (p *Paper) Health(context.Context) error { return nil }

func (p *Paper) Close() error {
	p.once.Do(func() { close(p.stop) })
	return nil
}

// check closes any open position whose stop or target the latest tick has
// crossed. Stops win over targets when a single tick spans both.
func (p *Paper) check(ctx context.Context) {
	tick, err := p.data.LastTick(ctx, p.symbol)
	if err != nil {
		return
	}

	type hit struct {
		ticket string
		pos    *paperPosition
		kind   models.BrokerEventKind
		exit   float64
	}
	var hits []hit

	p.mu.Lock()
	for ticket, pos := range p.open {
		quote := p.exitQuote(pos.direction, tick)
		switch {
		case pos.direction == models.Long && quote <= pos.stopLoss:
			hits = append(hits, hit{ticket, pos, models.BrokerEventStopLoss, pos.stopLoss})
		case pos.direction == models.Short && quote >= pos.stopLoss:
			hits = append(hits, hit{ticket, pos, models.BrokerEventStopLoss, pos.stopLoss})
		case pos.direction == models.Long && quote >= pos.takeProfit:
			hits = append(hits, hit{ticket, pos, models.BrokerEventTakeProfit, pos.takeProfit})
		case pos.direction == models.Short && quote <= pos.takeProfit:
			hits = append(hits, hit{ticket, pos, models.BrokerEventTakeProfit, pos.takeProfit})
		}
	}
	for _, h := range hits {
		delete(p.open, h.ticket)
	}
	p.mu.Unlock()

	for _, h := range hits {
		p.emit(h.ticket, h.pos, h.kind, h.exit)
	}
}

// exitQuote is the side of the quote a close would execute at.
func (p *Paper) exitQuote(d models.Direction, t *models.Tick) float64 {
	if d == models.Long {
		return t.Bid
	}
	return t.Ask
}

func (p *Paper) emit(ticket string, pos *paperPosition, kind models.BrokerEventKind, exit float64) {
	pnl := (exit - pos.fillPrice) * pos.lots * p.contract.ContractSize
	if pos.direction == models.Short {
		pnl = -pnl
	}
	ev := models.BrokerEvent{
		Kind:      kind,
		Ticket:    ticket,
		SignalID:  pos.signalID,
		ExitPrice: exit,
		PnL:       pnl,
		At:        time.Now().UTC(),
	}
	select {
	case p.events <- ev:
	default:
		p.log.Error("broker event dropped", logger.String("ticket", ticket))
	}
}

var _ repository.Broker = (*Paper)(nil)
