package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"GoldPulse/internal/dedup"
	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/pkg/logger"
)

// Pipeline chains validation, deduplication and publication. One shared
// instance serves all timeframe workers; validation and dedup are in-memory
// and cheap, publication does the blocking I/O.
type Pipeline struct {
	validator *Validator
	dedup     *dedup.Deduplicator
	bus       *Bus
	log       *logger.Logger
	m         repository.Metrics
	now       func() time.Time

	startedAt time.Time
	generated atomic.Uint64
	rejected  atomic.Uint64
	duplicate atomic.Uint64
	published atomic.Uint64
}

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats struct {
	Generated     uint64        `json:"generated"`
	Rejected      uint64        `json:"rejected"`
	Duplicates    uint64        `json:"duplicates"`
	Published     uint64        `json:"published"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Uptime        time.Duration `json:"-"`
}

// NewPipeline wires the stages together.
func NewPipeline(v *Validator, d *dedup.Deduplicator, b *Bus, log *logger.Logger, m repository.Metrics) *Pipeline {
	return &Pipeline{
		validator: v,
		dedup:     d,
		bus:       b,
		log:       log,
		m:         m,
		now:       time.Now,
		startedAt: time.Now(),
	}
}

// Stats reports the counters accumulated since the pipeline was built.
func (p *Pipeline) Stats() Stats {
	up := time.Since(p.startedAt)
	return Stats{
		Generated:     p.generated.Load(),
		Rejected:      p.rejected.Load(),
		Duplicates:    p.duplicate.Load(),
		Published:     p.published.Load(),
		UptimeSeconds: up.Seconds(),
		Uptime:        up,
	}
}

// Process runs one candidate through the pipeline. It returns the published
// Signal, or nil when the candidate was filtered. Filtering is not an
// error; the error return is reserved for publication failures.
func (p *Pipeline) Process(ctx context.Context, c models.CandidateSignal) (*models.Signal, error) {
	p.generated.Add(1)
	if p.m != nil {
		p.m.RecordSignalGenerated(c.Timeframe, c.Strategy)
	}

	if err := p.validator.Validate(c); err != nil {
		p.rejected.Add(1)
		var verr *ValidationError
		if errors.As(err, &verr) && p.m != nil {
			p.m.RecordValidationFailure(c.Timeframe, string(verr.Reason))
		}
		p.log.Debug("candidate rejected",
			logger.String("timeframe", c.Timeframe),
			logger.String("strategy", c.Strategy),
			logger.Error(err))
		return nil, nil
	}

	if !p.dedup.Admit(ctx, c) {
		p.duplicate.Add(1)
		return nil, nil
	}

	s := models.NewSignal(c, p.now())
	if err := p.bus.Publish(ctx, s); err != nil {
		// The signal was never stored, so evict the fingerprint
		// instead of suppressing retries for the whole dedup window.
		p.dedup.Forget(ctx, c)
		return nil, err
	}

	p.published.Add(1)
	if p.m != nil {
		p.m.RecordSignalPublished(c.Timeframe, c.Strategy)
	}
	p.log.Info("signal published",
		logger.String("signal_id", s.ID),
		logger.String("timeframe", s.Timeframe),
		logger.String("strategy", s.Strategy),
		logger.String("direction", string(s.Direction)),
		logger.Float64("entry", s.Entry),
		logger.Float64("risk_reward", s.RiskReward))
	return s, nil
}

// NotifyClosed propagates a closure event to subscribers.
func (p *Pipeline) NotifyClosed(ctx context.Context, s *models.Signal) {
	p.bus.PublishClosed(ctx, s)
}
