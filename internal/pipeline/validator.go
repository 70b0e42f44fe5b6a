package pipeline

import (
	"fmt"
	"math"
	"time"

	"GoldPulse/internal/domain/models"
)

// RejectReason classifies why the validator dropped a candidate.
type RejectReason string

const (
	RejectStale      RejectReason = "stale_candle"
	RejectBadPrice   RejectReason = "bad_price"
	RejectBadStop    RejectReason = "bad_stop"
	RejectBadTarget  RejectReason = "bad_target"
	RejectLowRR      RejectReason = "low_risk_reward"
	RejectDrifted    RejectReason = "entry_drifted"
	RejectDirection  RejectReason = "bad_direction"
	RejectConfidence RejectReason = "bad_confidence"
)

// ValidationError is an expected filtering outcome, not a fault. It carries
// the reason so the caller can count and debug-log it, then drop the
// candidate.
type ValidationError struct {
	Reason RejectReason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation rejected (%s): %s", e.Reason, e.Detail)
}

func reject(reason RejectReason, format string, a ...interface{}) *ValidationError {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, a...)}
}

// Validator rejects stale or malformed candidates before deduplication.
// Validation is pure; it holds no state beyond its configured bounds.
type Validator struct {
	maxAge        time.Duration
	minRR         float64
	maxEntryDrift float64
	now           func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithNow overrides the wall clock, used in tests.
func WithNow(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// WithMinRiskReward overrides the minimum accepted reward/risk ratio.
func WithMinRiskReward(rr float64) ValidatorOption {
	return func(v *Validator) { v.minRR = rr }
}

// WithMaxEntryDrift overrides the maximum fractional distance between the
// candidate entry and the current market price.
func WithMaxEntryDrift(frac float64) ValidatorOption {
	return func(v *Validator) { v.maxEntryDrift = frac }
}

// NewValidator creates a Validator. maxAge bounds how old a candle close
// may be before the candidate is considered a restart replay.
func NewValidator(maxAge time.Duration, opts ...ValidatorOption) *Validator {
	v := &Validator{
		maxAge:        maxAge,
		minRR:         1.5,
		maxEntryDrift: 0.05,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns nil when the candidate may proceed, or a
// *ValidationError naming the first failed check.
func (v *Validator) Validate(c models.CandidateSignal) error {
	if !c.Direction.Valid() {
		return reject(RejectDirection, "unknown direction %q", c.Direction)
	}

	if age := v.now().Sub(c.CandleTime); age >= v.maxAge {
		return reject(RejectStale, "candle closed %.1fh ago, max %.1fh",
			age.Hours(), v.maxAge.Hours())
	}

	for _, p := range []float64{c.Entry, c.StopLoss, c.TakeProfit} {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return reject(RejectBadPrice, "non-finite or non-positive price %v", p)
		}
	}

	if c.Confidence < 0 || c.Confidence > 1 || math.IsNaN(c.Confidence) {
		return reject(RejectConfidence, "confidence %v outside [0,1]", c.Confidence)
	}

	if c.RiskDistance() <= 0 {
		return reject(RejectBadStop, "stop %.2f not on losing side of entry %.2f for %s",
			c.StopLoss, c.Entry, c.Direction)
	}
	if c.RewardDistance() <= 0 {
		return reject(RejectBadTarget, "target %.2f not on winning side of entry %.2f for %s",
			c.TakeProfit, c.Entry, c.Direction)
	}

	if rr := c.RiskReward(); rr < v.minRR {
		return reject(RejectLowRR, "risk/reward %.2f below minimum %.2f", rr, v.minRR)
	}

	if c.CurrentPrice > 0 {
		drift := math.Abs(c.Entry-c.CurrentPrice) / c.CurrentPrice
		if drift > v.maxEntryDrift {
			return reject(RejectDrifted, "entry %.2f is %.1f%% from market %.2f",
				c.Entry, drift*100, c.CurrentPrice)
		}
	}

	return nil
}
