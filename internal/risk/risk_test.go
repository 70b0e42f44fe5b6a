package risk

import (
	"errors"
	"sync"
	"testing"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testConfig() Config {
	return Config{
		MaxPositions:    3,
		MaxRiskPerTrade: 0.02,
		DailyLossLimit:  0.05,
		MinEquityFrac:   0.5,
	}
}

func signalWithStop(entry, stop float64) *models.Signal {
	return models.NewSignal(models.CandidateSignal{
		Symbol:     "XAUUSD",
		Timeframe:  "1h",
		Strategy:   "momentum",
		Direction:  models.Long,
		Entry:      entry,
		StopLoss:   stop,
		TakeProfit: entry + 2*(entry-stop),
		CandleTime: time.Now(),
	}, time.Now())
}

func denyReason(t *testing.T, err error) DenyReason {
	t.Helper()
	var derr *DenialError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DenialError, got %v", err)
	}
	return derr.Reason
}

func TestLotSizeGold(t *testing.T) {
	// 2% of 10k = $200 risk; $5 stop distance at contract 100 means
	// $500 loss per lot, so 0.4 lots.
	got := LotSize(10000, 0.02, 2400, 2395, GoldContract())
	if got != 0.4 {
		t.Fatalf("expected 0.4 lots, got %v", got)
	}
}

func TestLotSizeClampedToMin(t *testing.T) {
	got := LotSize(100, 0.01, 2400, 2350, GoldContract())
	if got != GoldContract().VolumeMin {
		t.Fatalf("expected floor at volume min, got %v", got)
	}
}

func TestLotSizeZeroDistance(t *testing.T) {
	if got := LotSize(10000, 0.02, 2400, 2400, GoldContract()); got != 0 {
		t.Fatalf("expected 0 for zero stop distance, got %v", got)
	}
}

// capConfig widens the daily budget so the position cap is the binding
// limit.
func capConfig() Config {
	cfg := testConfig()
	cfg.DailyLossLimit = 0.2
	return cfg
}

func TestAuthorizePositionCap(t *testing.T) {
	g := NewGate(capConfig(), NewState(10000), testLogger(t), nil)

	var allowed int
	for i := 0; i < 5; i++ {
		if _, err := g.Authorize(signalWithStop(2400, 2395)); err == nil {
			allowed++
		} else if got := denyReason(t, err); got != DenyMaxPositions {
			t.Fatalf("expected max positions denial, got %s", got)
		}
	}
	if allowed != 3 {
		t.Fatalf("expected 3 authorizations at cap 3, got %d", allowed)
	}
}

func TestAuthorizeConcurrentNeverExceedsCap(t *testing.T) {
	g := NewGate(capConfig(), NewState(10000), testLogger(t), nil)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Authorize(signalWithStop(2400, 2395))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var allowed int
	for err := range results {
		if err == nil {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("racing authorizations exceeded cap: %d allowed", allowed)
	}
}

func TestReleaseFreesSlot(t *testing.T) {
	g := NewGate(capConfig(), NewState(10000), testLogger(t), nil)

	var ids []string
	for i := 0; i < 3; i++ {
		s := signalWithStop(2400, 2395)
		if _, err := g.Authorize(s); err != nil {
			t.Fatalf("authorize %d: %v", i, err)
		}
		ids = append(ids, s.ID)
	}
	if _, err := g.Authorize(signalWithStop(2400, 2395)); err == nil {
		t.Fatalf("expected denial at cap")
	}

	g.Release(ids[0])
	if _, err := g.Authorize(signalWithStop(2400, 2395)); err != nil {
		t.Fatalf("slot released but still denied: %v", err)
	}
}

func TestCloseFreesSlotAndBooksPnL(t *testing.T) {
	g := NewGate(testConfig(), NewState(10000), testLogger(t), nil)

	s := signalWithStop(2400, 2395)
	if _, err := g.Authorize(s); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	g.Confirm(s.ID)
	g.RecordClose(150)

	sum := g.Summary()
	if sum.OpenPositions != 0 {
		t.Fatalf("expected 0 open after close, got %d", sum.OpenPositions)
	}
	if sum.Equity != 10150 {
		t.Fatalf("expected equity 10150, got %v", sum.Equity)
	}
	if sum.DailyPnL != 150 {
		t.Fatalf("expected daily pnl 150, got %v", sum.DailyPnL)
	}
}

func TestDailyLossLockoutAndReset(t *testing.T) {
	g := NewGate(testConfig(), NewState(10000), testLogger(t), nil)

	// Lose the full 5% daily budget.
	s := signalWithStop(2400, 2395)
	if _, err := g.Authorize(s); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	g.Confirm(s.ID)
	g.RecordClose(-500)

	if _, err := g.Authorize(signalWithStop(2400, 2395)); err == nil {
		t.Fatalf("expected halt after daily loss limit")
	} else if got := denyReason(t, err); got != DenyHalted {
		t.Fatalf("expected halted denial, got %s", got)
	}

	g.ResetDaily()
	if _, err := g.Authorize(signalWithStop(2400, 2395)); err != nil {
		t.Fatalf("expected authorization after daily reset: %v", err)
	}
}

func TestDailyBudgetCountsPendingRisk(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositions = 10
	g := NewGate(cfg, NewState(10000), testLogger(t), nil)

	// Each authorization risks ~2% of equity; the 5% daily budget
	// cannot hold three worst cases at once.
	var allowed int
	for i := 0; i < 4; i++ {
		if _, err := g.Authorize(signalWithStop(2400, 2395)); err == nil {
			allowed++
		} else if got := denyReason(t, err); got != DenyDailyLoss {
			t.Fatalf("expected daily loss denial, got %s", got)
		}
	}
	if allowed != 2 {
		t.Fatalf("expected 2 authorizations within daily budget, got %d", allowed)
	}
}

func TestEquityFloorDenies(t *testing.T) {
	g := NewGate(testConfig(), NewState(10000), testLogger(t), nil)
	g.state.Rehydrate(4900, 0, 0)

	if _, err := g.Authorize(signalWithStop(2400, 2395)); err == nil {
		t.Fatalf("expected equity floor denial")
	} else if got := denyReason(t, err); got != DenyEquityFloor {
		t.Fatalf("expected equity floor, got %s", got)
	}
}
