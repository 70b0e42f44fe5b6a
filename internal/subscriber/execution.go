package subscriber

import (
	"context"
	"errors"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/internal/execution"
	"GoldPulse/internal/risk"
	"GoldPulse/pkg/logger"
)

// Execution runs each published signal through the risk gate and, when
// authorized, hands it to the order coordinator on a detached goroutine.
// Broker latency therefore never counts against the bus delivery timeout.
type Execution struct {
	gate    *risk.Gate
	coord   *execution.Coordinator
	store   repository.SignalStore
	log     *logger.Logger
	timeout time.Duration
}

func NewExecution(gate *risk.Gate, coord *execution.Coordinator, store repository.SignalStore, log *logger.Logger) *Execution {
	return &Execution{
		gate:    gate,
		coord:   coord,
		store:   store,
		log:     log,
		timeout: 2 * time.Minute,
	}
}

func (e *Execution) Name() string { return "execution" }

func (e *Execution) OnSignalPublished(ctx context.Context, s *models.Signal) error {
	lots, err := e.gate.Authorize(s)
	if err != nil {
		var denial *risk.DenialError
		if errors.As(err, &denial) {
			e.reject(ctx, s, denial)
			return nil
		}
		return err
	}

	// Detach from the bus context: order placement outlives the delivery
	// window and must not be cancelled with it.
	go func() {
		execCtx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if err := e.coord.Execute(execCtx, s, lots); err != nil {
			e.log.Error("order execution failed",
				logger.String("signal_id", s.ID), logger.Error(err))
		}
	}()
	return nil
}

func (e *Execution) reject(ctx context.Context, s *models.Signal, denial *risk.DenialError) {
	s.Status = models.StatusRejected
	s.RejectReason = string(denial.Reason)
	if err := e.store.UpdateStatus(ctx, s); err != nil {
		e.log.Error("persist risk rejection failed",
			logger.String("signal_id", s.ID), logger.Error(err))
	}
}
