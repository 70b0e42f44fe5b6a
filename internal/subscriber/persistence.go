package subscriber

import (
	"context"
	"fmt"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
)

// Persistence writes every published signal to the signal store. It must be
// the first subscriber on the bus: a storage failure here aborts the publish,
// so a signal is never live without a durable record.
type Persistence struct {
	store repository.SignalStore
}

func NewPersistence(store repository.SignalStore) *Persistence {
	return &Persistence{store: store}
}

func (p *Persistence) Name() string { return "persistence" }

func (p *Persistence) OnSignalPublished(ctx context.Context, s *models.Signal) error {
	if err := p.store.Store(ctx, s); err != nil {
		return fmt.Errorf("store signal %s: %w", s.ID, err)
	}
	return nil
}
