package product

import (
	"sync"

	"exchange-core/internal/tradable"
)

// archiveStore holds retired tradables, indexed both by id (for
// checkTooLateToCancel) and by price. Nothing currently reads the
// price-bucketed view, but it is kept so an archive-depth query would have
// somewhere to live without restructuring storage.
type archiveStore struct {
	mu      sync.Mutex
	byID    map[string]tradable.Tradable
	byPrice map[int64][]tradable.Tradable
}

func newArchiveStore() *archiveStore {
	return &archiveStore{
		byID:    make(map[string]tradable.Tradable),
		byPrice: make(map[int64][]tradable.Tradable),
	}
}

// add retires t: capture oldRemaining, zero remaining, move oldRemaining
// into cancelled (via tradable.ArchiveReset, which performs that two-step
// update and bypasses the normal setter invariant check on the
// intermediate state), then file it for lookup.
func (a *archiveStore) add(t tradable.Tradable) {
	oldRemaining := t.RemainingVolume()
	tradable.ArchiveReset(t, oldRemaining)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.byID[t.ID()] = t
	key := int64(0)
	if !t.Price().IsMarket() {
		key = t.Price().Cents()
	}
	a.byPrice[key] = append(a.byPrice[key], t)
}

func (a *archiveStore) find(orderID string) (tradable.DTO, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.byID[orderID]
	if !ok {
		return tradable.DTO{}, false
	}
	return tradable.Snapshot(t), true
}
