package publish

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"exchange-core/internal/metrics"
	"exchange-core/internal/xerrors"
)

// registry is the insertion-ordered, per-product subscriber map shared by
// all four publishers. Subscriber order within a product is preserved so
// fan-out is deterministic across runs. name identifies the owning
// publisher for the active-subscriptions gauge.
type registry struct {
	mu        sync.Mutex
	byProduct map[string]*orderedmap.OrderedMap[string, Observer]
	name      string
	metrics   *metrics.Registry
	total     int
}

func newRegistry() *registry {
	return &registry{byProduct: make(map[string]*orderedmap.OrderedMap[string, Observer])}
}

func (r *registry) subscribe(product, user string, obs Observer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byProduct[product]
	if !ok {
		m = orderedmap.New[string, Observer]()
		r.byProduct[product] = m
	}
	if _, present := m.Get(user); present {
		return xerrors.Newf(xerrors.AlreadySubscribed, "user %s already subscribed to %s", user, product)
	}
	m.Set(user, obs)
	r.total++
	r.recordActiveSubscriptions()
	return nil
}

func (r *registry) unsubscribe(product, user string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byProduct[product]
	if !ok {
		return xerrors.Newf(xerrors.NotSubscribed, "user %s not subscribed to %s", user, product)
	}
	if _, present := m.Delete(user); !present {
		return xerrors.Newf(xerrors.NotSubscribed, "user %s not subscribed to %s", user, product)
	}
	r.total--
	r.recordActiveSubscriptions()
	return nil
}

// recordActiveSubscriptions must be called with r.mu held.
func (r *registry) recordActiveSubscriptions() {
	if r.metrics == nil {
		return
	}
	r.metrics.ActiveSubscriptions.WithLabelValues(r.name).Set(float64(r.total))
}

// setMetrics wires m into the registry under the given publisher name.
func (r *registry) setMetrics(name string, m *metrics.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	r.metrics = m
	r.recordActiveSubscriptions()
}

// forEach calls fn for every subscriber of product in insertion order. It
// must be called with r.mu held: publishers hold the lock across delivery
// so a subscribe/unsubscribe racing with a publish sees a consistent view,
// per the observer re-entry design note (observers must not call back into
// the engine from within a callback).
func (r *registry) forEach(product string, fn func(user string, obs Observer)) {
	m, ok := r.byProduct[product]
	if !ok {
		return
	}
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

func (r *registry) get(product, user string) (Observer, bool) {
	m, ok := r.byProduct[product]
	if !ok {
		return nil, false
	}
	return m.Get(user)
}

func (r *registry) forEachProduct(fn func(product string)) {
	for product := range r.byProduct {
		fn(product)
	}
}
