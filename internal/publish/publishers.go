package publish

import (
	"sync"

	"exchange-core/internal/messages"
	"exchange-core/internal/metrics"
	"exchange-core/pkg/money"
)

// CurrentMarketPublisher fans out top-of-book snapshots.
type CurrentMarketPublisher struct {
	reg *registry
}

// NewCurrentMarketPublisher constructs an empty publisher.
func NewCurrentMarketPublisher() *CurrentMarketPublisher {
	return &CurrentMarketPublisher{reg: newRegistry()}
}

// SetMetrics wires the active-subscriptions gauge for this publisher.
// Passing nil disables recording again.
func (p *CurrentMarketPublisher) SetMetrics(m *metrics.Registry) {
	p.reg.setMetrics("current_market", m)
}

// Subscribe registers user for current-market updates on product.
func (p *CurrentMarketPublisher) Subscribe(product, user string, obs Observer) error {
	return p.reg.subscribe(product, user, obs)
}

// Unsubscribe removes user's subscription on product.
func (p *CurrentMarketPublisher) Unsubscribe(product, user string) error {
	return p.reg.unsubscribe(product, user)
}

// PublishCurrentMarket delivers the current top of book to every
// subscriber of product. Null prices are reported as $0.00.
func (p *CurrentMarketPublisher) PublishCurrentMarket(product string, buyPrice *money.Price, buyVolume int, sellPrice *money.Price, sellVolume int) {
	if buyPrice == nil {
		buyPrice = money.Zero()
	}
	if sellPrice == nil {
		sellPrice = money.Zero()
	}

	p.reg.mu.Lock()
	defer p.reg.mu.Unlock()
	p.reg.forEach(product, func(_ string, obs Observer) {
		obs.AcceptCurrentMarket(product, buyPrice, buyVolume, sellPrice, sellVolume)
	})
}

// LastSalePublisher fans out executed-trade notices, and delegates to a
// TickerPublisher afterward.
type LastSalePublisher struct {
	reg    *registry
	ticker *TickerPublisher
}

// NewLastSalePublisher constructs a publisher that forwards every last
// sale to ticker.
func NewLastSalePublisher(ticker *TickerPublisher) *LastSalePublisher {
	return &LastSalePublisher{reg: newRegistry(), ticker: ticker}
}

// SetMetrics wires the active-subscriptions gauge for this publisher.
// Passing nil disables recording again.
func (p *LastSalePublisher) SetMetrics(m *metrics.Registry) {
	p.reg.setMetrics("last_sale", m)
}

// Subscribe registers user for last-sale updates on product.
func (p *LastSalePublisher) Subscribe(product, user string, obs Observer) error {
	return p.reg.subscribe(product, user, obs)
}

// Unsubscribe removes user's subscription on product.
func (p *LastSalePublisher) Unsubscribe(product, user string) error {
	return p.reg.unsubscribe(product, user)
}

// PublishLastSale delivers (product, price, volume) to subscribers, then
// forwards to the ticker publisher for the same (product, price).
func (p *LastSalePublisher) PublishLastSale(product string, price *money.Price, volume int) {
	if price == nil {
		price = money.Zero()
	}

	p.reg.mu.Lock()
	p.reg.forEach(product, func(_ string, obs Observer) {
		obs.AcceptLastSale(product, price, volume)
	})
	p.reg.mu.Unlock()

	p.ticker.PublishTicker(product, price)
}

// TickerPublisher fans out a direction character derived from the
// sequence of last-sale prices per product.
type TickerPublisher struct {
	reg *registry

	mu       sync.Mutex
	lastSeen map[string]*money.Price
}

// NewTickerPublisher constructs an empty publisher.
func NewTickerPublisher() *TickerPublisher {
	return &TickerPublisher{reg: newRegistry(), lastSeen: make(map[string]*money.Price)}
}

// SetMetrics wires the active-subscriptions gauge for this publisher.
// Passing nil disables recording again.
func (p *TickerPublisher) SetMetrics(m *metrics.Registry) {
	p.reg.setMetrics("ticker", m)
}

// Subscribe registers user for ticker updates on product.
func (p *TickerPublisher) Subscribe(product, user string, obs Observer) error {
	return p.reg.subscribe(product, user, obs)
}

// Unsubscribe removes user's subscription on product.
func (p *TickerPublisher) Unsubscribe(product, user string) error {
	return p.reg.unsubscribe(product, user)
}

// PublishTicker computes the direction character for (product, price)
// against the last-seen price for product, delivers it to every
// subscriber, then updates the stored last-seen price.
func (p *TickerPublisher) PublishTicker(product string, price *money.Price) {
	if price == nil {
		price = money.Zero()
	}

	p.mu.Lock()
	prev, seen := p.lastSeen[product]
	p.mu.Unlock()

	direction := directionOf(prev, seen, price)

	p.reg.mu.Lock()
	p.reg.forEach(product, func(_ string, obs Observer) {
		obs.AcceptTicker(product, price, direction)
	})
	p.reg.mu.Unlock()

	p.mu.Lock()
	p.lastSeen[product] = price
	p.mu.Unlock()
}

// directionOf implements the exact mapping required by the ticker
// property: space on first observation, '=' if unchanged, '↓' if the
// previous price was strictly greater (price fell), '↑' otherwise (price
// rose). This must not be "simplified" — the comparison direction is
// deliberately previous-vs-new, not new-vs-previous.
func directionOf(prev *money.Price, seen bool, price *money.Price) rune {
	if !seen {
		return DirectionFirst
	}
	if prev.Equals(price) {
		return DirectionFlat
	}
	if prev.CompareTo(price) > 0 {
		return DirectionDown
	}
	return DirectionUp
}

// MessagePublisher fans out fill, cancel, and market-state messages.
type MessagePublisher struct {
	reg     *registry
	metrics *metrics.Registry
}

// NewMessagePublisher constructs an empty publisher.
func NewMessagePublisher() *MessagePublisher {
	return &MessagePublisher{reg: newRegistry()}
}

// SetMetrics wires m in; PublishFill/PublishCancel record into it from then
// on regardless of whether a subscriber was present to receive the
// message. Passing nil disables recording again.
func (p *MessagePublisher) SetMetrics(m *metrics.Registry) {
	p.reg.mu.Lock()
	p.metrics = m
	p.reg.mu.Unlock()
	p.reg.setMetrics("message", m)
}

// Subscribe registers user for fill/cancel/market messages on product.
func (p *MessagePublisher) Subscribe(product, user string, obs Observer) error {
	return p.reg.subscribe(product, user, obs)
}

// Unsubscribe removes user's subscription on product.
func (p *MessagePublisher) Unsubscribe(product, user string) error {
	return p.reg.unsubscribe(product, user)
}

// PublishFill delivers f only to the subscriber whose user name equals
// f.User and who is subscribed to f.Product.
func (p *MessagePublisher) PublishFill(f messages.Fill) {
	p.reg.mu.Lock()
	defer p.reg.mu.Unlock()
	if p.metrics != nil {
		p.metrics.FillsTotal.WithLabelValues(string(f.Side)).Inc()
	}
	if obs, ok := p.reg.get(f.Product, f.User); ok {
		obs.AcceptFill(f)
	}
}

// PublishCancel delivers c only to the subscriber whose user name equals
// c.User and who is subscribed to c.Product.
func (p *MessagePublisher) PublishCancel(c messages.Cancel) {
	p.reg.mu.Lock()
	defer p.reg.mu.Unlock()
	if p.metrics != nil {
		p.metrics.CancelsTotal.WithLabelValues(c.Details).Inc()
	}
	if obs, ok := p.reg.get(c.Product, c.User); ok {
		obs.AcceptCancel(c)
	}
}

// PublishMarketMessage delivers state to every known subscriber on every
// product registry; a user subscribed to several products receives one
// delivery per subscription.
func (p *MessagePublisher) PublishMarketMessage(state string) {
	p.reg.mu.Lock()
	defer p.reg.mu.Unlock()
	p.reg.forEachProduct(func(product string) {
		p.reg.forEach(product, func(_ string, obs Observer) {
			obs.AcceptMarketMessage(state)
		})
	})
}
