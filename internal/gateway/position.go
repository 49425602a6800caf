package gateway

import (
	"sync"

	"exchange-core/internal/tradable"
	"exchange-core/pkg/money"
)

// Position tracks one connected user's holdings, running account costs, and
// last-sale prices across every product they have traded or watched.
// Thread-safe via mutex; updated only from the user's own session callbacks.
type Position struct {
	mu           sync.RWMutex
	holdings     map[string]int
	accountCosts *money.Price
	lastSale     map[string]*money.Price
}

// NewPosition constructs an empty Position with zero account costs.
func NewPosition() *Position {
	return &Position{
		holdings:     make(map[string]int),
		accountCosts: money.Zero(),
		lastSale:     make(map[string]*money.Price),
	}
}

// UpdatePosition applies one fill leg: BUY adds shares and subtracts
// price*vol from accountCosts; SELL subtracts shares and adds. A holding
// that nets to zero is removed from the map.
func (p *Position) UpdatePosition(product string, price *money.Price, side tradable.Side, vol int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cost, err := price.MultiplyByInt(int64(vol))
	if err != nil {
		return err
	}

	signed := vol
	if side == tradable.Buy {
		signed = vol
		p.accountCosts, err = p.accountCosts.Subtract(cost)
	} else {
		signed = -vol
		p.accountCosts, err = p.accountCosts.Add(cost)
	}
	if err != nil {
		return err
	}

	next := p.holdings[product] + signed
	if next == 0 {
		delete(p.holdings, product)
	} else {
		p.holdings[product] = next
	}
	return nil
}

// UpdateLastSale records the latest sale price observed for product.
func (p *Position) UpdateLastSale(product string, price *money.Price) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSale[product] = price
}

// Holdings returns the current signed share balance for product.
func (p *Position) Holdings(product string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.holdings[product]
}

// AccountCosts returns the running accountCosts ledger.
func (p *Position) AccountCosts() *money.Price {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.accountCosts
}

// GetStockPositionValue returns lastSale(product) * holdings(product), or
// $0.00 if there is no last-sale price recorded for product yet.
func (p *Position) GetStockPositionValue(product string) *money.Price {
	p.mu.RLock()
	price, ok := p.lastSale[product]
	qty := p.holdings[product]
	p.mu.RUnlock()

	if !ok {
		return money.Zero()
	}
	v, err := price.MultiplyByInt(int64(qty))
	if err != nil {
		return money.Zero()
	}
	return v
}

// GetAllStockValue sums lastSale(p)*holdings(p) over every product held.
func (p *Position) GetAllStockValue() *money.Price {
	p.mu.RLock()
	products := make([]string, 0, len(p.holdings))
	for prod := range p.holdings {
		products = append(products, prod)
	}
	p.mu.RUnlock()

	total := money.Zero()
	for _, prod := range products {
		v := p.GetStockPositionValue(prod)
		var err error
		total, err = total.Add(v)
		if err != nil {
			return money.Zero()
		}
	}
	return total
}

// GetNetAccountValue returns accountCosts + GetAllStockValue().
func (p *Position) GetNetAccountValue() *money.Price {
	total, err := p.AccountCosts().Add(p.GetAllStockValue())
	if err != nil {
		return money.Zero()
	}
	return total
}
