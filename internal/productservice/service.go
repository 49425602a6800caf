// Package productservice implements the symbol registry and market
// state machine that sits above every per-symbol ProductBook.
package productservice

import (
	"sync"

	"exchange-core/internal/metrics"
	"exchange-core/internal/product"
	"exchange-core/internal/publish"
	"exchange-core/internal/tradable"
	"exchange-core/internal/xerrors"
)

// legal holds the only transitions setMarketState accepts.
var legal = map[product.State]product.State{
	product.Closed:  product.Preopen,
	product.Preopen: product.Open,
	product.Open:    product.Closed,
}

// Service is the process-wide symbol registry and market state machine.
// Construct one with New and share it; it is safe for concurrent use.
type Service struct {
	mu      sync.RWMutex
	books   map[string]*product.ProductBook
	state   product.State
	message *publish.MessagePublisher

	currentMarket *publish.CurrentMarketPublisher
	lastSale      *publish.LastSalePublisher

	metrics *metrics.Registry
}

// SetMetrics wires m into the service; SubmitOrder/SubmitQuote/
// SetMarketState record into it from then on. Passing nil disables
// recording again; safe to call at any time.
func (s *Service) SetMetrics(m *metrics.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// New constructs a Service starting in CLOSED state, wired to the
// process-wide publisher singletons.
func New(currentMarket *publish.CurrentMarketPublisher, lastSale *publish.LastSalePublisher, message *publish.MessagePublisher) *Service {
	return &Service{
		books:         make(map[string]*product.ProductBook),
		state:         product.Closed,
		currentMarket: currentMarket,
		lastSale:      lastSale,
		message:       message,
	}
}

// CreateProduct registers symbol with a fresh, empty ProductBook.
func (s *Service) CreateProduct(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.books[symbol]; exists {
		return xerrors.Newf(xerrors.ProductAlreadyExists, "product %s already exists", symbol)
	}
	s.books[symbol] = product.New(symbol, s.currentMarket, s.lastSale, s.message)
	return nil
}

// GetProducts lists every registered symbol.
func (s *Service) GetProducts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.books))
	for sym := range s.books {
		out = append(out, sym)
	}
	return out
}

// GetMarketState returns the current market state.
func (s *Service) GetMarketState() product.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) bookFor(symbol string) (*product.ProductBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[symbol]
	if !ok {
		return nil, xerrors.Newf(xerrors.NoSuchProduct, "no such product %s", symbol)
	}
	return b, nil
}

// SetMarketState drives the state machine. Only CLOSED->PREOPEN,
// PREOPEN->OPEN, and OPEN->CLOSED are legal; every other request fails
// with InvalidMarketStateTransition. Entering OPEN runs OpenMarket on
// every book; entering CLOSED runs CloseMarket on every book. Every
// successful transition publishes a MarketMessage.
func (s *Service) SetMarketState(next product.State) error {
	s.mu.Lock()
	current := s.state
	if legal[current] != next {
		s.mu.Unlock()
		return xerrors.Newf(xerrors.InvalidMarketStateTransition, "cannot transition from %s to %s", current, next)
	}
	s.state = next
	books := make([]*product.ProductBook, 0, len(s.books))
	for _, b := range s.books {
		books = append(books, b)
	}
	s.mu.Unlock()

	for _, b := range books {
		switch next {
		case product.Open:
			b.OpenMarket()
		case product.Closed:
			b.CloseMarket()
		}
	}

	s.message.PublishMarketMessage(string(next))

	s.mu.RLock()
	m := s.metrics
	s.mu.RUnlock()
	if m != nil {
		m.MarketState.Set(metrics.MarketStateValue(string(next)))
	}
	return nil
}

// SubmitOrder submits o against symbol's book under the current state.
func (s *Service) SubmitOrder(symbol string, o tradable.Tradable) error {
	b, err := s.bookFor(symbol)
	if err != nil {
		return err
	}
	if err := b.SubmitOrder(o, s.GetMarketState()); err != nil {
		return err
	}
	s.mu.RLock()
	m := s.metrics
	s.mu.RUnlock()
	if m != nil {
		m.OrdersSubmitted.WithLabelValues(string(o.Side())).Inc()
	}
	return nil
}

// SubmitQuote submits q against q.Product's book under the current state.
func (s *Service) SubmitQuote(q *tradable.Quote) error {
	b, err := s.bookFor(q.Product)
	if err != nil {
		return err
	}
	if err := b.SubmitQuote(q, s.GetMarketState()); err != nil {
		return err
	}
	s.mu.RLock()
	m := s.metrics
	s.mu.RUnlock()
	if m != nil {
		m.QuotesSubmitted.Inc()
	}
	return nil
}

// CancelOrder cancels a resting order on symbol's book.
func (s *Service) CancelOrder(symbol string, side tradable.Side, orderID string) error {
	b, err := s.bookFor(symbol)
	if err != nil {
		return err
	}
	return b.CancelOrder(side, orderID, s.GetMarketState())
}

// CancelQuote cancels user's live quote on symbol's book.
func (s *Service) CancelQuote(symbol, user string) error {
	b, err := s.bookFor(symbol)
	if err != nil {
		return err
	}
	return b.CancelQuote(user, s.GetMarketState())
}

// GetBookDepth returns [buyRows, sellRows] for symbol.
func (s *Service) GetBookDepth(symbol string) ([]string, []string, error) {
	b, err := s.bookFor(symbol)
	if err != nil {
		return nil, nil, err
	}
	buy, sell := b.GetBookDepth()
	return buy, sell, nil
}

// GetOrdersWithRemainingQty returns a snapshot of every resting entry on
// symbol's book.
func (s *Service) GetOrdersWithRemainingQty(symbol string) ([]tradable.DTO, error) {
	b, err := s.bookFor(symbol)
	if err != nil {
		return nil, err
	}
	return b.GetOrdersWithRemainingQty(), nil
}
