// Package gateway implements UserCommandService, the client-facing command
// surface responsible for session identity, authorization, and per-user
// Position bookkeeping. Every operation proxies to productservice.Service or
// to the publisher appropriate to the request.
package gateway

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"exchange-core/internal/product"
	"exchange-core/internal/productservice"
	"exchange-core/internal/publish"
	"exchange-core/internal/tradable"
	"exchange-core/internal/xerrors"
	"exchange-core/pkg/money"
)

// Service is the process-wide UserCommandService. Construct one with New
// and share it; it is safe for concurrent use. It is the outermost lock in
// the acquisition order: gateway -> productservice -> book -> side ->
// publisher -> observer.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*session

	connSeq uint64

	products      *productservice.Service
	currentMarket *publish.CurrentMarketPublisher
	lastSale      *publish.LastSalePublisher
	ticker        *publish.TickerPublisher
	message       *publish.MessagePublisher

	log *slog.Logger
}

// New constructs a Service wired to the given ProductService and publisher
// singletons.
func New(products *productservice.Service, currentMarket *publish.CurrentMarketPublisher, lastSale *publish.LastSalePublisher, ticker *publish.TickerPublisher, message *publish.MessagePublisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		sessions:      make(map[string]*session),
		products:      products,
		currentMarket: currentMarket,
		lastSale:      lastSale,
		ticker:        ticker,
		message:       message,
		log:           log.With("component", "gateway"),
	}
}

func normalizeUser(user string) string {
	return strings.ToUpper(strings.TrimSpace(user))
}

// nextConnID mints a monotonic, collision-free connection id, disambiguated
// by an atomic sequence appended below the nanosecond timestamp — the same
// scheme the engine uses for order ids (see tradable.NewOrder).
func (s *Service) nextConnID() int64 {
	ts := time.Now().UnixNano()
	seq := atomic.AddUint64(&s.connSeq, 1) & 0xFFF
	return ts<<12 | int64(seq)
}

// Connect registers user with observer ui as its client callback surface,
// returning a connection id that must accompany every subsequent call.
// Duplicate connects fail with AlreadyConnected.
func (s *Service) Connect(user string, ui publish.Observer) (int64, error) {
	user = normalizeUser(user)
	if user == "" {
		return 0, xerrors.New(xerrors.InvalidData, "gateway: user is required")
	}
	if ui == nil {
		return 0, xerrors.New(xerrors.InvalidData, "gateway: observer is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[user]; exists {
		return 0, xerrors.Newf(xerrors.AlreadyConnected, "user %s already connected", user)
	}
	connID := s.nextConnID()
	s.sessions[user] = newSession(user, connID, ui, s.log)
	s.log.Info("user connected", "user", user)
	return connID, nil
}

// DisConnect removes user's session. Authorization follows verifyUser.
func (s *Service) DisConnect(user string, connID int64) error {
	sess, err := s.verifyUser(user, connID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, sess.user)
	s.mu.Unlock()
	s.log.Info("user disconnected", "user", sess.user)
	return nil
}

// verifyUser authorizes (userName, connID): UserNotConnected if user is
// unknown, InvalidConnectionId if connID does not match the live session.
func (s *Service) verifyUser(user string, connID int64) (*session, error) {
	user = normalizeUser(user)
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[user]
	if !ok {
		return nil, xerrors.Newf(xerrors.UserNotConnected, "user %s is not connected", user)
	}
	if sess.connID != connID {
		return nil, xerrors.Newf(xerrors.InvalidConnectionID, "connection id for user %s does not match", user)
	}
	return sess, nil
}

// SubmitOrder validates (userName, connID), builds an Order, and submits it
// to productService under the symbol's current market state.
func (s *Service) SubmitOrder(user string, connID int64, product, priceStr string, volume int, side tradable.Side) (string, error) {
	if _, err := s.verifyUser(user, connID); err != nil {
		return "", err
	}
	price, err := money.ParseLimit(priceStr)
	if err != nil {
		return "", xerrors.Wrap(xerrors.InvalidData, err, "submitOrder: invalid price")
	}
	o, err := tradable.NewOrder(user, product, price, side, volume)
	if err != nil {
		return "", err
	}
	if err := s.products.SubmitOrder(product, o); err != nil {
		return "", err
	}
	return o.ID(), nil
}

// SubmitMarketOrder is SubmitOrder's MKT-price variant.
func (s *Service) SubmitMarketOrder(user string, connID int64, symbol string, volume int, side tradable.Side) (string, error) {
	if _, err := s.verifyUser(user, connID); err != nil {
		return "", err
	}
	o, err := tradable.NewOrder(user, symbol, money.MKT(), side, volume)
	if err != nil {
		return "", err
	}
	if err := s.products.SubmitOrder(symbol, o); err != nil {
		return "", err
	}
	return o.ID(), nil
}

// SubmitOrderCancel cancels a resting order by id on the given side.
func (s *Service) SubmitOrderCancel(user string, connID int64, symbol string, side tradable.Side, orderID string) error {
	if _, err := s.verifyUser(user, connID); err != nil {
		return err
	}
	return s.products.CancelOrder(symbol, side, orderID)
}

// SubmitQuote validates (userName, connID), builds a Quote, and submits it.
func (s *Service) SubmitQuote(user string, connID int64, symbol, buyPriceStr string, buyVolume int, sellPriceStr string, sellVolume int) error {
	if _, err := s.verifyUser(user, connID); err != nil {
		return err
	}
	buyPrice, err := money.ParseLimit(buyPriceStr)
	if err != nil {
		return xerrors.Wrap(xerrors.InvalidData, err, "submitQuote: invalid buy price")
	}
	sellPrice, err := money.ParseLimit(sellPriceStr)
	if err != nil {
		return xerrors.Wrap(xerrors.InvalidData, err, "submitQuote: invalid sell price")
	}
	q, err := tradable.NewQuote(user, symbol, buyPrice, buyVolume, sellPrice, sellVolume)
	if err != nil {
		return err
	}
	return s.products.SubmitQuote(q)
}

// SubmitQuoteCancel cancels user's live quote on symbol.
func (s *Service) SubmitQuoteCancel(user string, connID int64, symbol string) error {
	sess, err := s.verifyUser(user, connID)
	if err != nil {
		return err
	}
	return s.products.CancelQuote(symbol, sess.user)
}

// SubscribeCurrentMarket registers user's session for current-market
// updates on symbol.
func (s *Service) SubscribeCurrentMarket(user string, connID int64, symbol string) error {
	sess, err := s.verifyUser(user, connID)
	if err != nil {
		return err
	}
	return s.currentMarket.Subscribe(symbol, sess.user, sess)
}

// UnsubscribeCurrentMarket removes user's current-market subscription.
func (s *Service) UnsubscribeCurrentMarket(user string, connID int64, symbol string) error {
	sess, err := s.verifyUser(user, connID)
	if err != nil {
		return err
	}
	return s.currentMarket.Unsubscribe(symbol, sess.user)
}

// SubscribeLastSale registers user's session for last-sale updates on symbol.
func (s *Service) SubscribeLastSale(user string, connID int64, symbol string) error {
	sess, err := s.verifyUser(user, connID)
	if err != nil {
		return err
	}
	return s.lastSale.Subscribe(symbol, sess.user, sess)
}

// UnsubscribeLastSale removes user's last-sale subscription.
func (s *Service) UnsubscribeLastSale(user string, connID int64, symbol string) error {
	sess, err := s.verifyUser(user, connID)
	if err != nil {
		return err
	}
	return s.lastSale.Unsubscribe(symbol, sess.user)
}

// SubscribeTicker registers user's session for ticker updates on symbol.
func (s *Service) SubscribeTicker(user string, connID int64, symbol string) error {
	sess, err := s.verifyUser(user, connID)
	if err != nil {
		return err
	}
	return s.ticker.Subscribe(symbol, sess.user, sess)
}

// UnsubscribeTicker removes user's ticker subscription.
func (s *Service) UnsubscribeTicker(user string, connID int64, symbol string) error {
	sess, err := s.verifyUser(user, connID)
	if err != nil {
		return err
	}
	return s.ticker.Unsubscribe(symbol, sess.user)
}

// SubscribeMessages registers user's session for fill/cancel/market
// messages on symbol.
func (s *Service) SubscribeMessages(user string, connID int64, symbol string) error {
	sess, err := s.verifyUser(user, connID)
	if err != nil {
		return err
	}
	return s.message.Subscribe(symbol, sess.user, sess)
}

// UnsubscribeMessages removes user's message subscription.
func (s *Service) UnsubscribeMessages(user string, connID int64, symbol string) error {
	sess, err := s.verifyUser(user, connID)
	if err != nil {
		return err
	}
	return s.message.Unsubscribe(symbol, sess.user)
}

// GetBookDepth returns [buyRows, sellRows] for symbol. No session is
// required to read market data.
func (s *Service) GetBookDepth(symbol string) ([]string, []string, error) {
	return s.products.GetBookDepth(symbol)
}

// GetMarketState returns the current market state.
func (s *Service) GetMarketState() product.State {
	return s.products.GetMarketState()
}

// GetOrdersWithRemainingQty returns a snapshot of every resting entry on
// symbol's book.
func (s *Service) GetOrdersWithRemainingQty(symbol string) ([]tradable.DTO, error) {
	return s.products.GetOrdersWithRemainingQty(symbol)
}

// GetProducts lists every registered symbol.
func (s *Service) GetProducts() []string {
	return s.products.GetProducts()
}

// Position returns user's live Position, if connected.
func (s *Service) Position(user string) (*Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[normalizeUser(user)]
	if !ok {
		return nil, false
	}
	return sess.position, true
}

// CreateProduct is an admin operation: registers symbol with a fresh,
// empty ProductBook. Does not require a connected session.
func (s *Service) CreateProduct(symbol string) error {
	return s.products.CreateProduct(symbol)
}

// SetMarketState is an admin operation: drives the market state machine.
// Does not require a connected session.
func (s *Service) SetMarketState(next product.State) error {
	return s.products.SetMarketState(next)
}
