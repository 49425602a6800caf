package gateway

import (
	"log/slog"
	"time"

	"exchange-core/internal/messages"
	"exchange-core/internal/publish"
	"exchange-core/pkg/money"
)

// session is the per-connection record UserCommandService keeps for a
// connected user: the connection id, the connect time, the user's own
// Position ledger, and a thin publish.Observer wrapper that updates the
// Position before forwarding every callback to the caller's own UI
// observer. This wrapper only performs local mutation inside callbacks —
// it never calls back into the engine.
type session struct {
	user        string
	connID      int64
	connectedAt time.Time
	position    *Position
	ui          publish.Observer
	log         *slog.Logger
}

func newSession(user string, connID int64, ui publish.Observer, log *slog.Logger) *session {
	return &session{
		user:        user,
		connID:      connID,
		connectedAt: time.Now(),
		position:    NewPosition(),
		ui:          ui,
		log:         log,
	}
}

func (s *session) AcceptCurrentMarket(product string, buyPrice *money.Price, buyVolume int, sellPrice *money.Price, sellVolume int) {
	s.ui.AcceptCurrentMarket(product, buyPrice, buyVolume, sellPrice, sellVolume)
}

func (s *session) AcceptLastSale(product string, price *money.Price, volume int) {
	s.position.UpdateLastSale(product, price)
	s.ui.AcceptLastSale(product, price, volume)
}

func (s *session) AcceptTicker(product string, price *money.Price, direction rune) {
	s.ui.AcceptTicker(product, price, direction)
}

func (s *session) AcceptFill(f messages.Fill) {
	if err := s.position.UpdatePosition(f.Product, f.Price, f.Side, f.Volume); err != nil {
		// A faulty ledger update must not roll back the fill that
		// produced it; log and move on.
		s.log.Error("position update failed", "user", s.user, "product", f.Product, "error", err)
	}
	s.ui.AcceptFill(f)
}

func (s *session) AcceptCancel(c messages.Cancel) {
	s.ui.AcceptCancel(c)
}

func (s *session) AcceptMarketMessage(state string) {
	s.ui.AcceptMarketMessage(state)
}

// Position exposes the session's ledger for getStockPositionValue-style
// gateway reads.
func (s *session) Position() *Position { return s.position }
