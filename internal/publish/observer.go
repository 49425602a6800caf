// Package publish implements the exchange's four fan-out singletons —
// current market, last sale, ticker, and message — each holding an
// insertion-ordered subscription registry per product.
package publish

import (
	"exchange-core/internal/messages"
	"exchange-core/pkg/money"
)

// Observer is the callback surface a connected client exposes. Publishers
// invoke these directly, under their own lock, so observers must not
// re-enter the engine from inside a callback — only local bookkeeping.
type Observer interface {
	AcceptCurrentMarket(product string, buyPrice *money.Price, buyVolume int, sellPrice *money.Price, sellVolume int)
	AcceptLastSale(product string, price *money.Price, volume int)
	AcceptTicker(product string, price *money.Price, direction rune)
	AcceptFill(f messages.Fill)
	AcceptCancel(c messages.Cancel)
	AcceptMarketMessage(state string)
}

// Direction characters for the ticker. See TickerPublisher.PublishTicker.
const (
	DirectionFirst rune = ' '
	DirectionFlat  rune = '='
	DirectionDown  rune = '↓'
	DirectionUp    rune = '↑'
)
