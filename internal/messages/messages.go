// Package messages defines the immutable event types the matching engine
// emits toward publishers and observers: fills, cancels, and market state
// transitions.
package messages

import (
	"fmt"

	"exchange-core/internal/tradable"
	"exchange-core/pkg/money"
)

// Fill reports one leg of a trade. User/Product/Price/Volume/Details/Side
// mirror the resting or incoming tradable that was (partially) consumed;
// ID carries the tradable's id so observers can reconcile against their
// own order blotter.
type Fill struct {
	User    string
	Product string
	Price   *money.Price
	Volume  int
	Details string
	Side    tradable.Side
	ID      string
}

// String renders "User: <u>, Product: <p>, Price: <pr>, Volume: <v>, Details: <d>, Side: <s>, Id: <id>".
func (f Fill) String() string {
	return fmt.Sprintf("User: %s, Product: %s, Price: %s, Volume: %d, Details: %s, Side: %s, Id: %s",
		f.User, f.Product, f.Price.String(), f.Volume, f.Details, f.Side, f.ID)
}

// Key is the fill-aggregation key used within and across doTrade calls:
// user + order/quote-side id + price.
func (f Fill) Key() string {
	return f.User + "\x00" + f.ID + "\x00" + f.Price.String()
}

// Cancel reports a cancelled order or quote side. The Id field is optional
// in the textual rendering contract; the exchange always has one and
// includes it.
type Cancel struct {
	User    string
	Product string
	Price   *money.Price
	Volume  int
	Details string
	Side    tradable.Side
	ID      string
}

// String renders in the same layout as Fill.
func (c Cancel) String() string {
	return fmt.Sprintf("User: %s, Product: %s, Price: %s, Volume: %d, Details: %s, Side: %s, Id: %s",
		c.User, c.Product, c.Price.String(), c.Volume, c.Details, c.Side, c.ID)
}

// Market reports a market-state transition.
type Market struct {
	State string
}

// String renders "[<STATE>]".
func (m Market) String() string {
	return "[" + m.State + "]"
}
