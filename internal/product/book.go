package product

import (
	"fmt"
	"sync"

	"exchange-core/internal/book"
	"exchange-core/internal/messages"
	"exchange-core/internal/publish"
	"exchange-core/internal/tradable"
	"exchange-core/internal/xerrors"
	"exchange-core/pkg/money"
)

// ProductBook owns both sides of one symbol's book and the archive of
// tradables retired from it. It implements book.Archiver so each Side can
// retire entries and answer too-late-to-cancel lookups through a narrow
// back-handle, rather than holding a direct pointer to its owner (see the
// design note on cyclic book/side/processor ownership).
type ProductBook struct {
	symbol string

	buy  *book.Side
	sell *book.Side

	archive *archiveStore

	mu              sync.Mutex
	lastFingerprint string

	currentMarket *publish.CurrentMarketPublisher
	lastSale      *publish.LastSalePublisher
	message       *publish.MessagePublisher
}

// New constructs a ProductBook for symbol, wired to the process-wide
// publisher singletons.
func New(symbol string, currentMarket *publish.CurrentMarketPublisher, lastSale *publish.LastSalePublisher, message *publish.MessagePublisher) *ProductBook {
	b := &ProductBook{
		symbol:        symbol,
		archive:       newArchiveStore(),
		currentMarket: currentMarket,
		lastSale:      lastSale,
		message:       message,
	}
	b.buy = book.NewSide(symbol, tradable.Buy, b, message)
	b.sell = book.NewSide(symbol, tradable.Sell, b, message)
	return b
}

// Symbol returns the symbol this book holds interest for.
func (b *ProductBook) Symbol() string { return b.symbol }

func (b *ProductBook) sideFor(side tradable.Side) *book.Side {
	if side == tradable.Buy {
		return b.buy
	}
	return b.sell
}

func (b *ProductBook) oppositeOf(side tradable.Side) *book.Side {
	if side == tradable.Buy {
		return b.sell
	}
	return b.buy
}

// ArchiveOldEntry implements book.Archiver.
func (b *ProductBook) ArchiveOldEntry(t tradable.Tradable) {
	b.archive.add(t)
}

// CheckTooLateToCancel implements book.Archiver.
func (b *ProductBook) CheckTooLateToCancel(orderID string) (tradable.DTO, bool) {
	return b.archive.find(orderID)
}

// SubmitOrder submits o under the given market state. PREOPEN appends to
// o's own side without matching; otherwise o is matched against the
// opposite side, any fills are published, and any MKT residue is
// cancelled rather than booked.
func (b *ProductBook) SubmitOrder(o tradable.Tradable, state State) error {
	if state == Closed {
		return xerrors.New(xerrors.InvalidMarketState, "cannot submit an order while CLOSED")
	}
	if state == Preopen {
		if o.Price().IsMarket() {
			return xerrors.New(xerrors.InvalidData, "cannot submit a MKT order while PREOPEN")
		}
		b.sideFor(o.Side()).AddToBook(o)
		return nil
	}

	fills := b.oppositeOf(o.Side()).TryTrade(o)
	if len(fills) > 0 {
		b.publishCurrentMarket()
		min := lowestPricedFill(fills)
		b.lastSale.PublishLastSale(b.symbol, min.Price, o.OriginalVolume()-o.RemainingVolume())
	}

	if o.RemainingVolume() > 0 {
		if o.Price().IsMarket() {
			b.message.PublishCancel(messages.Cancel{
				User:    o.User(),
				Product: b.symbol,
				Price:   o.Price(),
				Volume:  o.RemainingVolume(),
				Details: "Cancelled",
				Side:    o.Side(),
				ID:      o.ID(),
			})
		} else {
			b.sideFor(o.Side()).AddToBook(o)
		}
	}
	return nil
}

// SubmitQuote replaces q.User's existing quote, if any, then submits both
// legs through the order path.
func (b *ProductBook) SubmitQuote(q *tradable.Quote, state State) error {
	if state == Closed {
		return xerrors.New(xerrors.InvalidMarketState, "cannot submit a quote while CLOSED")
	}

	_, removedBuy := b.buy.RemoveQuote(q.User)
	_, removedSell := b.sell.RemoveQuote(q.User)
	if removedBuy || removedSell {
		b.publishCurrentMarket()
	}

	if err := b.SubmitOrder(q.Buy, state); err != nil {
		return err
	}
	if err := b.SubmitOrder(q.Sell, state); err != nil {
		return err
	}
	b.publishCurrentMarket()
	return nil
}

// CancelOrder cancels a resting order by id on the given side.
func (b *ProductBook) CancelOrder(side tradable.Side, orderID string, state State) error {
	if state == Closed {
		return xerrors.New(xerrors.InvalidMarketState, "cannot cancel while CLOSED")
	}
	if err := b.sideFor(side).SubmitOrderCancel(orderID); err != nil {
		return err
	}
	b.publishCurrentMarket()
	return nil
}

// CancelQuote cancels user's live quote on both sides, if present.
func (b *ProductBook) CancelQuote(user string, state State) error {
	if state == Closed {
		return xerrors.New(xerrors.InvalidMarketState, "cannot cancel while CLOSED")
	}
	b.buy.SubmitQuoteCancel(user)
	b.sell.SubmitQuoteCancel(user)
	b.publishCurrentMarket()
	return nil
}

// OpenMarket crosses the book: while both sides have a best price and
// either crosses (buyTop >= sellTop, or either is MKT), it walks the BUY
// side's top bucket against the SELL side, removing fully-consumed
// entries, until neither side crosses or one side empties.
func (b *ProductBook) OpenMarket() {
	for {
		buyTop := b.buy.TopOfBookPrice()
		sellTop := b.sell.TopOfBookPrice()
		if buyTop == nil || sellTop == nil {
			break
		}
		if !(buyTop.IsMarket() || sellTop.IsMarket() || buyTop.GreaterThanOrEqual(sellTop)) {
			break
		}

		entries := b.buy.SnapshotTopBucket()
		if len(entries) == 0 {
			break
		}

		var lastFills map[string]messages.Fill
		for _, e := range entries {
			fills := b.sell.TryTrade(e)
			if len(fills) > 0 {
				lastFills = fills
			}
			if e.RemainingVolume() == 0 {
				b.buy.RemoveTradable(e)
			}
		}

		b.publishCurrentMarket()
		if lastFills != nil {
			min := lowestPricedFill(lastFills)
			b.lastSale.PublishLastSale(b.symbol, min.Price, min.Volume)
		}

		if b.buy.IsEmpty() || b.sell.IsEmpty() {
			break
		}
	}
}

// CloseMarket cancels every resting entry on both sides.
func (b *ProductBook) CloseMarket() {
	b.buy.CancelAll()
	b.sell.CancelAll()
	b.publishCurrentMarket()
}

// GetBookDepth renders both sides as "<price> x <volume>" rows.
func (b *ProductBook) GetBookDepth() (buyRows, sellRows []string) {
	return b.buy.GetBookDepth(), b.sell.GetBookDepth()
}

// GetOrdersWithRemainingQty returns a snapshot of every resting entry on
// both sides.
func (b *ProductBook) GetOrdersWithRemainingQty() []tradable.DTO {
	out := b.buy.Snapshot()
	out = append(out, b.sell.Snapshot()...)
	return out
}

func (b *ProductBook) publishCurrentMarket() {
	buyTop := b.buy.TopOfBookPrice()
	buyVol := b.buy.TopOfBookVolume()
	sellTop := b.sell.TopOfBookPrice()
	sellVol := b.sell.TopOfBookVolume()

	fp := fingerprint(buyTop, buyVol, sellTop, sellVol)

	b.mu.Lock()
	if fp == b.lastFingerprint {
		b.mu.Unlock()
		return
	}
	b.lastFingerprint = fp
	b.mu.Unlock()

	b.currentMarket.PublishCurrentMarket(b.symbol, buyTop, buyVol, sellTop, sellVol)
}

func fingerprint(buyTop *money.Price, buyVol int, sellTop *money.Price, sellVol int) string {
	return fmt.Sprintf("%s|%d|%s|%d", safePrice(buyTop), buyVol, safePrice(sellTop), sellVol)
}

func safePrice(p *money.Price) string {
	if p == nil {
		return money.Zero().String()
	}
	return p.String()
}

// lowestPricedFill implements the last-sale rule: the fill with the
// lowest price under Price.CompareTo's total order, independent of which
// side the incoming order was on.
func lowestPricedFill(fills map[string]messages.Fill) messages.Fill {
	var min messages.Fill
	first := true
	for _, f := range fills {
		if first || f.Price.CompareTo(min.Price) < 0 {
			min = f
			first = false
		}
	}
	return min
}
