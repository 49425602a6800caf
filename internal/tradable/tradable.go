// Package tradable defines the uniform view of working interest — orders
// and quote sides — that rests on a book and participates in matching.
//
// Order and QuoteSide both delegate to one concrete implementation (kind
// distinguishes them): id generation differs between the two but behavior
// is otherwise shared.
package tradable

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"exchange-core/internal/xerrors"
	"exchange-core/pkg/money"
)

// Side is the direction of a tradable: BUY or SELL.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Kind distinguishes an Order from one side of a Quote.
type Kind int

const (
	KindOrder Kind = iota
	KindQuote
)

// Tradable is the common interface for working interest.
type Tradable interface {
	ID() string
	User() string
	Product() string
	Price() *money.Price
	Side() Side
	OriginalVolume() int
	RemainingVolume() int
	CancelledVolume() int
	IsQuote() bool

	SetRemainingVolume(n int) error
	SetCancelledVolume(n int) error
}

// base is the shared, mutable-only-in-volumes implementation both Order and
// QuoteSide delegate to.
type base struct {
	mu sync.Mutex

	id      string
	user    string
	product string
	price   *money.Price
	side    Side
	kind    Kind

	original  int
	remaining int
	cancelled int
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func newBase(id, user, product string, price *money.Price, side Side, original int, kind Kind) (*base, error) {
	user = normalize(user)
	product = normalize(product)
	side = Side(normalize(string(side)))

	if user == "" {
		return nil, xerrors.New(xerrors.InvalidData, "tradable: user is required")
	}
	if product == "" {
		return nil, xerrors.New(xerrors.InvalidData, "tradable: product is required")
	}
	if side != Buy && side != Sell {
		return nil, xerrors.Newf(xerrors.InvalidData, "tradable: side must be BUY or SELL, got %q", side)
	}
	if price == nil {
		return nil, xerrors.New(xerrors.InvalidData, "tradable: price is required")
	}
	if original <= 0 {
		return nil, xerrors.Newf(xerrors.InvalidData, "tradable: original volume must be > 0, got %d", original)
	}

	return &base{
		id:        id,
		user:      user,
		product:   product,
		price:     price,
		side:      side,
		kind:      kind,
		original:  original,
		remaining: original,
	}, nil
}

func (b *base) ID() string          { return b.id }
func (b *base) User() string        { return b.user }
func (b *base) Product() string     { return b.product }
func (b *base) Price() *money.Price { return b.price }
func (b *base) Side() Side          { return b.side }
func (b *base) OriginalVolume() int { return b.original }
func (b *base) IsQuote() bool       { return b.kind == KindQuote }

func (b *base) RemainingVolume() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

func (b *base) CancelledVolume() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelled
}

// SetRemainingVolume enforces remaining+cancelled <= original and remaining >= 0.
func (b *base) SetRemainingVolume(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n < 0 {
		return xerrors.Newf(xerrors.InvalidData, "tradable %s: remaining volume must be >= 0, got %d", b.id, n)
	}
	if n+b.cancelled > b.original {
		return xerrors.Newf(xerrors.InvalidData, "tradable %s: remaining(%d)+cancelled(%d) exceeds original(%d)", b.id, n, b.cancelled, b.original)
	}
	b.remaining = n
	return nil
}

// SetCancelledVolume enforces cancelled+remaining <= original and cancelled >= 0.
func (b *base) SetCancelledVolume(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n < 0 {
		return xerrors.Newf(xerrors.InvalidData, "tradable %s: cancelled volume must be >= 0, got %d", b.id, n)
	}
	if n+b.remaining > b.original {
		return xerrors.Newf(xerrors.InvalidData, "tradable %s: cancelled(%d)+remaining(%d) exceeds original(%d)", b.id, n, b.remaining, b.original)
	}
	b.cancelled = n
	return nil
}

// setBothForArchive writes remaining and cancelled directly, bypassing the
// setters' invariant check. Used only by the archive operation: remaining
// is zeroed before cancelled is set to the stashed old-remaining, which
// would otherwise trip the cancelled+remaining<=original check on the
// intermediate state.
func (b *base) setBothForArchive(remaining, cancelled int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining = remaining
	b.cancelled = cancelled
}

// idSeq disambiguates order IDs minted within the same nanosecond.
var idSeq uint64

func nextMonotonic() int64 {
	return time.Now().UnixNano()<<12 | int64(atomic.AddUint64(&idSeq, 1)&0xFFF)
}

// Order is a standalone resting or matching instruction.
type Order struct {
	*base
}

// NewOrder builds an Order with id "<user><product><price>+monotonic".
func NewOrder(user, product string, price *money.Price, side Side, volume int) (*Order, error) {
	id := fmt.Sprintf("%s%s%s+%d", normalize(user), normalize(product), price.String(), nextMonotonic())
	b, err := newBase(id, user, product, price, side, volume, KindOrder)
	if err != nil {
		return nil, err
	}
	return &Order{base: b}, nil
}

// ArchiveReset zeroes remaining and moves the stashed old-remaining into
// cancelled, in that order. Exported for use by internal/product when
// retiring a tradable into the archive.
func ArchiveReset(t Tradable, oldRemaining int) {
	switch v := t.(type) {
	case *Order:
		v.setBothForArchive(0, oldRemaining)
	case *QuoteSide:
		v.setBothForArchive(0, oldRemaining)
	}
}

// QuoteSide is one leg (BUY or SELL) of a two-sided Quote. QuoteSides from
// the same Quote share QuoteID, which ties the two legs together;
// ProductBook replaces a prior quote by user, not by QuoteID.
type QuoteSide struct {
	*base
	QuoteID string
}

// NewQuoteSide builds one leg of a quote. quoteID ties both legs together.
func NewQuoteSide(quoteID, user, product string, price *money.Price, side Side, volume int) (*QuoteSide, error) {
	id := fmt.Sprintf("%s-%s", quoteID, side)
	b, err := newBase(id, user, product, price, side, volume, KindQuote)
	if err != nil {
		return nil, err
	}
	return &QuoteSide{base: b, QuoteID: quoteID}, nil
}

// Quote is the atomic pair of QuoteSides a user submits together.
type Quote struct {
	User    string
	Product string
	Buy     *QuoteSide
	Sell    *QuoteSide
}

// NewQuote validates sell.price > buy.price and both prices/volumes > 0,
// then constructs both legs under one shared quote id.
func NewQuote(user, product string, buyPrice *money.Price, buyVolume int, sellPrice *money.Price, sellVolume int) (*Quote, error) {
	if buyPrice == nil || sellPrice == nil || buyPrice.IsMarket() || sellPrice.IsMarket() {
		return nil, xerrors.New(xerrors.InvalidData, "quote: prices must be LIMIT")
	}
	if !sellPrice.GreaterThan(buyPrice) {
		return nil, xerrors.New(xerrors.InvalidData, "quote: sell price must be greater than buy price")
	}
	if buyPrice.IsNegative() || !buyPrice.GreaterThan(money.Zero()) {
		return nil, xerrors.New(xerrors.InvalidData, "quote: buy price must be > 0")
	}
	if sellPrice.IsNegative() || !sellPrice.GreaterThan(money.Zero()) {
		return nil, xerrors.New(xerrors.InvalidData, "quote: sell price must be > 0")
	}
	if buyVolume <= 0 || sellVolume <= 0 {
		return nil, xerrors.New(xerrors.InvalidData, "quote: both volumes must be > 0")
	}

	quoteID := fmt.Sprintf("%s%s+%d", normalize(user), normalize(product), nextMonotonic())

	buy, err := NewQuoteSide(quoteID, user, product, buyPrice, Buy, buyVolume)
	if err != nil {
		return nil, err
	}
	sell, err := NewQuoteSide(quoteID, user, product, sellPrice, Sell, sellVolume)
	if err != nil {
		return nil, err
	}

	return &Quote{User: normalize(user), Product: normalize(product), Buy: buy, Sell: sell}, nil
}

// DTO is an immutable snapshot of a Tradable, returned by book operations
// that remove or query interest (e.g. BookSide.removeQuote).
type DTO struct {
	ID               string
	User             string
	Product          string
	Price            *money.Price
	Side             Side
	OriginalVolume   int
	RemainingVolume  int
	CancelledVolume  int
	IsQuote          bool
}

// Snapshot captures t's current state into a DTO.
func Snapshot(t Tradable) DTO {
	return DTO{
		ID:              t.ID(),
		User:            t.User(),
		Product:         t.Product(),
		Price:           t.Price(),
		Side:            t.Side(),
		OriginalVolume:  t.OriginalVolume(),
		RemainingVolume: t.RemainingVolume(),
		CancelledVolume: t.CancelledVolume(),
		IsQuote:         t.IsQuote(),
	}
}
