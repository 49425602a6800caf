// Package money provides the exchange's fixed-point price representation.
//
// Price is immutable and flyweighted: two LIMIT prices with the same number
// of cents are always the same *Price instance, and there is exactly one
// MKT singleton. Callers compare prices with Equals/Less/Greater rather than
// pointer identity so the flyweighting is an implementation detail, not a
// contract.
package money

import (
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Kind distinguishes a LIMIT price from the MKT sentinel.
type Kind int

const (
	Limit Kind = iota
	Market
)

// Price is an immutable money value: either a signed integer number of
// cents (LIMIT) or the MKT sentinel. Construct via ParseLimit, FromCents or
// MKT — never with a struct literal — so the flyweight invariant holds.
type Price struct {
	cents int64
	kind  Kind
}

var (
	flyweight sync.Map // int64 cents -> *Price

	mktOnce sync.Once
	mktInst *Price
)

// MKT returns the canonical MKT singleton.
func MKT() *Price {
	mktOnce.Do(func() {
		mktInst = &Price{kind: Market}
	})
	return mktInst
}

// FromCents returns the canonical Price for the given number of cents,
// creating and caching it on first use.
func FromCents(cents int64) *Price {
	if v, ok := flyweight.Load(cents); ok {
		return v.(*Price)
	}
	p := &Price{cents: cents, kind: Limit}
	actual, _ := flyweight.LoadOrStore(cents, p)
	return actual.(*Price)
}

// ParseLimit parses an optionally "$"-prefixed, comma-grouped decimal
// amount ("$1,234.50", "1234.5", "-2.005") into a LIMIT Price, rounding to
// the nearest cent half-away-from-zero (not shopspring/decimal's default
// banker's rounding).
func ParseLimit(s string) (*Price, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "$")
	trimmed = strings.ReplaceAll(trimmed, ",", "")
	if trimmed == "" {
		return nil, errors.New("money: empty price string")
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, errors.Wrapf(err, "money: invalid price %q", s)
	}

	cents := roundHalfAwayFromZero(d.Mul(decimal.NewFromInt(100)))
	return FromCents(cents), nil
}

func roundHalfAwayFromZero(d decimal.Decimal) int64 {
	half := decimal.NewFromFloat(0.5)
	if d.Sign() >= 0 {
		return d.Add(half).Truncate(0).IntPart()
	}
	return d.Sub(half).Truncate(0).IntPart()
}

// IsMarket reports whether this is the MKT sentinel.
func (p *Price) IsMarket() bool {
	return p != nil && p.kind == Market
}

// Cents returns the underlying integer cents. Undefined (0) for MKT.
func (p *Price) Cents() int64 {
	return p.cents
}

// CompareTo is a total order over cents. Callers must not invoke it with
// either operand being MKT; use IsMarket to branch before comparing.
func (p *Price) CompareTo(other *Price) int {
	switch {
	case p.cents < other.cents:
		return -1
	case p.cents > other.cents:
		return 1
	default:
		return 0
	}
}

// Equals returns false whenever either operand is MKT.
func (p *Price) Equals(other *Price) bool {
	if p == nil || other == nil || p.IsMarket() || other.IsMarket() {
		return false
	}
	return p.cents == other.cents
}

// GreaterThan returns false whenever either operand is MKT.
func (p *Price) GreaterThan(other *Price) bool {
	if p == nil || other == nil || p.IsMarket() || other.IsMarket() {
		return false
	}
	return p.cents > other.cents
}

// LessThan returns false whenever either operand is MKT.
func (p *Price) LessThan(other *Price) bool {
	if p == nil || other == nil || p.IsMarket() || other.IsMarket() {
		return false
	}
	return p.cents < other.cents
}

// GreaterThanOrEqual returns false whenever either operand is MKT.
func (p *Price) GreaterThanOrEqual(other *Price) bool {
	return p.GreaterThan(other) || p.Equals(other)
}

// LessThanOrEqual returns false whenever either operand is MKT.
func (p *Price) LessThanOrEqual(other *Price) bool {
	return p.LessThan(other) || p.Equals(other)
}

// IsNegative is false for MKT.
func (p *Price) IsNegative() bool {
	if p.IsMarket() {
		return false
	}
	return p.cents < 0
}

// ErrInvalidPriceOperation is the sentinel wrapped by arithmetic on MKT/nil.
var ErrInvalidPriceOperation = errors.New("money: invalid price operation")

// Add returns p+other as a LIMIT price. Fails if either side is MKT or nil.
func (p *Price) Add(other *Price) (*Price, error) {
	if p == nil || other == nil || p.IsMarket() || other.IsMarket() {
		return nil, errors.Wrap(ErrInvalidPriceOperation, "add")
	}
	return FromCents(p.cents + other.cents), nil
}

// Subtract returns p-other as a LIMIT price. Fails if either side is MKT or nil.
func (p *Price) Subtract(other *Price) (*Price, error) {
	if p == nil || other == nil || p.IsMarket() || other.IsMarket() {
		return nil, errors.Wrap(ErrInvalidPriceOperation, "subtract")
	}
	return FromCents(p.cents - other.cents), nil
}

// MultiplyByInt returns p*n as a LIMIT price. Fails if the receiver is MKT.
func (p *Price) MultiplyByInt(n int64) (*Price, error) {
	if p == nil || p.IsMarket() {
		return nil, errors.Wrap(ErrInvalidPriceOperation, "multiply")
	}
	return FromCents(p.cents * n), nil
}

// String renders LIMIT as "$#,##0.00" and MKT as "MKT".
func (p *Price) String() string {
	if p == nil {
		return humanize.FormatFloat("$#,##0.00", 0)
	}
	if p.IsMarket() {
		return "MKT"
	}
	neg := p.cents < 0
	abs := p.cents
	if neg {
		abs = -abs
	}
	s := humanize.FormatFloat("#,##0.00", float64(abs)/100.0)
	if neg {
		return "-$" + s
	}
	return "$" + s
}

// Zero is the canonical $0.00 LIMIT price, used wherever a null top-of-book
// price is reported as $0.00.
func Zero() *Price {
	return FromCents(0)
}
