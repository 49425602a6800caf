// Package book implements one price-sorted side of one symbol's order
// book, plus the price-time matching logic that runs against it.
package book

import (
	"fmt"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"

	"exchange-core/internal/messages"
	"exchange-core/internal/tradable"
	"exchange-core/internal/xerrors"
	"exchange-core/pkg/money"
)

// Archiver is the narrow back-handle a Side uses to retire tradables into
// its owning ProductBook's archive and to answer too-late-to-cancel
// lookups, without holding a direct reference back to the book (see the
// design note on cyclic book/side/processor ownership).
type Archiver interface {
	ArchiveOldEntry(t tradable.Tradable)
	CheckTooLateToCancel(orderID string) (tradable.DTO, bool)
}

// Notifier is the narrow back-handle a Side uses to publish fills and
// cancels without holding a reference to the publisher singletons
// directly.
type Notifier interface {
	PublishFill(f messages.Fill)
	PublishCancel(c messages.Cancel)
}

type priceBucket struct {
	price   *money.Price
	entries []tradable.Tradable
}

// Side is one price-sorted side (BUY or SELL) of one symbol's book.
// Entries at the same price are kept in arrival order inside a bucket;
// buckets are kept in side order by an emirpasic/gods red-black tree keyed
// on cents. A resting MKT entry, which the invariant in ProductBook
// should never actually produce, is held separately so the tree's integer
// key space stays well-defined.
type Side struct {
	mu     sync.Mutex
	symbol string
	side   tradable.Side

	tree      *redblacktree.Tree // int64 cents -> *priceBucket
	mktBucket *priceBucket

	archiver Archiver
	notifier Notifier

	quotes map[string]tradable.Tradable // user -> live quote-side entry on this side
}

// NewSide constructs a Side for symbol/side, wired to archiver and
// notifier supplied by the owning ProductBook.
func NewSide(symbol string, side tradable.Side, archiver Archiver, notifier Notifier) *Side {
	var cmp func(a, b interface{}) int
	if side == tradable.Buy {
		cmp = func(a, b interface{}) int { return -utils.Int64Comparator(a, b) }
	} else {
		cmp = utils.Int64Comparator
	}
	return &Side{
		symbol:   symbol,
		side:     side,
		tree:     redblacktree.NewWith(cmp),
		archiver: archiver,
		notifier: notifier,
		quotes:   make(map[string]tradable.Tradable),
	}
}

func bucketFor(t tradable.Tradable) int64 {
	return t.Price().Cents()
}

// topOfBookPrice returns the best resting price on this side, or nil if
// the side is empty.
func (s *Side) topOfBookPrice() *money.Price {
	if s.mktBucket != nil && len(s.mktBucket.entries) > 0 {
		return money.MKT()
	}
	if s.tree.Empty() {
		return nil
	}
	node := s.tree.Left()
	return node.Value.(*priceBucket).price
}

// topOfBookVolume sums remainingVolume at the best price; 0 if empty.
func (s *Side) topOfBookVolume() int {
	if s.mktBucket != nil && len(s.mktBucket.entries) > 0 {
		return sumRemaining(s.mktBucket.entries)
	}
	if s.tree.Empty() {
		return 0
	}
	node := s.tree.Left()
	return sumRemaining(node.Value.(*priceBucket).entries)
}

func sumRemaining(entries []tradable.Tradable) int {
	total := 0
	for _, e := range entries {
		total += e.RemainingVolume()
	}
	return total
}

// getBookDepth renders every bucket in side order as "<price> x <volume>";
// ["<Empty>"] if the side holds nothing.
func (s *Side) getBookDepth() []string {
	var rows []string
	if s.mktBucket != nil && len(s.mktBucket.entries) > 0 {
		rows = append(rows, fmt.Sprintf("%s x %d", money.MKT().String(), sumRemaining(s.mktBucket.entries)))
	}
	it := s.tree.Iterator()
	for it.Next() {
		b := it.Value().(*priceBucket)
		rows = append(rows, fmt.Sprintf("%s x %d", b.price.String(), sumRemaining(b.entries)))
	}
	if len(rows) == 0 {
		return []string{"<Empty>"}
	}
	return rows
}

func (s *Side) isEmpty() bool {
	empty := s.tree.Empty()
	if s.mktBucket != nil && len(s.mktBucket.entries) > 0 {
		empty = false
	}
	return empty
}

// addToBook appends t to the bucket at t.Price(), creating it if absent.
func (s *Side) addToBook(t tradable.Tradable) {
	if t.IsQuote() {
		s.quotes[t.User()] = t
	}
	if t.Price().IsMarket() {
		if s.mktBucket == nil {
			s.mktBucket = &priceBucket{price: money.MKT()}
		}
		s.mktBucket.entries = append(s.mktBucket.entries, t)
		return
	}
	key := bucketFor(t)
	if v, found := s.tree.Get(key); found {
		b := v.(*priceBucket)
		b.entries = append(b.entries, t)
		return
	}
	s.tree.Put(key, &priceBucket{price: t.Price(), entries: []tradable.Tradable{t}})
}

// removeTradable removes the first reference-equal entry from its bucket,
// dropping the bucket if it becomes empty.
func (s *Side) removeTradable(t tradable.Tradable) bool {
	if t.Price().IsMarket() {
		if s.mktBucket == nil {
			return false
		}
		removed := removeFirst(&s.mktBucket.entries, t)
		if removed && len(s.mktBucket.entries) == 0 {
			s.mktBucket = nil
		}
		if removed && s.quotes[t.User()] == t {
			delete(s.quotes, t.User())
		}
		return removed
	}
	key := bucketFor(t)
	v, found := s.tree.Get(key)
	if !found {
		return false
	}
	b := v.(*priceBucket)
	removed := removeFirst(&b.entries, t)
	if removed && s.quotes[t.User()] == t {
		delete(s.quotes, t.User())
	}
	s.clearIfEmptyBucket(key, b)
	return removed
}

func removeFirst(entries *[]tradable.Tradable, t tradable.Tradable) bool {
	for i, e := range *entries {
		if e == t {
			*entries = append((*entries)[:i], (*entries)[i+1:]...)
			return true
		}
	}
	return false
}

// clearIfEmpty drops the bucket at price if it has become empty.
func (s *Side) clearIfEmpty(price *money.Price) {
	if price.IsMarket() {
		if s.mktBucket != nil && len(s.mktBucket.entries) == 0 {
			s.mktBucket = nil
		}
		return
	}
	key := price.Cents()
	if v, found := s.tree.Get(key); found {
		s.clearIfEmptyBucket(key, v.(*priceBucket))
	}
}

func (s *Side) clearIfEmptyBucket(key int64, b *priceBucket) {
	if len(b.entries) == 0 {
		s.tree.Remove(key)
	}
}

// removeQuote locates and removes user's live interest on this side,
// returning its snapshot.
func (s *Side) removeQuote(user string) (tradable.DTO, bool) {
	t, ok := s.quotes[user]
	if !ok {
		return tradable.DTO{}, false
	}
	dto := tradable.Snapshot(t)
	s.removeTradable(t)
	return dto, true
}

// findOrder locates a resting order by id, without removing it.
func (s *Side) findOrder(orderID string) (tradable.Tradable, bool) {
	if s.mktBucket != nil {
		for _, e := range s.mktBucket.entries {
			if e.ID() == orderID {
				return e, true
			}
		}
	}
	it := s.tree.Iterator()
	for it.Next() {
		b := it.Value().(*priceBucket)
		for _, e := range b.entries {
			if e.ID() == orderID {
				return e, true
			}
		}
	}
	return nil, false
}

// submitOrderCancel removes the order and publishes a CancelMessage. If
// the order is not resting, it asks the archiver whether it is too late
// to cancel.
func (s *Side) submitOrderCancel(orderID string) error {
	t, found := s.findOrder(orderID)
	if !found {
		dto, archived := s.archiver.CheckTooLateToCancel(orderID)
		if !archived {
			return xerrors.Newf(xerrors.OrderNotFound, "order %s not found", orderID)
		}
		s.notifier.PublishCancel(messages.Cancel{
			User:    dto.User,
			Product: dto.Product,
			Price:   dto.Price,
			Volume:  dto.CancelledVolume,
			Details: "Too late to cancel.",
			Side:    dto.Side,
			ID:      dto.ID,
		})
		return nil
	}

	remaining := t.RemainingVolume()
	s.removeTradable(t)
	s.archiver.ArchiveOldEntry(t)

	s.notifier.PublishCancel(messages.Cancel{
		User:    t.User(),
		Product: t.Product(),
		Price:   t.Price(),
		Volume:  remaining,
		Details: fmt.Sprintf("%s Order Cancelled", s.side),
		Side:    s.side,
		ID:      t.ID(),
	})
	return nil
}

// submitQuoteCancel removes user's quote-side entry, if any, and
// publishes a CancelMessage.
func (s *Side) submitQuoteCancel(user string) {
	dto, found := s.removeQuote(user)
	if !found {
		return
	}
	s.notifier.PublishCancel(messages.Cancel{
		User:    dto.User,
		Product: dto.Product,
		Price:   dto.Price,
		Volume:  dto.RemainingVolume,
		Details: fmt.Sprintf("Quote %s-Side Cancelled", s.side),
		Side:    dto.Side,
		ID:      dto.ID,
	})
}

// cancelAll cancels every entry on this side: quotes via
// submitQuoteCancel, orders via submitOrderCancel. Keys are snapshotted
// before iteration so the cancellation itself can mutate the side safely.
func (s *Side) cancelAll() {
	for user := range snapshotUsers(s.quotes) {
		s.submitQuoteCancel(user)
	}

	for _, id := range s.snapshotOrderIDs() {
		_ = s.submitOrderCancel(id)
	}
}

func snapshotUsers(m map[string]tradable.Tradable) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func (s *Side) snapshotOrderIDs() []string {
	var ids []string
	if s.mktBucket != nil {
		for _, e := range s.mktBucket.entries {
			if !e.IsQuote() {
				ids = append(ids, e.ID())
			}
		}
	}
	it := s.tree.Iterator()
	for it.Next() {
		b := it.Value().(*priceBucket)
		for _, e := range b.entries {
			if !e.IsQuote() {
				ids = append(ids, e.ID())
			}
		}
	}
	return ids
}

// entriesAtTopOfBook returns the bucket of entries at this side's current
// best price, in arrival order.
func (s *Side) entriesAtTopOfBook() ([]tradable.Tradable, *money.Price) {
	if s.mktBucket != nil && len(s.mktBucket.entries) > 0 {
		return s.mktBucket.entries, money.MKT()
	}
	if s.tree.Empty() {
		return nil, nil
	}
	b := s.tree.Left().Value.(*priceBucket)
	return b.entries, b.price
}

// Exported entry points. Each acquires the side's own lock; per the
// lock-order discipline (gateway -> productservice -> book -> side ->
// publisher -> observer) a ProductBook never holds its own lock while
// calling into a Side.

// Symbol returns the symbol this side belongs to.
func (s *Side) Symbol() string { return s.symbol }

// SideTag returns BUY or SELL.
func (s *Side) SideTag() tradable.Side { return s.side }

// TopOfBookPrice returns the best resting price, or nil if empty.
func (s *Side) TopOfBookPrice() *money.Price {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topOfBookPrice()
}

// TopOfBookVolume sums remainingVolume at the best price.
func (s *Side) TopOfBookVolume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topOfBookVolume()
}

// GetBookDepth renders every bucket as "<price> x <volume>" in side order.
func (s *Side) GetBookDepth() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getBookDepth()
}

// IsEmpty reports whether the side holds no resting interest.
func (s *Side) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isEmpty()
}

// AddToBook appends t to the bucket at t.Price().
func (s *Side) AddToBook(t tradable.Tradable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addToBook(t)
}

// RemoveTradable removes the first reference-equal entry.
func (s *Side) RemoveTradable(t tradable.Tradable) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeTradable(t)
}

// RemoveQuote locates and removes user's live interest on this side.
func (s *Side) RemoveQuote(user string) (tradable.DTO, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeQuote(user)
}

// SubmitOrderCancel cancels a resting order by id.
func (s *Side) SubmitOrderCancel(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitOrderCancel(orderID)
}

// SubmitQuoteCancel cancels user's live quote-side entry, if any.
func (s *Side) SubmitQuoteCancel(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitQuoteCancel(user)
}

// CancelAll cancels every entry on this side.
func (s *Side) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAll()
}

// ClearIfEmpty drops the bucket at price if it has become empty.
func (s *Side) ClearIfEmpty(price *money.Price) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearIfEmpty(price)
}

// TryTrade matches incoming against this side and returns the merged
// fills, having already published each of them.
func (s *Side) TryTrade(incoming tradable.Tradable) map[string]messages.Fill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tryTrade(incoming)
}

// Snapshot returns a DTO for every resting entry on this side, in side
// order, used by ProductBook.GetOrdersWithRemainingQty.
func (s *Side) Snapshot() []tradable.DTO {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []tradable.DTO
	if s.mktBucket != nil {
		for _, e := range s.mktBucket.entries {
			out = append(out, tradable.Snapshot(e))
		}
	}
	it := s.tree.Iterator()
	for it.Next() {
		b := it.Value().(*priceBucket)
		for _, e := range b.entries {
			out = append(out, tradable.Snapshot(e))
		}
	}
	return out
}

// SnapshotTopBucket returns a copy of the entries at the current best
// price, used by ProductBook.OpenMarket to walk the aggressing side
// without holding the side lock across the opposite side's TryTrade call.
func (s *Side) SnapshotTopBucket() []tradable.Tradable {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, _ := s.entriesAtTopOfBook()
	out := make([]tradable.Tradable, len(entries))
	copy(out, entries)
	return out
}
