package book

import (
	"testing"

	"exchange-core/internal/messages"
	"exchange-core/internal/tradable"
	"exchange-core/pkg/money"
)

type fakeArchiver struct {
	archived []tradable.Tradable
}

func (f *fakeArchiver) ArchiveOldEntry(t tradable.Tradable) {
	f.archived = append(f.archived, t)
}

func (f *fakeArchiver) CheckTooLateToCancel(orderID string) (tradable.DTO, bool) {
	for _, t := range f.archived {
		if t.ID() == orderID {
			return tradable.Snapshot(t), true
		}
	}
	return tradable.DTO{}, false
}

type fakeNotifier struct {
	fills   []messages.Fill
	cancels []messages.Cancel
}

func (f *fakeNotifier) PublishFill(fill messages.Fill)  { f.fills = append(f.fills, fill) }
func (f *fakeNotifier) PublishCancel(c messages.Cancel) { f.cancels = append(f.cancels, c) }

func newTestSellSide() (*Side, *fakeArchiver, *fakeNotifier) {
	arch := &fakeArchiver{}
	notif := &fakeNotifier{}
	return NewSide("IBM", tradable.Sell, arch, notif), arch, notif
}

func TestTopOfBookEmptyIsNil(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSellSide()
	if p := s.TopOfBookPrice(); p != nil {
		t.Errorf("TopOfBookPrice on empty side = %v, want nil", p)
	}
	if v := s.TopOfBookVolume(); v != 0 {
		t.Errorf("TopOfBookVolume on empty side = %d, want 0", v)
	}
	if depth := s.GetBookDepth(); len(depth) != 1 || depth[0] != "<Empty>" {
		t.Errorf("GetBookDepth on empty side = %v, want [<Empty>]", depth)
	}
}

func TestAddToBookOrdersSellAscending(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSellSide()
	o1, _ := tradable.NewOrder("a", "ibm", money.FromCents(1100), tradable.Sell, 10)
	o2, _ := tradable.NewOrder("b", "ibm", money.FromCents(1000), tradable.Sell, 10)
	s.AddToBook(o1)
	s.AddToBook(o2)

	if top := s.TopOfBookPrice(); !top.Equals(money.FromCents(1000)) {
		t.Errorf("TopOfBookPrice = %v, want 1000", top)
	}
}

func TestFullTakeoutFillsAndArchives(t *testing.T) {
	t.Parallel()
	s, arch, notif := newTestSellSide()
	resting, _ := tradable.NewOrder("seller", "ibm", money.FromCents(1000), tradable.Sell, 100)
	s.AddToBook(resting)

	incoming, _ := tradable.NewOrder("buyer", "ibm", money.FromCents(1000), tradable.Buy, 100)
	fills := s.TryTrade(incoming)

	if len(fills) != 2 {
		t.Fatalf("len(fills) = %d, want 2", len(fills))
	}
	if resting.RemainingVolume() != 0 {
		t.Errorf("resting.RemainingVolume() = %d, want 0", resting.RemainingVolume())
	}
	if incoming.RemainingVolume() != 0 {
		t.Errorf("incoming.RemainingVolume() = %d, want 0", incoming.RemainingVolume())
	}
	if len(arch.archived) != 1 || arch.archived[0] != resting {
		t.Error("resting entry should be archived on full takeout")
	}
	if len(notif.fills) != 2 {
		t.Errorf("notifier saw %d fills, want 2", len(notif.fills))
	}
	if !s.IsEmpty() {
		t.Error("side should be empty after full takeout")
	}
}

func TestPartialTakeoutLeavesRestingWorking(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSellSide()
	resting, _ := tradable.NewOrder("seller", "ibm", money.FromCents(1000), tradable.Sell, 100)
	s.AddToBook(resting)

	incoming, _ := tradable.NewOrder("buyer", "ibm", money.FromCents(1000), tradable.Buy, 60)
	fills := s.TryTrade(incoming)

	if len(fills) != 2 {
		t.Fatalf("len(fills) = %d, want 2", len(fills))
	}
	if resting.RemainingVolume() != 40 {
		t.Errorf("resting.RemainingVolume() = %d, want 40", resting.RemainingVolume())
	}
	if incoming.RemainingVolume() != 0 {
		t.Errorf("incoming.RemainingVolume() = %d, want 0", incoming.RemainingVolume())
	}
	if s.IsEmpty() {
		t.Error("resting order should still be on the book")
	}
}

func TestTradePriceUsesRestingPriceUnlessMKT(t *testing.T) {
	t.Parallel()
	s, _, notif := newTestSellSide()
	resting, _ := tradable.NewOrder("seller", "ibm", money.FromCents(1050), tradable.Sell, 10)
	s.AddToBook(resting)

	incoming, _ := tradable.NewOrder("buyer", "ibm", money.MKT(), tradable.Buy, 10)
	s.TryTrade(incoming)

	for _, f := range notif.fills {
		if !f.Price.Equals(money.FromCents(1050)) {
			t.Errorf("fill price = %v, want resting price 1050", f.Price)
		}
	}
}

func TestNoFillWhenPricesDoNotCross(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSellSide()
	resting, _ := tradable.NewOrder("seller", "ibm", money.FromCents(1100), tradable.Sell, 10)
	s.AddToBook(resting)

	incoming, _ := tradable.NewOrder("buyer", "ibm", money.FromCents(1000), tradable.Buy, 10)
	fills := s.TryTrade(incoming)

	if len(fills) != 0 {
		t.Errorf("len(fills) = %d, want 0 (no cross)", len(fills))
	}
	if incoming.RemainingVolume() != 10 {
		t.Errorf("incoming.RemainingVolume() = %d, want untouched 10", incoming.RemainingVolume())
	}
}

func TestSubmitOrderCancelPublishesCancelledDetail(t *testing.T) {
	t.Parallel()
	s, _, notif := newTestSellSide()
	o, _ := tradable.NewOrder("seller", "ibm", money.FromCents(1000), tradable.Sell, 10)
	s.AddToBook(o)

	if err := s.SubmitOrderCancel(o.ID()); err != nil {
		t.Fatalf("SubmitOrderCancel: %v", err)
	}
	if len(notif.cancels) != 1 || notif.cancels[0].Details != "SELL Order Cancelled" {
		t.Errorf("cancel = %+v, want details 'SELL Order Cancelled'", notif.cancels)
	}
	if !s.IsEmpty() {
		t.Error("side should be empty after cancel")
	}
}

func TestSubmitOrderCancelTooLate(t *testing.T) {
	t.Parallel()
	s, arch, notif := newTestSellSide()
	o, _ := tradable.NewOrder("seller", "ibm", money.FromCents(1000), tradable.Sell, 10)
	arch.archived = append(arch.archived, o)

	if err := s.SubmitOrderCancel(o.ID()); err != nil {
		t.Fatalf("SubmitOrderCancel: %v", err)
	}
	if len(notif.cancels) != 1 || notif.cancels[0].Details != "Too late to cancel." {
		t.Errorf("cancel = %+v, want 'Too late to cancel.'", notif.cancels)
	}
}

func TestCancelAllSnapshotsBeforeIterating(t *testing.T) {
	t.Parallel()
	s, _, notif := newTestSellSide()
	for i := 0; i < 5; i++ {
		o, _ := tradable.NewOrder("seller", "ibm", money.FromCents(int64(1000+i)), tradable.Sell, 10)
		s.AddToBook(o)
	}

	s.CancelAll()

	if !s.IsEmpty() {
		t.Error("side should be empty after cancelAll")
	}
	if len(notif.cancels) != 5 {
		t.Errorf("len(cancels) = %d, want 5", len(notif.cancels))
	}
}
