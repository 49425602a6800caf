package product

import (
	"testing"

	"exchange-core/internal/messages"
	"exchange-core/internal/publish"
	"exchange-core/internal/tradable"
	"exchange-core/pkg/money"
)

type recorder struct {
	fills   []messages.Fill
	cancels []messages.Cancel
}

func (r *recorder) AcceptCurrentMarket(string, *money.Price, int, *money.Price, int) {}
func (r *recorder) AcceptLastSale(string, *money.Price, int)                         {}
func (r *recorder) AcceptTicker(string, *money.Price, rune)                          {}
func (r *recorder) AcceptFill(f messages.Fill)                                       { r.fills = append(r.fills, f) }
func (r *recorder) AcceptCancel(c messages.Cancel)                                   { r.cancels = append(r.cancels, c) }
func (r *recorder) AcceptMarketMessage(string)                                       {}

func newTestBook(t *testing.T) (*ProductBook, *publish.MessagePublisher, *recorder, *recorder) {
	t.Helper()
	ticker := publish.NewTickerPublisher()
	lastSale := publish.NewLastSalePublisher(ticker)
	currentMarket := publish.NewCurrentMarketPublisher()
	msg := publish.NewMessagePublisher()

	a, b := &recorder{}, &recorder{}
	if err := msg.Subscribe("IBM", "A", a); err != nil {
		t.Fatal(err)
	}
	if err := msg.Subscribe("IBM", "B", b); err != nil {
		t.Fatal(err)
	}

	pb := New("IBM", currentMarket, lastSale, msg)
	return pb, msg, a, b
}

// S1: aggressive cross — BUY 100@$10 vs SELL 100@$10 fully fills both.
func TestS1AggressiveCross(t *testing.T) {
	t.Parallel()
	pb, _, a, b := newTestBook(t)

	buy, _ := tradable.NewOrder("A", "IBM", money.FromCents(1000), tradable.Buy, 100)
	if err := pb.SubmitOrder(buy, Preopen); err != nil {
		t.Fatalf("submit buy preopen: %v", err)
	}

	sell, _ := tradable.NewOrder("B", "IBM", money.FromCents(1000), tradable.Sell, 100)
	if err := pb.SubmitOrder(sell, Preopen); err != nil {
		t.Fatalf("submit sell preopen: %v", err)
	}

	pb.OpenMarket()

	if len(a.fills) != 1 || a.fills[0].Volume != 100 || a.fills[0].Details != "leaving 0" {
		t.Errorf("A fills = %+v, want one fill vol 100 leaving 0", a.fills)
	}
	if len(b.fills) != 1 || b.fills[0].Volume != 100 || b.fills[0].Details != "leaving 0" {
		t.Errorf("B fills = %+v, want one fill vol 100 leaving 0", b.fills)
	}
	buyDepth, sellDepth := pb.GetBookDepth()
	if len(buyDepth) != 1 || buyDepth[0] != "<Empty>" {
		t.Errorf("buy depth = %v, want empty", buyDepth)
	}
	if len(sellDepth) != 1 || sellDepth[0] != "<Empty>" {
		t.Errorf("sell depth = %v, want empty", sellDepth)
	}
}

// S2: partial fill — SELL 100@$10 resting, BUY 60@$10 incoming.
func TestS2PartialFill(t *testing.T) {
	t.Parallel()
	pb, _, a, b := newTestBook(t)

	sell, _ := tradable.NewOrder("A", "IBM", money.FromCents(1000), tradable.Sell, 100)
	if err := pb.SubmitOrder(sell, Open); err != nil {
		t.Fatalf("submit sell: %v", err)
	}

	buy, _ := tradable.NewOrder("B", "IBM", money.FromCents(1000), tradable.Buy, 60)
	if err := pb.SubmitOrder(buy, Open); err != nil {
		t.Fatalf("submit buy: %v", err)
	}

	if len(a.fills) != 1 || a.fills[0].Volume != 60 || a.fills[0].Details != "leaving 40" {
		t.Errorf("A fills = %+v, want vol 60 leaving 40", a.fills)
	}
	if len(b.fills) != 1 || b.fills[0].Volume != 60 || b.fills[0].Details != "leaving 0" {
		t.Errorf("B fills = %+v, want vol 60 leaving 0", b.fills)
	}
	if sell.RemainingVolume() != 40 {
		t.Errorf("sell.RemainingVolume() = %d, want 40", sell.RemainingVolume())
	}
	if buy.RemainingVolume() != 0 {
		t.Errorf("buy.RemainingVolume() = %d, want 0", buy.RemainingVolume())
	}
}

// S3: MKT residue with nothing resting is cancelled, not booked.
func TestS3MarketOrderResidueCancelled(t *testing.T) {
	t.Parallel()
	pb, _, _, b := newTestBook(t)

	buy, _ := tradable.NewOrder("B", "IBM", money.MKT(), tradable.Buy, 50)
	if err := pb.SubmitOrder(buy, Open); err != nil {
		t.Fatalf("submit mkt buy: %v", err)
	}

	if len(b.cancels) != 1 || b.cancels[0].Details != "Cancelled" || b.cancels[0].Volume != 50 {
		t.Errorf("B cancels = %+v, want one Cancelled vol 50", b.cancels)
	}
	buyDepth, _ := pb.GetBookDepth()
	if len(buyDepth) != 1 || buyDepth[0] != "<Empty>" {
		t.Errorf("buy depth = %v, want empty (MKT never booked)", buyDepth)
	}
}

// S4: too-late-to-cancel after a fully consumed order is archived.
func TestS4TooLateToCancel(t *testing.T) {
	t.Parallel()
	pb, _, a, b := newTestBook(t)

	buy, _ := tradable.NewOrder("A", "IBM", money.FromCents(1000), tradable.Buy, 100)
	if err := pb.SubmitOrder(buy, Preopen); err != nil {
		t.Fatal(err)
	}
	sell, _ := tradable.NewOrder("B", "IBM", money.FromCents(1000), tradable.Sell, 100)
	if err := pb.SubmitOrder(sell, Preopen); err != nil {
		t.Fatal(err)
	}
	pb.OpenMarket()

	if err := pb.CancelOrder(tradable.Buy, buy.ID(), Open); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	if len(a.cancels) != 1 || a.cancels[0].Details != "Too late to cancel." {
		t.Errorf("A cancels = %+v, want 'Too late to cancel.'", a.cancels)
	}
	if a.cancels[0].Volume != 100 {
		t.Errorf("too-late cancel volume = %d, want 100 (archived cancelled)", a.cancels[0].Volume)
	}
}

// S5: quote replacement removes the prior quote's entries.
func TestS5QuoteReplacement(t *testing.T) {
	t.Parallel()
	pb, _, _, _ := newTestBook(t)

	q1, err := tradable.NewQuote("A", "IBM", money.FromCents(999), 10, money.FromCents(1001), 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := pb.SubmitQuote(q1, Open); err != nil {
		t.Fatal(err)
	}

	q2, err := tradable.NewQuote("A", "IBM", money.FromCents(998), 20, money.FromCents(1002), 20)
	if err != nil {
		t.Fatal(err)
	}
	if err := pb.SubmitQuote(q2, Open); err != nil {
		t.Fatal(err)
	}

	depth := pb.GetOrdersWithRemainingQty()
	for _, d := range depth {
		if d.ID == q1.Buy.ID() || d.ID == q1.Sell.ID() {
			t.Errorf("old quote leg %s still resting after replacement", d.ID)
		}
	}
	if len(depth) != 2 {
		t.Errorf("len(depth) = %d, want 2 (only the new quote's two legs)", len(depth))
	}
}
