package publish

import (
	"testing"

	"exchange-core/internal/messages"
	"exchange-core/internal/xerrors"
	"exchange-core/pkg/money"
)

type recordingObserver struct {
	currentMarkets []string
	lastSales      []string
	tickers        []rune
	fills          []messages.Fill
	cancels        []messages.Cancel
	marketMessages []string
}

func (o *recordingObserver) AcceptCurrentMarket(product string, buyPrice *money.Price, buyVolume int, sellPrice *money.Price, sellVolume int) {
	o.currentMarkets = append(o.currentMarkets, product)
}
func (o *recordingObserver) AcceptLastSale(product string, price *money.Price, volume int) {
	o.lastSales = append(o.lastSales, product)
}
func (o *recordingObserver) AcceptTicker(product string, price *money.Price, direction rune) {
	o.tickers = append(o.tickers, direction)
}
func (o *recordingObserver) AcceptFill(f messages.Fill)       { o.fills = append(o.fills, f) }
func (o *recordingObserver) AcceptCancel(c messages.Cancel)   { o.cancels = append(o.cancels, c) }
func (o *recordingObserver) AcceptMarketMessage(state string) {
	o.marketMessages = append(o.marketMessages, state)
}

func TestSubscribeDuplicateFails(t *testing.T) {
	t.Parallel()
	p := NewCurrentMarketPublisher()
	obs := &recordingObserver{}
	if err := p.Subscribe("IBM", "alice", obs); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := p.Subscribe("IBM", "alice", obs); !xerrors.Is(err, xerrors.AlreadySubscribed) {
		t.Errorf("duplicate subscribe err = %v, want AlreadySubscribed", err)
	}
}

func TestUnsubscribeAbsentFails(t *testing.T) {
	t.Parallel()
	p := NewCurrentMarketPublisher()
	if err := p.Unsubscribe("IBM", "alice"); !xerrors.Is(err, xerrors.NotSubscribed) {
		t.Errorf("unsubscribe absent err = %v, want NotSubscribed", err)
	}
}

func TestCurrentMarketPublishReplacesNilPrices(t *testing.T) {
	t.Parallel()
	p := NewCurrentMarketPublisher()
	obs := &recordingObserver{}
	_ = p.Subscribe("IBM", "alice", obs)

	var seenBuy, seenSell *money.Price
	captured := &recordingObserverFunc{
		acceptCurrentMarket: func(product string, buyPrice *money.Price, buyVolume int, sellPrice *money.Price, sellVolume int) {
			seenBuy, seenSell = buyPrice, sellPrice
		},
	}
	_ = p.Unsubscribe("IBM", "alice")
	_ = p.Subscribe("IBM", "alice", captured)

	p.PublishCurrentMarket("IBM", nil, 0, nil, 0)

	if !seenBuy.Equals(money.Zero()) || !seenSell.Equals(money.Zero()) {
		t.Errorf("nil prices not replaced with $0.00: buy=%v sell=%v", seenBuy, seenSell)
	}
}

// recordingObserverFunc lets a single test wire a closure in for one
// callback without implementing the whole Observer interface inline.
type recordingObserverFunc struct {
	acceptCurrentMarket func(product string, buyPrice *money.Price, buyVolume int, sellPrice *money.Price, sellVolume int)
}

func (o *recordingObserverFunc) AcceptCurrentMarket(product string, buyPrice *money.Price, buyVolume int, sellPrice *money.Price, sellVolume int) {
	if o.acceptCurrentMarket != nil {
		o.acceptCurrentMarket(product, buyPrice, buyVolume, sellPrice, sellVolume)
	}
}
func (o *recordingObserverFunc) AcceptLastSale(string, *money.Price, int)       {}
func (o *recordingObserverFunc) AcceptTicker(string, *money.Price, rune)        {}
func (o *recordingObserverFunc) AcceptFill(messages.Fill)                      {}
func (o *recordingObserverFunc) AcceptCancel(messages.Cancel)                  {}
func (o *recordingObserverFunc) AcceptMarketMessage(string)                    {}

func TestTickerDirectionSequence(t *testing.T) {
	t.Parallel()
	tp := NewTickerPublisher()
	obs := &recordingObserver{}
	_ = tp.Subscribe("IBM", "x", obs)

	prices := []*money.Price{
		money.FromCents(1000),
		money.FromCents(1000),
		money.FromCents(900),
		money.FromCents(1100),
	}
	for _, p := range prices {
		tp.PublishTicker("IBM", p)
	}

	want := []rune{DirectionFirst, DirectionFlat, DirectionDown, DirectionUp}
	if len(obs.tickers) != len(want) {
		t.Fatalf("got %d ticker events, want %d", len(obs.tickers), len(want))
	}
	for i, d := range want {
		if obs.tickers[i] != d {
			t.Errorf("ticker[%d] = %q, want %q", i, obs.tickers[i], d)
		}
	}
}

func TestLastSaleDelegatesToTicker(t *testing.T) {
	t.Parallel()
	tp := NewTickerPublisher()
	lsp := NewLastSalePublisher(tp)

	lastObs := &recordingObserver{}
	tickObs := &recordingObserver{}
	_ = lsp.Subscribe("IBM", "a", lastObs)
	_ = tp.Subscribe("IBM", "b", tickObs)

	lsp.PublishLastSale("IBM", money.FromCents(1000), 50)

	if len(lastObs.lastSales) != 1 {
		t.Errorf("last-sale subscriber got %d events, want 1", len(lastObs.lastSales))
	}
	if len(tickObs.tickers) != 1 {
		t.Errorf("ticker subscriber got %d events, want 1 (delegated)", len(tickObs.tickers))
	}
}

func TestMessagePublisherFiltersByUser(t *testing.T) {
	t.Parallel()
	mp := NewMessagePublisher()
	alice := &recordingObserver{}
	bob := &recordingObserver{}
	_ = mp.Subscribe("IBM", "ALICE", alice)
	_ = mp.Subscribe("IBM", "BOB", bob)

	mp.PublishFill(messages.Fill{User: "ALICE", Product: "IBM", Price: money.FromCents(1000), Volume: 10})

	if len(alice.fills) != 1 {
		t.Errorf("alice got %d fills, want 1", len(alice.fills))
	}
	if len(bob.fills) != 0 {
		t.Errorf("bob got %d fills, want 0", len(bob.fills))
	}
}

func TestMessagePublisherMarketMessageFanOutPerSubscription(t *testing.T) {
	t.Parallel()
	mp := NewMessagePublisher()
	obs := &recordingObserver{}
	_ = mp.Subscribe("IBM", "ALICE", obs)
	_ = mp.Subscribe("MSFT", "ALICE", obs)

	mp.PublishMarketMessage("OPEN")

	if len(obs.marketMessages) != 2 {
		t.Errorf("got %d market messages, want 2 (one per subscription)", len(obs.marketMessages))
	}
}
