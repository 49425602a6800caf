package book

import (
	"fmt"

	"exchange-core/internal/messages"
	"exchange-core/internal/tradable"
)

// doTrade runs one matching pass against the bucket currently at this
// side's best price, consuming incoming.RemainingVolume() against resting
// entries in arrival order. It returns the fills produced by this one
// pass, keyed by user+id+price with same-key fills summed (see
// mergeSum) — the aggregation a single call performs before tryTrade
// merges across calls with its own, different rule.
func (s *Side) doTrade(incoming tradable.Tradable) map[string]messages.Fill {
	entries, price := s.entriesAtTopOfBook()
	fills := make(map[string]messages.Fill)
	if len(entries) == 0 {
		return fills
	}

	var toRemove []tradable.Tradable
	for _, t := range entries {
		if incoming.RemainingVolume() <= 0 {
			break
		}

		tradePrice := t.Price()
		if tradePrice.IsMarket() {
			tradePrice = incoming.Price()
		}

		if incoming.RemainingVolume() >= t.RemainingVolume() {
			vol := t.RemainingVolume()
			leftover := incoming.RemainingVolume() - vol

			mergeSum(fills, messages.Fill{
				User: t.User(), Product: t.Product(), Price: tradePrice,
				Volume: vol, Details: "leaving 0", Side: t.Side(), ID: t.ID(),
			})
			mergeSum(fills, messages.Fill{
				User: incoming.User(), Product: incoming.Product(), Price: tradePrice,
				Volume: vol, Details: fmt.Sprintf("leaving %d", leftover), Side: incoming.Side(), ID: incoming.ID(),
			})

			_ = t.SetRemainingVolume(0)
			_ = incoming.SetRemainingVolume(leftover)
			s.archiver.ArchiveOldEntry(t)
			toRemove = append(toRemove, t)
		} else {
			vol := incoming.RemainingVolume()
			remainingOfResting := t.RemainingVolume() - vol

			mergeSum(fills, messages.Fill{
				User: t.User(), Product: t.Product(), Price: tradePrice,
				Volume: vol, Details: fmt.Sprintf("leaving %d", remainingOfResting), Side: t.Side(), ID: t.ID(),
			})
			mergeSum(fills, messages.Fill{
				User: incoming.User(), Product: incoming.Product(), Price: tradePrice,
				Volume: vol, Details: "leaving 0", Side: incoming.Side(), ID: incoming.ID(),
			})

			_ = t.SetRemainingVolume(remainingOfResting)
			_ = incoming.SetRemainingVolume(0)
			s.archiver.ArchiveOldEntry(incoming)
			break
		}
	}

	for _, t := range toRemove {
		s.removeTradable(t)
	}
	if price != nil {
		s.clearIfEmpty(price)
	}

	return fills
}

// mergeSum is the within-doTrade aggregation rule: identical user+id+price
// keys have their volumes summed and details overwritten with the latest.
func mergeSum(fills map[string]messages.Fill, f messages.Fill) {
	key := f.Key()
	if existing, ok := fills[key]; ok {
		f.Volume += existing.Volume
	}
	fills[key] = f
}

// mergeOverwrite is the across-doTrade-calls aggregation rule used by
// tryTrade: same-key entries are replaced wholesale by the newer call's
// value, not summed. This asymmetry with mergeSum is intentional — see
// the design note on mergeFills — and the last-sale derivation depends on
// it.
func mergeOverwrite(dst, src map[string]messages.Fill) {
	for k, v := range src {
		dst[k] = v
	}
}

// crosses reports whether incoming's price crosses this side's current
// top of book. A MKT incoming always crosses. A MKT resting top always
// crosses too, since the book must never actually come to rest with a
// bare MKT entry contending for priority.
func (s *Side) crosses(incoming tradable.Tradable) bool {
	if incoming.Price().IsMarket() {
		return true
	}
	top := s.topOfBookPrice()
	if top == nil {
		return false
	}
	if top.IsMarket() {
		return true
	}
	if incoming.Side() == tradable.Buy {
		return incoming.Price().GreaterThanOrEqual(top)
	}
	return incoming.Price().LessThanOrEqual(top)
}

// tryTrade repeatedly invokes doTrade while incoming still has remaining
// volume, this side is non-empty, and incoming crosses the book. Fills
// from successive calls are merged with mergeOverwrite, then every
// accumulated fill is published before tryTrade returns.
func (s *Side) tryTrade(incoming tradable.Tradable) map[string]messages.Fill {
	merged := make(map[string]messages.Fill)
	for incoming.RemainingVolume() > 0 && !s.isEmpty() && s.crosses(incoming) {
		mergeOverwrite(merged, s.doTrade(incoming))
	}
	for _, f := range merged {
		s.notifier.PublishFill(f)
	}
	return merged
}
