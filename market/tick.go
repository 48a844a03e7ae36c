package market

import "time"

// PriceTick is a single spot trade print from the price feed.
// Ordered by ExchangeTS; duplicates by (Symbol, ExchangeTS) are idempotent.
type PriceTick struct {
	Symbol     string
	Price      float64
	ExchangeTS time.Time // source (exchange event) timestamp
	ReceivedTS time.Time // local receipt timestamp
}

// Key identifies a tick for dedup purposes.
func (t PriceTick) Key() TickKey {
	return TickKey{Symbol: t.Symbol, TS: t.ExchangeTS.UnixNano()}
}

// TickKey is the dedup identity of a tick.
type TickKey struct {
	Symbol string
	TS     int64
}
