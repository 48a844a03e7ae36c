package market

import (
	"errors"
	"time"
)

// PriceLevel 一档行情：价格与挂单量。
type PriceLevel struct {
	Price float64
	Size  float64
}

// BookSnapshot 某个 token 的 L2 快照。Bids 按价格从高到低，Asks 从低到高。
type BookSnapshot struct {
	TokenID   string
	Bids      []PriceLevel
	Asks      []PriceLevel
	UpdatedAt time.Time
}

// ErrCrossedBook 最优买价 >= 最优卖价，上游数据异常，整张快照弃用。
var ErrCrossedBook = errors.New("crossed book")

// Validate 检查快照基本不变量；交叉盘返回 ErrCrossedBook。
func (b *BookSnapshot) Validate() error {
	bid, bidOK := b.BestBid()
	ask, askOK := b.BestAsk()
	if bidOK && askOK && bid >= ask {
		return ErrCrossedBook
	}
	return nil
}

// BestBid 返回最优买价；空盘口时第二个返回值为 false。
func (b *BookSnapshot) BestBid() (float64, bool) {
	if len(b.Bids) == 0 {
		return 0, false
	}
	return b.Bids[0].Price, true
}

// BestAsk 返回最优卖价。
func (b *BookSnapshot) BestAsk() (float64, bool) {
	if len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price, true
}

// Mid 中间价；任一侧缺失返回 false。
func (b *BookSnapshot) Mid() (float64, bool) {
	bid, bidOK := b.BestBid()
	ask, askOK := b.BestAsk()
	if !bidOK || !askOK {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// Spread 买卖价差。
func (b *BookSnapshot) Spread() (float64, bool) {
	bid, bidOK := b.BestBid()
	ask, askOK := b.BestAsk()
	if !bidOK || !askOK {
		return 0, false
	}
	return ask - bid, true
}

// DepthAt 返回指定价位的挂单量；side 为 "bid" 或 "ask"。
func (b *BookSnapshot) DepthAt(side string, price float64) float64 {
	levels := b.Asks
	if side == SideBid {
		levels = b.Bids
	}
	for _, l := range levels {
		if l.Price == price {
			return l.Size
		}
	}
	return 0
}

// AskLiquidityUpTo 累计 price 及更优价位的卖方流动性（买方可吃到的量）。
func (b *BookSnapshot) AskLiquidityUpTo(price float64) float64 {
	total := 0.0
	for _, l := range b.Asks {
		if l.Price > price {
			break
		}
		total += l.Size
	}
	return total
}

const (
	SideBid = "bid"
	SideAsk = "ask"
)
