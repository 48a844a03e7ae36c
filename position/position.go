package position

import (
	"time"

	"github.com/google/uuid"

	"poly-hft-go/market"
	"poly-hft-go/signal"
)

// Position 一个未平仓位。由信号与首个成交建仓，价格更新时维护浮动盈亏。
type Position struct {
	ID         uuid.UUID
	SignalID   uuid.UUID
	Market     market.Market
	Side       signal.Side
	EntryPrice float64
	Shares     float64
	Cost       float64 // 建仓成本（入场价 × 份额），敞口按此计
	EntryFee   float64
	Edge       float64 // 入场时信号的成本调整后优势
	EntryTime  time.Time
	Unrealized float64
	LastMark   float64 // 最近一次 mark 用的报价
}

// Open 从信号与成交建仓。
func Open(sig signal.Signal, fillPrice, shares, fee float64, ts time.Time) Position {
	return Position{
		ID:         uuid.New(),
		SignalID:   sig.ID,
		Market:     sig.Market,
		Side:       sig.Side,
		EntryPrice: fillPrice,
		Shares:     shares,
		Cost:       fillPrice * shares,
		EntryFee:   fee,
		Edge:       sig.AdjustedEdge,
		EntryTime:  ts,
		LastMark:   fillPrice,
	}
}

// Mark 按当前该侧报价更新浮动盈亏。
func (p *Position) Mark(price float64) {
	p.LastMark = price
	p.Unrealized = (price - p.EntryPrice) * p.Shares
}

// ClosedPosition 已平仓位。
type ClosedPosition struct {
	Position
	ExitPrice  float64
	ExitTime   time.Time
	Realized   float64 // 已扣除费用
	Settlement bool    // true=到期结算，false=提前离场
}

// settle 到期结算：赢则每份额支付 1，输则 0。
func (p Position) settle(won bool, ts time.Time) ClosedPosition {
	exit := 0.0
	if won {
		exit = 1.0
	}
	payout := exit * p.Shares
	return ClosedPosition{
		Position:   p,
		ExitPrice:  exit,
		ExitTime:   ts,
		Realized:   payout - p.Cost - p.EntryFee,
		Settlement: true,
	}
}

// exit 提前离场：按离场成交价回收。
func (p Position) exit(price, fee float64, ts time.Time) ClosedPosition {
	return ClosedPosition{
		Position:  p,
		ExitPrice: price,
		ExitTime:  ts,
		Realized:  price*p.Shares - p.Cost - p.EntryFee - fee,
	}
}
