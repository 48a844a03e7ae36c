package signal

import (
	"time"

	"github.com/google/uuid"

	"poly-hft-go/market"
)

// Side represents which token the signal wants to buy.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Reason tags why a signal was generated.
type Reason string

const (
	// ReasonPostOpenLag market just opened, venue prices lagging
	ReasonPostOpenLag Reason = "POST_OPEN_LAG"
	// ReasonSpotDivergence spot moved significantly, odds stale
	ReasonSpotDivergence Reason = "SPOT_DIVERGENCE"
	// ReasonVolatilityShift fair value moved on volatility change
	ReasonVolatilityShift Reason = "VOLATILITY_SHIFT"
	// ReasonMomentumLag momentum confirmed but odds still in neutral band
	ReasonMomentumLag Reason = "MOMENTUM_LAG"
)

// Signal 一次可交易机会。发出后不可变，由订单类型选择器消费且只消费一次。
type Signal struct {
	ID           uuid.UUID
	Market       market.Market
	Side         Side
	FairValue    float64 // 模型公允概率（已按方向换算）
	MarketPrice  float64 // 当前报价
	RawEdge      float64 // 成本调整前的优势
	AdjustedEdge float64 // 扣除费用/滑点/衰减缓冲后的优势
	Confidence   float64
	Reason       Reason
	Timestamp    time.Time
}

// New 构造一个信号并分配 ID。RawEdge = FairValue - MarketPrice。
func New(m market.Market, side Side, fairValue, marketPrice, adjustedEdge, confidence float64, reason Reason, ts time.Time) Signal {
	return Signal{
		ID:           uuid.New(),
		Market:       m,
		Side:         side,
		FairValue:    fairValue,
		MarketPrice:  marketPrice,
		RawEdge:      fairValue - marketPrice,
		AdjustedEdge: adjustedEdge,
		Confidence:   confidence,
		Reason:       reason,
		Timestamp:    ts,
	}
}

// Candidate 检测策略的中间输出，进入过滤链前的候选。
type Candidate struct {
	Side         Side
	FairValue    float64
	MarketPrice  float64
	RawEdge      float64
	AdjustedEdge float64
	Confidence   float64
	Reason       Reason
}
