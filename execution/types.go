package execution

import (
	"time"

	"github.com/google/uuid"

	"poly-hft-go/signal"
)

// OrderKind 挂单或吃单。
type OrderKind string

const (
	KindMaker OrderKind = "MAKER"
	KindTaker OrderKind = "TAKER"
)

// Order 提交给执行层的订单。买入指定 token（YES 或 NO 各有自己的盘口）。
// 成交完毕或取消后终结，不复用。
type Order struct {
	ID          uuid.UUID
	SignalID    uuid.UUID
	TokenID     string
	Side        signal.Side
	Price       float64
	Size        float64 // 份额
	Kind        OrderKind
	SubmittedAt time.Time
}

// NewOrder 创建订单。
func NewOrder(sig signal.Signal, tokenID string, price, size float64, kind OrderKind, ts time.Time) Order {
	return Order{
		ID:          uuid.New(),
		SignalID:    sig.ID,
		TokenID:     tokenID,
		Side:        sig.Side,
		Price:       price,
		Size:        size,
		Kind:        kind,
		SubmittedAt: ts,
	}
}

// Fill 一次成交。一张订单可能由多次成交组成，成交量之和不超过订单量。
type Fill struct {
	OrderID   uuid.UUID
	Price     float64
	Size      float64
	Timestamp time.Time
}
