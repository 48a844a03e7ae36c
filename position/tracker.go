package position

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"poly-hft-go/signal"
)

var ErrNotFound = errors.New("position not found")

// Tracker 持仓账本：未平仓集合、已平仓历史、权益口径的实现盈亏。
// 所有修改都在锁内，与风控的原子检查配合（见 risk.Ledger）。
type Tracker struct {
	mu     sync.Mutex
	open   map[uuid.UUID]*Position
	closed []ClosedPosition
}

// NewTracker 创建账本。
func NewTracker() *Tracker {
	return &Tracker{open: make(map[uuid.UUID]*Position)}
}

// Open 从信号与成交建仓并登记，返回仓位 ID。
func (t *Tracker) Open(sig signal.Signal, fillPrice, shares, fee float64, ts time.Time) uuid.UUID {
	p := Open(sig, fillPrice, shares, fee, ts)
	t.mu.Lock()
	t.open[p.ID] = &p
	t.mu.Unlock()
	return p.ID
}

// Mark 对某市场某方向的所有未平仓位更新浮动盈亏。
func (t *Tracker) Mark(conditionID string, side signal.Side, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.open {
		if p.Market.ConditionID == conditionID && p.Side == side {
			p.Mark(price)
		}
	}
}

// Settle 到期结算一个仓位，返回实现盈亏。
func (t *Tracker) Settle(id uuid.UUID, won bool, ts time.Time) (ClosedPosition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.open[id]
	if !ok {
		return ClosedPosition{}, ErrNotFound
	}
	cp := p.settle(won, ts)
	delete(t.open, id)
	t.closed = append(t.closed, cp)
	return cp, nil
}

// SettleMarket 结算某市场的全部仓位。winner 是获胜一侧。
func (t *Tracker) SettleMarket(conditionID string, winner signal.Side, ts time.Time) []ClosedPosition {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []ClosedPosition
	for id, p := range t.open {
		if p.Market.ConditionID != conditionID {
			continue
		}
		cp := p.settle(p.Side == winner, ts)
		delete(t.open, id)
		t.closed = append(t.closed, cp)
		out = append(out, cp)
	}
	return out
}

// Exit 提前离场。
func (t *Tracker) Exit(id uuid.UUID, price, fee float64, ts time.Time) (ClosedPosition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.open[id]
	if !ok {
		return ClosedPosition{}, ErrNotFound
	}
	cp := p.exit(price, fee, ts)
	delete(t.open, id)
	t.closed = append(t.closed, cp)
	return cp, nil
}

// Exposure 总敞口 = 未平仓成本之和。
func (t *Tracker) Exposure() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0.0
	for _, p := range t.open {
		total += p.Cost
	}
	return total
}

// Count 未平仓数量。
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// CountForMarket 某市场的未平仓数量。
func (t *Tracker) CountForMarket(conditionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, p := range t.open {
		if p.Market.ConditionID == conditionID {
			n++
		}
	}
	return n
}

// Unrealized 浮动盈亏合计。
func (t *Tracker) Unrealized() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0.0
	for _, p := range t.open {
		total += p.Unrealized
	}
	return total
}

// Realized 已实现盈亏合计（已扣费）。
func (t *Tracker) Realized() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0.0
	for _, cp := range t.closed {
		total += cp.Realized
	}
	return total
}

// Closed 已平仓历史的副本。
func (t *Tracker) Closed() []ClosedPosition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ClosedPosition, len(t.closed))
	copy(out, t.closed)
	return out
}

// Get 读取一个未平仓位的副本。
func (t *Tracker) Get(id uuid.UUID) (Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.open[id]
	if !ok {
		return Position{}, false
	}
	return *p, true
}
