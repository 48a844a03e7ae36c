package risk

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"poly-hft-go/position"
	"poly-hft-go/signal"
)

// Ledger 单写入者事务边界：风控检查、敞口预留与建仓/平仓
// 作为整体原子执行，避免两个并发信号同时通过只够一个的敞口检查。
// 各市场的状态机共享这一个实例。
type Ledger struct {
	mu        sync.Mutex
	gate      *Gate
	dd        *DrawdownMonitor
	positions *position.Tracker
	bankroll  float64 // 可用现金
	reserved  float64 // 已预留未成交的金额
	inflight  int     // 已预留未成交的笔数，与持仓一起占并发额度
}

// NewLedger 组装账本。
func NewLedger(gate *Gate, dd *DrawdownMonitor, tracker *position.Tracker, bankroll float64) *Ledger {
	return &Ledger{gate: gate, dd: dd, positions: tracker, bankroll: bankroll}
}

// Reserve 为一笔候选订单预留敞口。通过检查后预留计入后续的敞口预测。
func (l *Ledger) Reserve(size float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	halt := l.dd.Halted()
	err := l.gate.Check(l.bankroll, size, l.positions.Count()+l.inflight,
		l.positions.Exposure()+l.reserved, halt)
	if err != nil {
		return err
	}
	l.reserved += size
	l.inflight++
	return nil
}

// Release 订单取消或零成交时退回预留。
func (l *Ledger) Release(size float64) {
	l.mu.Lock()
	l.releaseLocked(size)
	l.mu.Unlock()
}

func (l *Ledger) releaseLocked(size float64) {
	l.reserved -= size
	if l.reserved < 0 {
		l.reserved = 0
	}
	if l.inflight > 0 {
		l.inflight--
	}
}

// Open 成交后建仓：退回预留、扣现金、登记仓位、更新权益。
func (l *Ledger) Open(sig signal.Signal, fillPrice, shares, fee, reservedAmt float64, ts time.Time) (uuid.UUID, HaltReason) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLocked(reservedAmt)
	cost := fillPrice * shares
	l.bankroll -= cost + fee
	id := l.positions.Open(sig, fillPrice, shares, fee, ts)
	halt := l.dd.UpdateEquity(l.equityLocked())
	if halt == HaltNone {
		halt = l.dd.CheckExposure(l.positions.Exposure())
	}
	return id, halt
}

// Settle 到期结算：回收支付、更新权益。
func (l *Ledger) Settle(id uuid.UUID, won bool, ts time.Time) (position.ClosedPosition, HaltReason, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp, err := l.positions.Settle(id, won, ts)
	if err != nil {
		return position.ClosedPosition{}, l.dd.Halted(), err
	}
	l.bankroll += cp.ExitPrice * cp.Shares
	halt := l.dd.UpdateEquity(l.equityLocked())
	return cp, halt, nil
}

// SettleMarket 结算某市场全部仓位。
func (l *Ledger) SettleMarket(conditionID string, winner signal.Side, ts time.Time) ([]position.ClosedPosition, HaltReason) {
	l.mu.Lock()
	defer l.mu.Unlock()
	closed := l.positions.SettleMarket(conditionID, winner, ts)
	for _, cp := range closed {
		l.bankroll += cp.ExitPrice * cp.Shares
	}
	return closed, l.dd.UpdateEquity(l.equityLocked())
}

// Exit 提前离场。
func (l *Ledger) Exit(id uuid.UUID, price, fee float64, ts time.Time) (position.ClosedPosition, HaltReason, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp, err := l.positions.Exit(id, price, fee, ts)
	if err != nil {
		return position.ClosedPosition{}, l.dd.Halted(), err
	}
	l.bankroll += price*cp.Shares - fee
	halt := l.dd.UpdateEquity(l.equityLocked())
	return cp, halt, nil
}

// Mark 价格更新驱动浮盈亏重算与权益/熔断刷新。
func (l *Ledger) Mark(conditionID string, side signal.Side, price float64) HaltReason {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions.Mark(conditionID, side, price)
	return l.dd.UpdateEquity(l.equityLocked())
}

// Halted 下单前必查。
func (l *Ledger) Halted() HaltReason { return l.dd.Halted() }

// ResetHalt 手动清除熔断。
func (l *Ledger) ResetHalt() { l.dd.Reset() }

// Bankroll 可用现金。
func (l *Ledger) Bankroll() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bankroll
}

// Equity 现金 + 持仓成本 + 浮动盈亏。
func (l *Ledger) Equity() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.equityLocked()
}

// Exposure 持仓敞口（成本口径）。
func (l *Ledger) Exposure() float64 { return l.positions.Exposure() }

// OpenCount 未平仓数。
func (l *Ledger) OpenCount() int { return l.positions.Count() }

// Position 读取一个未平仓位的副本。
func (l *Ledger) Position(id uuid.UUID) (position.Position, bool) {
	return l.positions.Get(id)
}

// Realized 已实现盈亏合计。
func (l *Ledger) Realized() float64 { return l.positions.Realized() }

// Closed 已平仓历史。
func (l *Ledger) Closed() []position.ClosedPosition { return l.positions.Closed() }

// Peak 历史峰值权益。
func (l *Ledger) Peak() float64 { return l.dd.Peak() }

// CurrentDrawdown 当前回撤。
func (l *Ledger) CurrentDrawdown() float64 { return l.dd.CurrentDrawdown() }

// DailyDrawdown 当日回撤。
func (l *Ledger) DailyDrawdown() float64 { return l.dd.DailyDrawdown() }

func (l *Ledger) equityLocked() float64 {
	return l.bankroll + l.positions.Exposure() + l.positions.Unrealized()
}
