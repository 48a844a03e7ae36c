package risk

import (
	"sync"
	"time"
)

// HaltReason 进程级熔断状态。粘性：触发后抑制所有新订单，
// 直到显式清除条件满足（日亏在下一交易日清除，回撤需手动复位）。
type HaltReason string

const (
	HaltNone         HaltReason = ""
	HaltMaxDailyLoss HaltReason = "MAX_DAILY_LOSS"
	HaltMaxDrawdown  HaltReason = "MAX_DRAWDOWN"
	HaltMaxExposure  HaltReason = "MAX_EXPOSURE"
)

// DrawdownConfig 熔断阈值。零值表示对应检查关闭。
type DrawdownConfig struct {
	MaxDrawdownPct  float64 `yaml:"max_drawdown_pct"`   // 相对历史峰值
	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct"` // 相对当日起始权益
	MaxExposurePct  float64 `yaml:"max_exposure_pct"`   // 敞口占权益
}

// DrawdownMonitor 跟踪峰值权益、当日起始权益与当前回撤。
// 峰值只升不降；日起始权益在 UTC 日界滚动并顺带清除日亏熔断。
type DrawdownMonitor struct {
	mu       sync.Mutex
	cfg      DrawdownConfig
	clock    Clock
	peak     float64
	current  float64
	dayStart float64
	day      time.Time // 当日零点（UTC）
	halt     HaltReason
}

// NewDrawdownMonitor 以初始权益创建。
func NewDrawdownMonitor(cfg DrawdownConfig, equity float64, clock Clock) *DrawdownMonitor {
	if clock == nil {
		clock = RealClock
	}
	now := clock.Now()
	return &DrawdownMonitor{
		cfg:      cfg,
		clock:    clock,
		peak:     equity,
		current:  equity,
		dayStart: equity,
		day:      now.Truncate(24 * time.Hour),
	}
}

// UpdateEquity 记录一次权益，返回更新后的熔断状态。
func (m *DrawdownMonitor) UpdateEquity(equity float64) HaltReason {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollDayLocked()

	m.current = equity
	if equity > m.peak {
		m.peak = equity
	}

	if m.cfg.MaxDrawdownPct > 0 && m.currentDrawdownLocked() > m.cfg.MaxDrawdownPct {
		m.halt = HaltMaxDrawdown
	} else if m.cfg.MaxDailyLossPct > 0 && m.dailyDrawdownLocked() > m.cfg.MaxDailyLossPct {
		m.halt = HaltMaxDailyLoss
	}
	return m.halt
}

// CheckExposure 敞口超限触发熔断。
func (m *DrawdownMonitor) CheckExposure(exposure float64) HaltReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.MaxExposurePct > 0 && m.current > 0 && exposure/m.current > m.cfg.MaxExposurePct {
		m.halt = HaltMaxExposure
	}
	return m.halt
}

// Halted 当前熔断状态。每次下单前必须重查，不能只在信号时查。
func (m *DrawdownMonitor) Halted() HaltReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()
	return m.halt
}

// Reset 手动清除熔断（回撤熔断只能手动清）。
func (m *DrawdownMonitor) Reset() {
	m.mu.Lock()
	m.halt = HaltNone
	m.mu.Unlock()
}

// CurrentDrawdown (peak − current) / peak。
func (m *DrawdownMonitor) CurrentDrawdown() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentDrawdownLocked()
}

// DailyDrawdown (dayStart − current) / dayStart。
func (m *DrawdownMonitor) DailyDrawdown() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyDrawdownLocked()
}

// Peak 历史峰值权益。
func (m *DrawdownMonitor) Peak() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Equity 最近一次权益。
func (m *DrawdownMonitor) Equity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *DrawdownMonitor) currentDrawdownLocked() float64 {
	if m.peak <= 0 {
		return 0
	}
	dd := (m.peak - m.current) / m.peak
	if dd < 0 {
		return 0
	}
	return dd
}

func (m *DrawdownMonitor) dailyDrawdownLocked() float64 {
	if m.dayStart <= 0 {
		return 0
	}
	dd := (m.dayStart - m.current) / m.dayStart
	if dd < 0 {
		return 0
	}
	return dd
}

// rollDayLocked UTC 日界滚动：重置日起始权益，清除日亏熔断。
// 回撤与敞口熔断不在此清除。
func (m *DrawdownMonitor) rollDayLocked() {
	today := m.clock.Now().Truncate(24 * time.Hour)
	if today.After(m.day) {
		m.day = today
		m.dayStart = m.current
		if m.halt == HaltMaxDailyLoss {
			m.halt = HaltNone
		}
	}
}
