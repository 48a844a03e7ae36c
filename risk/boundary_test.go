package risk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"poly-hft-go/risk"
)

// TestGate_Boundaries 验证各限额恰好在边界上的行为：等于上限放行，超过才拒。
func TestGate_Boundaries(t *testing.T) {
	g := risk.NewGate(risk.GateConfig{MaxPositionPct: 0.05, MaxConcurrent: 2, MaxExposurePct: 0.20})

	testCases := []struct {
		name      string
		size      float64
		openCount int
		exposure  float64
		wantErr   error
	}{
		{"单笔恰好在上限", 25, 0, 0, nil},
		{"单笔刚过上限", 25.01, 0, 0, risk.ErrPositionTooLarge},
		{"并发数差一", 10, 1, 10, nil},
		{"并发数已满", 10, 2, 10, risk.ErrMaxPositions},
		{"敞口恰好到顶", 10, 0, 90, nil},
		{"敞口越顶", 10, 0, 91, risk.ErrMaxExposure},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Check(500, tc.size, tc.openCount, tc.exposure, risk.HaltNone)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

// TestGate_ZeroLimitsDisableChecks 上限为 0 表示不启用对应检查。
func TestGate_ZeroLimitsDisableChecks(t *testing.T) {
	g := risk.NewGate(risk.GateConfig{})
	assert.NoError(t, g.Check(500, 499, 100, 499, risk.HaltNone))
	assert.ErrorIs(t, g.Check(500, 1, 0, 0, risk.HaltMaxDailyLoss), risk.ErrTradingHalted)
}

// TestDrawdown_HaltPrecedence 总回撤与日亏同时越限时，总回撤优先。
func TestDrawdown_HaltPrecedence(t *testing.T) {
	clock := &risk.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := risk.NewDrawdownMonitor(risk.DrawdownConfig{MaxDrawdownPct: 0.10, MaxDailyLossPct: 0.05}, 500, clock)

	halt := m.UpdateEquity(400)
	assert.Equal(t, risk.HaltMaxDrawdown, halt)
}
