package risk

import "fmt"

// GateConfig 下单前检查的限额。零值关闭对应检查（熔断检查除外）。
type GateConfig struct {
	MaxPositionPct float64 `yaml:"max_position_pct"` // 单笔金额占 bankroll 上限
	MaxConcurrent  int     `yaml:"max_concurrent"`   // 未平仓数上限
	MaxExposurePct float64 `yaml:"max_exposure_pct"` // 总敞口占 bankroll 上限
}

// Gate 顺序检查，全部通过才允许提交订单。
type Gate struct {
	cfg GateConfig
}

// NewGate 创建风控闸门。
func NewGate(cfg GateConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Check 校验一笔候选订单。通过返回 nil，否则返回 RiskError。
// size 为下单金额，exposure 为现有敞口，halt 为当前熔断状态。
func (g *Gate) Check(bankroll, size float64, openCount int, exposure float64, halt HaltReason) error {
	if halt != HaltNone {
		return fmt.Errorf("%w: %s", ErrTradingHalted, halt)
	}
	if g.cfg.MaxPositionPct > 0 && size > g.cfg.MaxPositionPct*bankroll {
		return fmt.Errorf("%w: size %.2f > %.2f", ErrPositionTooLarge, size, g.cfg.MaxPositionPct*bankroll)
	}
	if g.cfg.MaxConcurrent > 0 && openCount >= g.cfg.MaxConcurrent {
		return fmt.Errorf("%w: %d open", ErrMaxPositions, openCount)
	}
	if g.cfg.MaxExposurePct > 0 && exposure+size > g.cfg.MaxExposurePct*bankroll {
		return fmt.Errorf("%w: projected %.2f > %.2f", ErrMaxExposure, exposure+size, g.cfg.MaxExposurePct*bankroll)
	}
	return nil
}
