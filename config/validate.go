package config

import (
	"errors"
	"fmt"
)

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures required fields are present and limits are sane.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Symbol == "" {
		return errors.New("symbol is required")
	}
	if cfg.Bankroll <= 0 {
		return ErrInvalid("bankroll must be > 0")
	}
	if cfg.Engine.FeeRate < 0 {
		return ErrInvalid("engine.feeRate must be >= 0")
	}
	if cfg.Volatility.WindowSec <= 0 {
		return ErrInvalid("volatility.windowSec must be > 0")
	}
	if cfg.Volatility.MinSamples < 2 {
		return ErrInvalid("volatility.minSamples must be >= 2")
	}
	switch cfg.Strategy.Name {
	case "", "edge", "momentum":
	default:
		return fmt.Errorf("unknown strategy %q", cfg.Strategy.Name)
	}
	switch cfg.Sizing.Policy {
	case "", "kelly", "fixed":
	default:
		return fmt.Errorf("unknown sizing policy %q", cfg.Sizing.Policy)
	}
	if cfg.Filters.MinEdge < 0 {
		return ErrInvalid("filters.minEdge must be >= 0")
	}
	if cfg.Filters.MaxEdge > 0 && cfg.Filters.MaxEdge <= cfg.Filters.MinEdge {
		return ErrInvalid("filters.maxEdge must exceed minEdge")
	}
	if cfg.Selector.LowThreshold < 0 || cfg.Selector.HighThreshold < cfg.Selector.LowThreshold {
		return ErrInvalid("selector thresholds must satisfy 0 <= low <= high")
	}
	if cfg.Queue.TakerDelayMs < 0 {
		return ErrInvalid("queue.takerDelayMs must be >= 0")
	}
	if cfg.Queue.MakerTimeoutSec <= 0 {
		return ErrInvalid("queue.makerTimeoutSec must be > 0")
	}
	if err := validatePct("risk.gate.maxPositionPct", cfg.Risk.Gate.MaxPositionPct); err != nil {
		return err
	}
	if err := validatePct("risk.gate.maxExposurePct", cfg.Risk.Gate.MaxExposurePct); err != nil {
		return err
	}
	if err := validatePct("risk.drawdown.maxDrawdownPct", cfg.Risk.Drawdown.MaxDrawdownPct); err != nil {
		return err
	}
	if err := validatePct("risk.drawdown.maxDailyLossPct", cfg.Risk.Drawdown.MaxDailyLossPct); err != nil {
		return err
	}
	if cfg.Risk.Gate.MaxConcurrent < 0 {
		return ErrInvalid("risk.gate.maxConcurrent must be >= 0")
	}
	for _, m := range cfg.Markets {
		if m.ConditionID == "" || m.YesTokenID == "" || m.NoTokenID == "" {
			return fmt.Errorf("market %q: conditionId/yesTokenId/noTokenId are required", m.ConditionID)
		}
		if m.Strike <= 0 {
			return fmt.Errorf("market %s: strike must be > 0", m.ConditionID)
		}
		if !m.CloseTime.After(m.OpenTime) {
			return fmt.Errorf("market %s: closeTime must be after openTime", m.ConditionID)
		}
	}
	return nil
}

// 0 表示不启用该限制
func validatePct(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
	}
	return nil
}
