package sizing

import (
	"fmt"

	"poly-hft-go/signal"
)

// Sizer 仓位规模策略：从信号与当前 bankroll 得出下单金额（美元）。
// Kelly 与固定比例两种实现由配置选择，阈值互不混用。
type Sizer interface {
	Name() string
	// Size 返回下单金额。bankroll<=0 时返回 0，交易自然停止，不报错。
	Size(bankroll float64, sig signal.Signal) float64
}

// SharesFor 金额换算为份额。执行价非正时返回 0。
func SharesFor(notional, price float64) float64 {
	if price <= 0 || notional <= 0 {
		return 0
	}
	return notional / price
}

// KellyConfig Kelly 策略参数。
type KellyConfig struct {
	// Fraction 分数 Kelly 乘数（0.25 = 四分之一 Kelly）。
	Fraction float64 `yaml:"fraction"`
	// MaxBankrollPct 单笔硬顶占 bankroll 的比例。
	MaxBankrollPct float64 `yaml:"max_bankroll_pct"`
}

// KellySizer 分数 Kelly。对概率 p、报价 m：
// 赔率 b = (1−m)/m，完整 Kelly f = (p·b − (1−p))/b，化简即 (p−m)/(1−m)。
type KellySizer struct {
	cfg KellyConfig
}

// NewKellySizer 创建 Kelly 策略。
func NewKellySizer(cfg KellyConfig) *KellySizer {
	if cfg.Fraction <= 0 {
		cfg.Fraction = 0.25
	}
	if cfg.MaxBankrollPct <= 0 {
		cfg.MaxBankrollPct = 0.01
	}
	return &KellySizer{cfg: cfg}
}

func (s *KellySizer) Name() string { return "kelly" }

// Size 负 Kelly（公允值<=报价）裁剪为 0。
func (s *KellySizer) Size(bankroll float64, sig signal.Signal) float64 {
	if bankroll <= 0 {
		return 0
	}
	p, m := sig.FairValue, sig.MarketPrice
	if m <= 0 || m >= 1 {
		return 0
	}
	f := (p - m) / (1 - m)
	if f <= 0 {
		return 0
	}
	notional := f * s.cfg.Fraction * bankroll
	limit := s.cfg.MaxBankrollPct * bankroll
	if notional > limit {
		notional = limit
	}
	return notional
}

// FixedConfig 固定比例策略参数。
type FixedConfig struct {
	// Fraction 每笔占 bankroll 的比例。
	Fraction float64 `yaml:"fraction"`
	// MaxBankrollPct 安全硬顶。
	MaxBankrollPct float64 `yaml:"max_bankroll_pct"`
}

// FixedSizer 固定比例，与 edge 幅度无关。momentum-lag 策略的默认配对。
type FixedSizer struct {
	cfg FixedConfig
}

// NewFixedSizer 创建固定比例策略。
func NewFixedSizer(cfg FixedConfig) *FixedSizer {
	if cfg.Fraction <= 0 {
		cfg.Fraction = 0.02
	}
	if cfg.MaxBankrollPct <= 0 {
		cfg.MaxBankrollPct = 0.05
	}
	return &FixedSizer{cfg: cfg}
}

func (s *FixedSizer) Name() string { return "fixed" }

func (s *FixedSizer) Size(bankroll float64, sig signal.Signal) float64 {
	if bankroll <= 0 {
		return 0
	}
	notional := s.cfg.Fraction * bankroll
	limit := s.cfg.MaxBankrollPct * bankroll
	if notional > limit {
		notional = limit
	}
	return notional
}

// Config 工厂配置。
type Config struct {
	Policy string      `yaml:"policy"` // kelly | fixed
	Kelly  KellyConfig `yaml:"kelly"`
	Fixed  FixedConfig `yaml:"fixed"`
}

// New 按配置创建策略。
func New(cfg Config) (Sizer, error) {
	switch cfg.Policy {
	case "kelly", "":
		return NewKellySizer(cfg.Kelly), nil
	case "fixed":
		return NewFixedSizer(cfg.Fixed), nil
	default:
		return nil, fmt.Errorf("unknown sizing policy: %s", cfg.Policy)
	}
}
