package signal

import (
	"time"
)

// MomentumDirection 动量方向。
type MomentumDirection int

const (
	MomentumUp MomentumDirection = iota + 1
	MomentumDown
)

// Momentum 一次已确认的动量：现货相对 strike 的持续偏离。
type Momentum struct {
	Direction MomentumDirection
	MovePct   float64 // 相对 strike 的偏离幅度（0.008 = 0.8%）
	Price     float64 // 确认时的现货价
	Since     time.Time
}

// MomentumConfig 动量窗口参数。
type MomentumConfig struct {
	Window       time.Duration // 价格窗口（默认 120s）
	MinMovePct   float64       // 触发动量的最小偏离（默认 0.7%）
	MaxMovePct   float64       // 超过视为脏数据（默认 5%）
	Confirmation time.Duration // 方向需持续的时间（默认 30s）
}

// DefaultMomentumConfig 默认参数。
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		Window:       120 * time.Second,
		MinMovePct:   0.007,
		MaxMovePct:   0.05,
		Confirmation: 30 * time.Second,
	}
}

// MomentumDetector 维护滚动价格窗口，检测相对 strike 的已确认偏离。
// 偏离必须持续 Confirmation 时长才算确认，避免被单笔插针触发。
type MomentumDetector struct {
	cfg            MomentumConfig
	prices         []tsPrice
	lastDirection  MomentumDirection
	directionSince time.Time
}

type tsPrice struct {
	ts    time.Time
	price float64
}

// NewMomentumDetector 创建动量检测器。
func NewMomentumDetector(cfg MomentumConfig) *MomentumDetector {
	if cfg.Window <= 0 {
		cfg.Window = 120 * time.Second
	}
	return &MomentumDetector{cfg: cfg, prices: make([]tsPrice, 0, 256)}
}

// Update 喂入一个价格点并丢弃窗口外旧点。
func (m *MomentumDetector) Update(ts time.Time, price float64) {
	m.prices = append(m.prices, tsPrice{ts: ts, price: price})
	cutoff := ts.Add(-m.cfg.Window)
	i := 0
	for ; i < len(m.prices); i++ {
		if !m.prices[i].ts.Before(cutoff) {
			break
		}
	}
	if i > 0 {
		m.prices = m.prices[i:]
	}
}

// Detect 检查当前价格相对 strike 是否存在已确认的动量。
func (m *MomentumDetector) Detect(strike float64) (Momentum, bool) {
	if len(m.prices) == 0 || strike <= 0 {
		return Momentum{}, false
	}
	last := m.prices[len(m.prices)-1]
	movePct := (last.price - strike) / strike
	absMove := movePct
	if absMove < 0 {
		absMove = -absMove
	}

	if absMove < m.cfg.MinMovePct || absMove > m.cfg.MaxMovePct {
		m.lastDirection = 0
		return Momentum{}, false
	}

	dir := MomentumUp
	if movePct < 0 {
		dir = MomentumDown
	}

	if dir != m.lastDirection {
		m.lastDirection = dir
		m.directionSince = last.ts
		return Momentum{}, false
	}
	if last.ts.Sub(m.directionSince) < m.cfg.Confirmation {
		return Momentum{}, false
	}

	return Momentum{
		Direction: dir,
		MovePct:   absMove,
		Price:     last.price,
		Since:     m.directionSince,
	}, true
}

// LagStrategyConfig momentum-lag 策略参数。与 edge 策略阈值互不混用。
type LagStrategyConfig struct {
	Momentum MomentumConfig
	// MinLag 产生候选的最小滞后（报价单位，0.10 = 10 cents）。
	MinLag float64
	// MaxYesForUp 上行动量下 YES 价超过该值视为 odds 已反应。
	MaxYesForUp float64
	// MinYesForDown 下行动量下 YES 价低于该值视为 odds 已反应。
	MinYesForDown float64
	// Sensitivity 1% 动量对应的报价预期变化（默认 10，即 10 cents）。
	Sensitivity float64
	// CostBuffer 费用/滑点缓冲，从 lag 中扣除得到调整后幅度。
	CostBuffer float64
}

// DefaultLagStrategyConfig 默认参数。
func DefaultLagStrategyConfig() LagStrategyConfig {
	return LagStrategyConfig{
		Momentum:      DefaultMomentumConfig(),
		MinLag:        0.10,
		MaxYesForUp:   0.60,
		MinYesForDown: 0.40,
		Sensitivity:   10,
		CostBuffer:    0.01,
	}
}

// LagStrategy 动量-赔率滞后检测：现货已确认偏离 strike，
// 但 venue 报价仍停留在中性区间，滞后即机会。
type LagStrategy struct {
	cfg      LagStrategyConfig
	detector *MomentumDetector
}

// NewLagStrategy 创建 momentum-lag 策略。
func NewLagStrategy(cfg LagStrategyConfig) *LagStrategy {
	return &LagStrategy{cfg: cfg, detector: NewMomentumDetector(cfg.Momentum)}
}

func (s *LagStrategy) Name() string { return "momentum_lag" }

// OnTick 维护动量窗口。
func (s *LagStrategy) OnTick(ts time.Time, price float64) {
	s.detector.Update(ts, price)
}

// Detect 比较预期报价与实际报价。
// 预期报价 = 0.5 + Sensitivity × 偏离百分比（线性近似）。
func (s *LagStrategy) Detect(ctx DetectContext) (Candidate, bool, error) {
	mom, ok := s.detector.Detect(ctx.Market.Strike)
	if !ok {
		return Candidate{}, false, nil
	}
	if ctx.Book == nil {
		return Candidate{}, false, nil
	}
	yesAsk, ok := ctx.Book.BestAsk()
	if !ok {
		return Candidate{}, false, nil
	}

	shift := s.cfg.Sensitivity * mom.MovePct
	if shift > 0.49 {
		shift = 0.49
	}

	var side Side
	var lag, fair, price float64
	switch mom.Direction {
	case MomentumUp:
		if yesAsk >= s.cfg.MaxYesForUp {
			return Candidate{}, false, nil // odds 已反应
		}
		expectedYes := 0.5 + shift
		side, fair, price = SideYes, expectedYes, yesAsk
		lag = expectedYes - yesAsk
	case MomentumDown:
		if yesAsk <= s.cfg.MinYesForDown {
			return Candidate{}, false, nil
		}
		expectedYes := 0.5 - shift
		// NO 的隐含买入价为 1−YES 卖价，预期 NO 价为 1−预期 YES
		side, fair, price = SideNo, 1-expectedYes, 1-yesAsk
		lag = yesAsk - expectedYes
	default:
		return Candidate{}, false, nil
	}

	if lag < s.cfg.MinLag {
		return Candidate{}, false, nil
	}

	adjusted := lag - s.cfg.CostBuffer
	if adjusted <= 0 {
		return Candidate{}, false, nil
	}

	// 置信度：滞后越大越可信，20 cents 封顶，与动量持续时长合成。
	lagConf := lag / 0.20
	if lagConf > 1 {
		lagConf = 1
	}
	holdConf := float64(ctx.Now.Sub(mom.Since)) / float64(2*s.cfg.Momentum.Confirmation)
	if holdConf > 1 {
		holdConf = 1
	}

	return Candidate{
		Side:         side,
		FairValue:    fair,
		MarketPrice:  price,
		RawEdge:      lag,
		AdjustedEdge: adjusted,
		Confidence:   (lagConf + holdConf) / 2,
		Reason:       ReasonMomentumLag,
	}, true, nil
}
