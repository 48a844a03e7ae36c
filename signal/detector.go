package signal

import (
	"time"

	"poly-hft-go/market"
	"poly-hft-go/model"
)

// DetectContext 一次检测所需的全部市场状态，由编排器在事件到达时组装。
type DetectContext struct {
	Market        market.Market
	Spot          float64
	Volatility    float64
	VolStdErr     float64
	Book          *market.BookSnapshot
	OpenPositions int
	Now           time.Time
}

// Strategy 检测策略：从市场状态产出一个候选（方向+幅度）。
// 两种实现互斥可换：edge 策略（公允值 vs 报价）与 momentum-lag 策略，
// 由配置选择，阈值互不混用。
type Strategy interface {
	// Name 策略名，用于配置选择与日志。
	Name() string
	// OnTick 喂入现货价格，供有状态策略（动量窗口）维护内部状态。
	OnTick(ts time.Time, price float64)
	// Detect 产出候选；无机会时 ok=false。错误仅用于上游契约破坏。
	Detect(ctx DetectContext) (Candidate, bool, error)
}

// Detector 把策略输出接入过滤链，产出最终 Signal 或拒绝原因。
type Detector struct {
	strategy Strategy
	chain    *Chain
}

// NewDetector 组装检测器。
func NewDetector(strategy Strategy, chain *Chain) *Detector {
	return &Detector{strategy: strategy, chain: chain}
}

// OnTick 转发给策略。
func (d *Detector) OnTick(ts time.Time, price float64) {
	d.strategy.OnTick(ts, price)
}

// Detect 运行策略与过滤链。
// 返回值：有信号时 sig 有效；被拒时 reject 非空；error 表示契约破坏。
func (d *Detector) Detect(ctx DetectContext) (Signal, RejectReason, error) {
	cand, ok, err := d.strategy.Detect(ctx)
	if err != nil {
		return Signal{}, "", err
	}
	if !ok {
		return Signal{}, RejectNoEdge, nil
	}

	// 流动性量在被买入的一侧：NO 价 p 由对侧 YES 卖价 1−p 的深度背书
	liquidity := 0.0
	if ctx.Book != nil {
		price := cand.MarketPrice
		if cand.Side == SideNo {
			price = 1 - price
		}
		liquidity = ctx.Book.AskLiquidityUpTo(price)
	}

	in := FilterInput{
		Candidate:          cand,
		TimeSinceOpen:      ctx.Market.SinceOpen(ctx.Now),
		TimeToExpiry:       ctx.Market.TimeToExpiry(ctx.Now),
		AvailableLiquidity: liquidity,
		Volatility:         ctx.Volatility,
		OpenPositions:      ctx.OpenPositions,
	}
	if reason, pass := d.chain.Apply(in); !pass {
		return Signal{}, reason, nil
	}

	sig := New(ctx.Market, cand.Side, cand.FairValue, cand.MarketPrice,
		cand.AdjustedEdge, cand.Confidence, cand.Reason, ctx.Now)
	return sig, "", nil
}

// EdgeStrategyConfig edge 策略的成本参数。
type EdgeStrategyConfig struct {
	FeeRate     float64 // venue 费率
	Slippage    float64 // 滑点估计
	DecayBuffer float64 // 信号传播延迟带来的衰减缓冲
	// PostOpenWindow 开盘后多长时间内把信号归因为 post-open lag。
	PostOpenWindow time.Duration
	// DivergenceEdge raw edge 超过该值归因为 spot divergence。
	DivergenceEdge float64
}

// EdgeStrategy 公允值减报价的经典 edge 检测。
// 同时评估 YES（按最优卖价）与 NO（按 1−卖价 的隐含价），取优势更大的一侧。
type EdgeStrategy struct {
	cfg EdgeStrategyConfig
}

// NewEdgeStrategy 创建 edge 策略。
func NewEdgeStrategy(cfg EdgeStrategyConfig) *EdgeStrategy {
	if cfg.PostOpenWindow <= 0 {
		cfg.PostOpenWindow = 2 * time.Minute
	}
	if cfg.DivergenceEdge <= 0 {
		cfg.DivergenceEdge = 0.02
	}
	return &EdgeStrategy{cfg: cfg}
}

func (s *EdgeStrategy) Name() string { return "edge" }

// OnTick edge 策略无内部状态。
func (s *EdgeStrategy) OnTick(time.Time, float64) {}

// Detect 计算公允概率并比较两侧优势。
func (s *EdgeStrategy) Detect(ctx DetectContext) (Candidate, bool, error) {
	if ctx.Book == nil {
		return Candidate{}, false, nil
	}
	yesAsk, ok := ctx.Book.BestAsk()
	if !ok {
		return Candidate{}, false, nil
	}

	t := ctx.Market.YearsToExpiry(ctx.Now)
	if t <= 0 {
		return Candidate{}, false, nil
	}

	fv, err := model.Probability(model.Inputs{
		Spot:          ctx.Spot,
		Strike:        ctx.Market.Strike,
		YearsToExpiry: t,
		Volatility:    ctx.Volatility,
		VolStdErr:     ctx.VolStdErr,
		Liquidity:     bookLiquidityScore(ctx.Book),
	})
	if err != nil {
		return Candidate{}, false, err
	}

	// NO 的隐含买入价：1 − YES 卖价
	noBid := 1 - yesAsk
	yesEdge := fv.YesProb - yesAsk
	noEdge := fv.NoProb - noBid

	side, raw, fair, price := SideYes, yesEdge, fv.YesProb, yesAsk
	if noEdge > yesEdge {
		side, raw, fair, price = SideNo, noEdge, fv.NoProb, noBid
	}

	adjusted := raw - s.cfg.FeeRate - s.cfg.Slippage - s.cfg.DecayBuffer
	if adjusted <= 0 {
		return Candidate{}, false, nil
	}

	reason := ReasonVolatilityShift
	switch {
	case ctx.Market.SinceOpen(ctx.Now) < s.cfg.PostOpenWindow:
		reason = ReasonPostOpenLag
	case raw > s.cfg.DivergenceEdge:
		reason = ReasonSpotDivergence
	}

	return Candidate{
		Side:         side,
		FairValue:    fair,
		MarketPrice:  price,
		RawEdge:      raw,
		AdjustedEdge: adjusted,
		Confidence:   fv.Confidence,
		Reason:       reason,
	}, true, nil
}

// bookLiquidityScore 把盘口顶档深度粗略映射为 [0,1] 的流动性评分。
func bookLiquidityScore(b *market.BookSnapshot) float64 {
	if b == nil || len(b.Asks) == 0 {
		return 0
	}
	const fullDepth = 1000.0 // 顶档达到该量视为流动性充足
	score := b.Asks[0].Size / fullDepth
	if score > 1 {
		return 1
	}
	return score
}
