package signal

import "time"

// FilterConfig 过滤链阈值。一次运行期间不可变。
type FilterConfig struct {
	MinEdge          float64       // 调整后优势下限
	MaxEdge          float64       // 调整后优势上限（脏数据保护）
	MinTimeSinceOpen time.Duration // 避开开盘噪音
	MinTimeToExpiry  time.Duration // 距结算太近不做
	MaxTimeToExpiry  time.Duration // 距结算太远不做
	MinLiquidity     float64       // 目标价位可用流动性下限
	MinVolatility    float64       // 年化波动率合理区间
	MaxVolatility    float64
	MaxPositions     int // 并发持仓上限（过滤层提前挡掉，风控层仍会复查）
}

// FilterInput 过滤链评估一个候选所需的上下文。
type FilterInput struct {
	Candidate          Candidate
	TimeSinceOpen      time.Duration
	TimeToExpiry       time.Duration
	AvailableLiquidity float64 // 目标价位的可用量
	Volatility         float64 // 当前年化波动率估计
	OpenPositions      int
}

// Filter 单个独立谓词：通过返回 true。
type Filter struct {
	Reason RejectReason
	Pass   func(FilterConfig, FilterInput) bool
}

// Chain 固定顺序的过滤链。
// 评估顺序是对外可观测的契约（决定日志里报哪个 RejectReason），
// 固定为：maxPositions, minEdge, maxEdge, tooSoonAfterOpen,
// tooCloseToExpiry, tooFarFromExpiry, minLiquidity, volatilityRange。
type Chain struct {
	cfg     FilterConfig
	filters []Filter
}

// NewChain 按固定顺序装配过滤链。
func NewChain(cfg FilterConfig) *Chain {
	return &Chain{
		cfg: cfg,
		filters: []Filter{
			{RejectMaxPositionsReached, func(c FilterConfig, in FilterInput) bool {
				return c.MaxPositions <= 0 || in.OpenPositions < c.MaxPositions
			}},
			{RejectEdgeTooSmall, func(c FilterConfig, in FilterInput) bool {
				return in.Candidate.AdjustedEdge >= c.MinEdge
			}},
			{RejectEdgeTooLarge, func(c FilterConfig, in FilterInput) bool {
				return c.MaxEdge <= 0 || in.Candidate.AdjustedEdge <= c.MaxEdge
			}},
			{RejectTooSoonAfterOpen, func(c FilterConfig, in FilterInput) bool {
				return in.TimeSinceOpen >= c.MinTimeSinceOpen
			}},
			{RejectTooCloseToExpiry, func(c FilterConfig, in FilterInput) bool {
				return in.TimeToExpiry >= c.MinTimeToExpiry
			}},
			{RejectTooFarFromExpiry, func(c FilterConfig, in FilterInput) bool {
				return c.MaxTimeToExpiry <= 0 || in.TimeToExpiry <= c.MaxTimeToExpiry
			}},
			{RejectInsufficientLiquidity, func(c FilterConfig, in FilterInput) bool {
				return in.AvailableLiquidity >= c.MinLiquidity
			}},
			{RejectVolatilityOutOfRange, func(c FilterConfig, in FilterInput) bool {
				if c.MinVolatility > 0 && in.Volatility < c.MinVolatility {
					return false
				}
				return c.MaxVolatility <= 0 || in.Volatility <= c.MaxVolatility
			}},
		},
	}
}

// Apply 评估全部过滤器，按装配顺序返回第一个失败原因。
// 全部通过时 ok=true。
func (ch *Chain) Apply(in FilterInput) (RejectReason, bool) {
	reason := RejectReason("")
	for _, f := range ch.filters {
		if !f.Pass(ch.cfg, in) && reason == "" {
			reason = f.Reason
		}
	}
	if reason != "" {
		return reason, false
	}
	return "", true
}

// Order 返回过滤器的固定评估顺序，供日志/文档使用。
func (ch *Chain) Order() []RejectReason {
	out := make([]RejectReason, len(ch.filters))
	for i, f := range ch.filters {
		out[i] = f.Reason
	}
	return out
}
