package execution

import "poly-hft-go/market"

// SelectorConfig 订单类型阈值。LowThreshold <= edge < HighThreshold 走挂单，
// edge >= HighThreshold 走吃单，低于 LowThreshold 不下单。
type SelectorConfig struct {
	LowThreshold  float64 `yaml:"low_threshold"`
	HighThreshold float64 `yaml:"high_threshold"`
	TickSize      float64 `yaml:"tick_size"`
}

// Selector 按调整后 edge 的大小选择订单类型与价格。
type Selector struct {
	cfg SelectorConfig
}

// NewSelector 创建选择器。
func NewSelector(cfg SelectorConfig) *Selector {
	if cfg.TickSize <= 0 {
		cfg.TickSize = 0.01
	}
	return &Selector{cfg: cfg}
}

// Choose 返回订单类型与目标价。edge 不足时 ok=false，不下单。
// 挂单价取对手最优卖价内侧一个 tick；吃单直接按最优卖价扫单。
func (s *Selector) Choose(adjustedEdge float64, book *market.BookSnapshot) (OrderKind, float64, bool) {
	if book == nil || adjustedEdge < s.cfg.LowThreshold {
		return "", 0, false
	}
	ask, okAsk := book.BestAsk()
	if !okAsk {
		return "", 0, false
	}

	if adjustedEdge >= s.cfg.HighThreshold {
		return KindTaker, ask, true
	}

	price := ask - s.cfg.TickSize
	if price <= 0 {
		price = s.cfg.TickSize
	}
	return KindMaker, price, true
}
