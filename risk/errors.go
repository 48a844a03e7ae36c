package risk

import "errors"

// RiskError 家族：信号本身有效但不能成交时返回，候选订单直接丢弃。
// 与 signal.RejectReason（检测期拒绝）和 HaltReason（进程级熔断）互不重叠。
var (
	ErrPositionTooLarge = errors.New("position size exceeds per-trade limit")
	ErrMaxPositions     = errors.New("max concurrent positions reached")
	ErrMaxExposure      = errors.New("total exposure limit exceeded")
	ErrTradingHalted    = errors.New("trading halted")
)
