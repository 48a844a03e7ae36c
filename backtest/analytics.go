package backtest

import (
	"fmt"
	"math"
	"strings"

	"poly-hft-go/position"
)

// Summary 回测汇总指标。
type Summary struct {
	NetPnL         float64 // 已实现盈亏合计（已扣费）
	NetPnLPct      float64 // 相对起始权益
	WinRate        float64
	ProfitFactor   float64 // 毛利/毛损；无亏损时为 +Inf
	MaxDrawdown    float64 // 权益曲线最大回撤（绝对值）
	MaxDrawdownPct float64
	TotalTrades    int
	AvgDurationSec float64
	AvgEdge        float64 // 入场时成本调整后优势的均值
}

// Summarize 由已平仓位与权益曲线计算汇总指标。
func Summarize(closed []position.ClosedPosition, curve []EquityPoint, startEquity float64) Summary {
	var s Summary
	s.TotalTrades = len(closed)

	var wins int
	var grossProfit, grossLoss, durSum, edgeSum float64
	for _, cp := range closed {
		s.NetPnL += cp.Realized
		if cp.Realized > 0 {
			wins++
			grossProfit += cp.Realized
		} else {
			grossLoss += -cp.Realized
		}
		durSum += cp.ExitTime.Sub(cp.EntryTime).Seconds()
		edgeSum += cp.Edge
	}
	if startEquity > 0 {
		s.NetPnLPct = s.NetPnL / startEquity
	}
	if len(closed) > 0 {
		s.WinRate = float64(wins) / float64(len(closed))
		s.AvgDurationSec = durSum / float64(len(closed))
		s.AvgEdge = edgeSum / float64(len(closed))
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		s.ProfitFactor = math.Inf(1)
	}

	peak := math.Inf(-1)
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := peak - p.Equity
		if dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
			if peak > 0 {
				s.MaxDrawdownPct = dd / peak
			}
		}
	}
	return s
}

const tableRule = "══════════════════════════════════════════════════════"
const tableLine = "──────────────────────────────────────────────────────"

// FormatTable 输出 CLI 用的汇总表。
func (s Summary) FormatTable() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", tableRule)
	fmt.Fprintf(&b, "               BACKTEST RESULTS\n")
	fmt.Fprintf(&b, "%s\n\n", tableRule)
	fmt.Fprintf(&b, "PERFORMANCE\n%s\n", tableLine)
	fmt.Fprintf(&b, "Net P&L:          %+.2f (%+.2f%%)\n", s.NetPnL, s.NetPnLPct*100)
	fmt.Fprintf(&b, "Max Drawdown:     %.2f (%.2f%%)\n", s.MaxDrawdown, s.MaxDrawdownPct*100)
	fmt.Fprintf(&b, "Win Rate:         %.1f%%\n", s.WinRate*100)
	fmt.Fprintf(&b, "Profit Factor:    %.2f\n\n", s.ProfitFactor)
	fmt.Fprintf(&b, "ACTIVITY\n%s\n", tableLine)
	fmt.Fprintf(&b, "Total Trades:     %d\n", s.TotalTrades)
	fmt.Fprintf(&b, "Avg Duration:     %.0fs\n", s.AvgDurationSec)
	fmt.Fprintf(&b, "Avg Edge:         %.2f%%\n", s.AvgEdge*100)
	fmt.Fprintf(&b, "%s\n", tableRule)
	return b.String()
}
