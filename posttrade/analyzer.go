package posttrade

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"poly-hft-go/execution"
)

// QuoteSource 返回某个 token 当前的中间价。
type QuoteSource func(tokenID string) (float64, bool)

// FillRecord 一笔成交及其后续报价采样。
type FillRecord struct {
	TokenID   string
	FillPrice float64
	FillTime  time.Time
	Mark1s    float64
	Mark5s    float64
	has1s     bool
	has5s     bool
}

// Stats 成交后报价漂移的汇总。本管线只有买方向，
// markout = (之后报价 − 成交价) / 成交价，负值意味着买贵了。
type Stats struct {
	TotalFills           int
	AnalyzedFills        int // 两个采样点都拿到的成交
	AvgMarkout1s         float64
	AvgMarkout5s         float64
	AdverseSelectionRate float64 // 5s markout 为负的占比
}

// Analyzer 对每笔成交在 1s 与 5s 后采样报价，衡量逆向选择。
// 采样走调度器，回测里由模拟时钟驱动，与实盘路径一致。
type Analyzer struct {
	mu     sync.Mutex
	sched  execution.Scheduler
	quotes QuoteSource
	fills  map[uuid.UUID]*FillRecord
}

func NewAnalyzer(sched execution.Scheduler, quotes QuoteSource) *Analyzer {
	return &Analyzer{
		sched:  sched,
		quotes: quotes,
		fills:  make(map[uuid.UUID]*FillRecord),
	}
}

// OnFill 登记一笔成交并安排两次报价采样。
func (a *Analyzer) OnFill(orderID uuid.UUID, tokenID string, price float64, ts time.Time) {
	a.mu.Lock()
	a.fills[orderID] = &FillRecord{
		TokenID:   tokenID,
		FillPrice: price,
		FillTime:  ts,
	}
	a.mu.Unlock()

	a.sched.Schedule(time.Second, func() { a.mark(orderID, false) })
	a.sched.Schedule(5*time.Second, func() { a.mark(orderID, true) })
}

func (a *Analyzer) mark(orderID uuid.UUID, late bool) {
	a.mu.Lock()
	rec, ok := a.fills[orderID]
	a.mu.Unlock()
	if !ok {
		return
	}
	mid, ok := a.quotes(rec.TokenID)
	if !ok {
		return
	}
	a.mu.Lock()
	if late {
		rec.Mark5s = mid
		rec.has5s = true
	} else {
		rec.Mark1s = mid
		rec.has1s = true
	}
	a.mu.Unlock()
}

// Stats 计算当前汇总。
func (a *Analyzer) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := Stats{TotalFills: len(a.fills)}
	var sum1s, sum5s float64
	var adverse int
	for _, rec := range a.fills {
		if !rec.has1s || !rec.has5s || rec.FillPrice <= 0 {
			continue
		}
		stats.AnalyzedFills++
		m1 := (rec.Mark1s - rec.FillPrice) / rec.FillPrice
		m5 := (rec.Mark5s - rec.FillPrice) / rec.FillPrice
		sum1s += m1
		sum5s += m5
		if m5 < 0 {
			adverse++
		}
	}
	if stats.AnalyzedFills > 0 {
		stats.AvgMarkout1s = sum1s / float64(stats.AnalyzedFills)
		stats.AvgMarkout5s = sum5s / float64(stats.AnalyzedFills)
		stats.AdverseSelectionRate = float64(adverse) / float64(stats.AnalyzedFills)
	}
	return stats
}

// Record 返回指定成交的记录副本，测试用。
func (a *Analyzer) Record(orderID uuid.UUID) (FillRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.fills[orderID]
	if !ok {
		return FillRecord{}, false
	}
	return *rec, true
}
