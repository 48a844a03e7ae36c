package backtest

import (
	"time"

	"poly-hft-go/engine"
	"poly-hft-go/execution"
	"poly-hft-go/position"
	"poly-hft-go/risk"
)

// EquityPoint 权益曲线上的一个采样点。
type EquityPoint struct {
	TS     time.Time
	Equity float64
}

// Result 一次回放的产出。
type Result struct {
	Summary Summary
	Closed  []position.ClosedPosition
	Curve   []EquityPoint
	Events  int
}

// Runner 驱动引擎回放一条事件流。时间完全由模拟调度器推进：
// 每条事件先把调度器拨到事件时刻（期间到期的执行延迟与撤单
// 定时器按各自的到期时间触发），再投递事件本身。
type Runner struct {
	eng    *engine.Engine
	sched  *execution.SimScheduler
	ledger *risk.Ledger
	drain  time.Duration
	start  float64
	curve  []EquityPoint
}

// NewRunner 构造回放器。drain 为流结束后继续推进的时长，
// 用于让尚未到期的 taker 延迟与 maker 超时跑完；零值取一小时。
func NewRunner(eng *engine.Engine, sched *execution.SimScheduler, ledger *risk.Ledger, drain time.Duration) *Runner {
	if drain <= 0 {
		drain = time.Hour
	}
	return &Runner{
		eng:    eng,
		sched:  sched,
		ledger: ledger,
		drain:  drain,
		start:  ledger.Equity(),
	}
}

// Run 消费整条事件流并返回汇总结果。
func (r *Runner) Run(stream *EventStream) Result {
	var (
		n    int
		last time.Time
	)
	for {
		ev, ok := stream.Next()
		if !ok {
			break
		}
		r.sched.Advance(ev.TS)
		r.dispatch(ev)
		r.sample(ev.TS)
		last = ev.TS
		n++
	}
	if n > 0 {
		r.sched.Advance(last.Add(r.drain))
		r.sample(last.Add(r.drain))
	}

	closed := r.ledger.Closed()
	return Result{
		Summary: Summarize(closed, r.curve, r.start),
		Closed:  closed,
		Curve:   r.curve,
		Events:  n,
	}
}

func (r *Runner) dispatch(ev Event) {
	switch ev.Kind {
	case KindMarketOpen:
		r.eng.OnMarketOpen(ev.Market)
	case KindMarketClose:
		r.eng.OnMarketClose(ev.ConditionID, ev.TS)
	case KindPriceTick:
		r.eng.OnPriceTick(ev.Tick)
	case KindBook:
		r.eng.OnBook(ev.Book)
	}
}

// sample 权益变动时记一个点，曲线只保留拐点。
func (r *Runner) sample(ts time.Time) {
	eq := r.ledger.Equity()
	if len(r.curve) > 0 && r.curve[len(r.curve)-1].Equity == eq {
		return
	}
	r.curve = append(r.curve, EquityPoint{TS: ts, Equity: eq})
}
