package engine

import (
	"math"
	"testing"
	"time"

	"poly-hft-go/execution"
	"poly-hft-go/infrastructure/logger"
	"poly-hft-go/infrastructure/monitor"
	"poly-hft-go/market"
	"poly-hft-go/model"
	"poly-hft-go/position"
	"poly-hft-go/risk"
	"poly-hft-go/signal"
	"poly-hft-go/sizing"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	eng    *Engine
	sched  *execution.SimScheduler
	ledger *risk.Ledger
	mkt    market.Market
}

func newHarness(t *testing.T, bankroll float64, ddCfg risk.DrawdownConfig) *harness {
	t.Helper()
	return newHarnessWithGate(t, bankroll, ddCfg,
		risk.GateConfig{MaxPositionPct: 0.05, MaxConcurrent: 3, MaxExposurePct: 0.20})
}

func newHarnessWithGate(t *testing.T, bankroll float64, ddCfg risk.DrawdownConfig, gate risk.GateConfig) *harness {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	sched := execution.NewSimScheduler(t0)
	dd := risk.NewDrawdownMonitor(ddCfg, bankroll, &risk.FixedClock{T: t0})
	ledger := risk.NewLedger(risk.NewGate(gate), dd, position.NewTracker(), bankroll)

	deps := Deps{
		Log:     log,
		Metrics: monitor.New(monitor.DefaultConfig()),
		Vol:     model.NewVolatilityEstimator(30*time.Minute, 2),
		Detector: signal.NewDetector(
			signal.NewEdgeStrategy(signal.EdgeStrategyConfig{}),
			signal.NewChain(signal.FilterConfig{MinEdge: 0.01, MinLiquidity: 5}),
		),
		Selector: execution.NewSelector(execution.SelectorConfig{
			LowThreshold: 0.01, HighThreshold: 0.03, TickSize: 0.01,
		}),
		Sizer:   sizing.NewKellySizer(sizing.KellyConfig{Fraction: 0.25, MaxBankrollPct: 0.01}),
		Ledger:  ledger,
		Sched:   sched,
		Tracker: market.NewTracker(time.Minute),
	}
	eng := New(Config{
		Symbol:  "BTCUSDT",
		FeeRate: 0.001,
		Queue:   execution.QueueConfig{TakerDelay: time.Second, MakerTimeout: time.Minute},
	}, deps)

	mkt := market.Market{
		ConditionID: "cond-1",
		YesTokenID:  "yes-1",
		NoTokenID:   "no-1",
		Strike:      95000,
		OpenTime:    t0.Add(-5 * time.Minute),
		CloseTime:   t0.Add(10 * time.Minute),
	}
	return &harness{eng: eng, sched: sched, ledger: ledger, mkt: mkt}
}

func (h *harness) feedTicks(prices ...float64) {
	for i, p := range prices {
		h.eng.OnPriceTick(market.PriceTick{
			Symbol:     "BTCUSDT",
			Price:      p,
			ExchangeTS: t0.Add(time.Duration(i) * time.Second),
			ReceivedTS: t0.Add(time.Duration(i) * time.Second),
		})
	}
}

func yesBook(ask, size float64, ts time.Time) *market.BookSnapshot {
	return &market.BookSnapshot{
		TokenID:   "yes-1",
		Bids:      []market.PriceLevel{{Price: ask - 0.03, Size: size}},
		Asks:      []market.PriceLevel{{Price: ask, Size: size}},
		UpdatedAt: ts,
	}
}

func TestEngine_FullPipeline_TakerFillToSettlement(t *testing.T) {
	h := newHarness(t, 500, risk.DrawdownConfig{MaxDrawdownPct: 0.50})
	h.eng.OnMarketOpen(h.mkt)

	// 现货深度高于 strike，波动率就绪
	h.feedTicks(95800, 95815, 95790, 95820)
	h.eng.OnBook(yesBook(0.52, 500, t0.Add(4*time.Second)))

	st, ok := h.eng.State("cond-1")
	if !ok {
		t.Fatal("market must be tracked")
	}
	if st != StateAwaitingFill {
		t.Fatalf("state = %s, want AWAITING_FILL (taker submitted)", st)
	}

	// 吃单延迟 1s：推进调度器产生成交
	h.sched.Advance(t0.Add(10 * time.Second))
	st, _ = h.eng.State("cond-1")
	if st != StatePositionOpen {
		t.Fatalf("state = %s, want POSITION_OPEN", st)
	}
	if h.ledger.OpenCount() != 1 {
		t.Fatalf("open positions = %d, want 1", h.ledger.OpenCount())
	}
	// Kelly 封顶 1% × 500 = 5 美元，按 0.52 换算份额
	wantShares := 5.0 / 0.52
	if got := h.ledger.Exposure(); math.Abs(got-wantShares*0.52) > 1e-6 {
		t.Errorf("exposure = %f, want %f", got, 5.0)
	}

	// 收盘时现货高于 strike：YES 胜
	h.eng.OnMarketClose("cond-1", h.mkt.CloseTime)
	if h.ledger.OpenCount() != 0 {
		t.Fatalf("open positions after settle = %d, want 0", h.ledger.OpenCount())
	}
	if got := h.ledger.Realized(); got <= 0 {
		t.Errorf("realized = %f, want positive (won settlement)", got)
	}
	if _, ok := h.eng.State("cond-1"); ok {
		t.Error("settled market must be dropped")
	}
}

func TestEngine_RejectedSignalReturnsToIdle(t *testing.T) {
	h := newHarness(t, 500, risk.DrawdownConfig{})
	h.eng.OnMarketOpen(h.mkt)

	h.feedTicks(95800, 95815, 95790, 95820)
	// 顶档只有 1 份：过滤链按流动性拒绝
	h.eng.OnBook(yesBook(0.52, 1, t0.Add(4*time.Second)))

	st, _ := h.eng.State("cond-1")
	if st != StateIdle {
		t.Fatalf("state = %s, want IDLE after reject", st)
	}
	if h.ledger.OpenCount() != 0 {
		t.Error("rejected signal must not open a position")
	}
}

func TestEngine_RiskRejectionReturnsToIdleAndKeepsTrading(t *testing.T) {
	// 单笔上限 0.001×500=0.5 美元，任何候选都被风控拒绝
	h := newHarnessWithGate(t, 500, risk.DrawdownConfig{},
		risk.GateConfig{MaxPositionPct: 0.001})
	h.eng.OnMarketOpen(h.mkt)

	h.feedTicks(95800, 95815, 95790, 95820)
	h.eng.OnBook(yesBook(0.52, 500, t0.Add(4*time.Second)))

	st, _ := h.eng.State("cond-1")
	if st != StateIdle {
		t.Fatalf("after risk rejection market must return to IDLE, state = %s", st)
	}
	if h.ledger.OpenCount() != 0 {
		t.Fatal("risk-rejected candidate must not open a position")
	}

	// 市场没有被卡死：后续事件仍然走完整管道
	for i := 5; i < 10; i++ {
		h.eng.OnPriceTick(market.PriceTick{
			Symbol: "BTCUSDT", Price: 95820,
			ExchangeTS: t0.Add(time.Duration(i) * time.Second),
			ReceivedTS: t0.Add(time.Duration(i) * time.Second),
		})
		st, _ = h.eng.State("cond-1")
		if st != StateIdle {
			t.Fatalf("tick %d: state = %s, want IDLE", i, st)
		}
	}
}

func TestEngine_NotReadyVolatilityNoSignal(t *testing.T) {
	h := newHarness(t, 500, risk.DrawdownConfig{})
	h.eng.OnMarketOpen(h.mkt)

	// 单个 tick：波动率未就绪，降级为无信号
	h.feedTicks(95800)
	h.eng.OnBook(yesBook(0.52, 500, t0.Add(time.Second)))

	st, _ := h.eng.State("cond-1")
	if st != StateIdle {
		t.Fatalf("state = %s, want IDLE", st)
	}
}

func TestEngine_FlatPricesNoSignal(t *testing.T) {
	h := newHarness(t, 500, risk.DrawdownConfig{})
	h.eng.OnMarketOpen(h.mkt)

	// 现货纹丝不动：σ=0，不可驱动 GBM，与样本不足同等降级为无信号
	h.feedTicks(95800, 95800, 95800, 95800)
	h.eng.OnBook(yesBook(0.52, 500, t0.Add(4*time.Second)))

	st, _ := h.eng.State("cond-1")
	if st != StateIdle {
		t.Fatalf("state = %s, want IDLE", st)
	}
	if got := h.ledger.OpenCount(); got != 0 {
		t.Fatalf("open positions = %d, want 0", got)
	}
}

func TestEngine_CrossedBookIgnored(t *testing.T) {
	h := newHarness(t, 500, risk.DrawdownConfig{})
	h.eng.OnMarketOpen(h.mkt)
	h.feedTicks(95800, 95815, 95790, 95820)

	crossed := &market.BookSnapshot{
		TokenID:   "yes-1",
		Bids:      []market.PriceLevel{{Price: 0.55, Size: 100}},
		Asks:      []market.PriceLevel{{Price: 0.52, Size: 100}},
		UpdatedAt: t0.Add(4 * time.Second),
	}
	h.eng.OnBook(crossed)

	st, _ := h.eng.State("cond-1")
	if st != StateIdle {
		t.Fatalf("crossed book must degrade to no signal, state = %s", st)
	}
}

func TestEngine_DuplicateTicksIdempotent(t *testing.T) {
	h := newHarness(t, 500, risk.DrawdownConfig{})
	h.eng.OnMarketOpen(h.mkt)

	tick := market.PriceTick{Symbol: "BTCUSDT", Price: 95800, ExchangeTS: t0, ReceivedTS: t0}
	h.eng.OnPriceTick(tick)
	h.eng.OnPriceTick(tick)
	h.eng.OnPriceTick(tick)

	if got := h.eng.deps.Vol.SampleCount(); got != 1 {
		t.Fatalf("volatility samples = %d, want 1 (duplicates dropped)", got)
	}
}

func TestEngine_HaltBlocksNewOrders(t *testing.T) {
	h := newHarness(t, 500, risk.DrawdownConfig{MaxDrawdownPct: 0.001})
	h.eng.OnMarketOpen(h.mkt)

	h.feedTicks(95800, 95815, 95790, 95820)
	h.eng.OnBook(yesBook(0.52, 500, t0.Add(4*time.Second)))
	h.sched.Advance(t0.Add(10 * time.Second))
	if h.ledger.OpenCount() != 1 {
		t.Fatal("expected an open position before the losing settlement")
	}

	// 现货跌破 strike 后收盘：YES 仓位亏损，触发回撤熔断
	h.eng.OnPriceTick(market.PriceTick{
		Symbol: "BTCUSDT", Price: 94000,
		ExchangeTS: t0.Add(20 * time.Second), ReceivedTS: t0.Add(20 * time.Second),
	})
	h.eng.OnMarketClose("cond-1", h.mkt.CloseTime)
	if h.ledger.Halted() != risk.HaltMaxDrawdown {
		t.Fatalf("halt = %q, want MAX_DRAWDOWN", h.ledger.Halted())
	}

	// 新市场有同样的机会，但熔断抑制下单
	mkt2 := h.mkt
	mkt2.ConditionID = "cond-2"
	mkt2.YesTokenID = "yes-2"
	mkt2.NoTokenID = "no-2"
	h.eng.OnMarketOpen(mkt2)
	h.eng.OnPriceTick(market.PriceTick{
		Symbol: "BTCUSDT", Price: 95820,
		ExchangeTS: t0.Add(30 * time.Second), ReceivedTS: t0.Add(30 * time.Second),
	})
	book2 := yesBook(0.52, 500, t0.Add(31*time.Second))
	book2.TokenID = "yes-2"
	h.eng.OnBook(book2)

	st, _ := h.eng.State("cond-2")
	if st != StateIdle {
		t.Fatalf("state = %s, want IDLE (halt blocks submission)", st)
	}
	if h.ledger.OpenCount() != 0 {
		t.Error("no position may open while halted")
	}

	// 手动复位后恢复
	h.eng.ResetHalt()
	if h.ledger.Halted() != risk.HaltNone {
		t.Fatal("reset must clear the halt")
	}
}

func TestEngine_CloseVoidsInFlightOrders(t *testing.T) {
	h := newHarness(t, 500, risk.DrawdownConfig{})
	h.eng.OnMarketOpen(h.mkt)

	h.feedTicks(95800, 95815, 95790, 95820)
	h.eng.OnBook(yesBook(0.52, 500, t0.Add(4*time.Second)))
	if st, _ := h.eng.State("cond-1"); st != StateAwaitingFill {
		t.Fatalf("state = %s, want AWAITING_FILL", st)
	}

	// 吃单延迟未到先收盘：该订单不得再开仓，预留必须退回
	h.eng.OnMarketClose("cond-1", h.mkt.CloseTime)
	h.sched.Advance(t0.Add(10 * time.Second))

	if h.ledger.OpenCount() != 0 {
		t.Fatalf("open positions = %d, want 0 (market closed before execution)", h.ledger.OpenCount())
	}
	if got := h.ledger.Equity(); math.Abs(got-500) > 1e-9 {
		t.Errorf("equity = %f, want 500 (no leaked reservation or ghost position)", got)
	}
	// 额度完整退回，后续市场仍可满额下单
	if err := h.ledger.Reserve(25); err != nil {
		t.Errorf("reserve after close: %v", err)
	}
}

func TestEngine_NoSideUsesImpliedBook(t *testing.T) {
	h := newHarness(t, 500, risk.DrawdownConfig{})
	h.eng.OnMarketOpen(h.mkt)

	// 现货远低于 strike 而 YES 卖价仍 0.48：NO 侧优势，合成 NO 盘口执行
	h.feedTicks(94200, 94215, 94190, 94220)
	h.eng.OnBook(yesBook(0.48, 500, t0.Add(4*time.Second)))

	st, _ := h.eng.State("cond-1")
	if st != StateAwaitingFill {
		t.Fatalf("state = %s, want AWAITING_FILL", st)
	}
	h.sched.Advance(t0.Add(10 * time.Second))
	if h.ledger.OpenCount() != 1 {
		t.Fatal("NO-side position must open via the implied book")
	}
	for _, cp := range h.ledger.Closed() {
		_ = cp
	}
}
