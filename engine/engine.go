package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poly-hft-go/execution"
	"poly-hft-go/infrastructure/alert"
	"poly-hft-go/infrastructure/logger"
	"poly-hft-go/infrastructure/monitor"
	"poly-hft-go/market"
	"poly-hft-go/model"
	"poly-hft-go/posttrade"
	"poly-hft-go/risk"
	"poly-hft-go/signal"
	"poly-hft-go/sizing"
)

// Config 编排器参数。
type Config struct {
	Symbol string `yaml:"symbol"` // 现货符号，例如 BTCUSDT
	// FeeRate 成交费率，按成交金额计提。
	FeeRate float64 `yaml:"fee_rate"`
	// TakeProfitPct / StopLossPct 提前离场阈值（相对建仓成本，0 关闭）。
	TakeProfitPct float64 `yaml:"take_profit_pct"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	// Queue 成交模拟参数。
	Queue execution.QueueConfig `yaml:"queue"`
}

// Deps 外部装配好的组件。
type Deps struct {
	Log      *logger.Logger
	Metrics  *monitor.Monitor
	Vol      *model.VolatilityEstimator
	Detector *signal.Detector
	Selector *execution.Selector
	Sizer    sizing.Sizer
	Ledger   *risk.Ledger
	Sched    execution.Scheduler
	Tracker  *market.Tracker
	Markout  *posttrade.Analyzer // 可选，成交后报价漂移采样
	Alerts   *alert.Manager      // 可选，熔断等高严重事件外推
}

// marketState 单个市场的管道状态。
type marketState struct {
	mkt         market.Market
	state       State
	positionIDs []uuid.UUID
}

// pendingOrder 在途订单的上下文。
type pendingOrder struct {
	conditionID string
	sig         signal.Signal
	reserved    float64
}

// Engine 把行情事件接入 检测→选单→定仓→风控→排队成交→持仓 的管道。
// 每个活跃市场一个状态机实例，同一市场内事件严格按到达顺序同步处理。
// 成交回调可能来自调度器线程（挂单超时），内部用互斥量串行化。
type Engine struct {
	mu   sync.Mutex
	cfg  Config
	deps Deps
	sm   *StateMachine

	queue   *execution.QueueSimulator
	markets map[string]*marketState         // conditionID
	active  []string                        // conditionID，开盘顺序。map 遍历无序，回放要求确定性
	byToken map[string]string               // tokenID -> conditionID
	books   map[string]*market.BookSnapshot // tokenID，真实盘口
	implied map[string]*market.BookSnapshot // tokenID，由对侧互补价合成
	pending map[uuid.UUID]*pendingOrder     // orderID
	seen    map[market.TickKey]struct{}     // tick 去重
	spot    float64
	halted  risk.HaltReason
}

// New 创建引擎并挂接成交回调。
func New(cfg Config, deps Deps) *Engine {
	e := &Engine{
		cfg:     cfg,
		deps:    deps,
		sm:      NewStateMachine(),
		markets: make(map[string]*marketState),
		byToken: make(map[string]string),
		books:   make(map[string]*market.BookSnapshot),
		implied: make(map[string]*market.BookSnapshot),
		pending: make(map[uuid.UUID]*pendingOrder),
		seen:    make(map[market.TickKey]struct{}),
	}
	e.queue = execution.NewQueueSimulator(cfg.Queue, deps.Sched, e.onFill, e.onOrderDone)
	return e
}

// OnMarketOpen 市场开盘：登记并创建状态机实例。
func (e *Engine) OnMarketOpen(m market.Market) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.deps.Tracker.Add(m) {
		return
	}
	e.markets[m.ConditionID] = &marketState{mkt: m, state: StateIdle}
	e.active = append(e.active, m.ConditionID)
	e.byToken[m.YesTokenID] = m.ConditionID
	e.byToken[m.NoTokenID] = m.ConditionID
	e.deps.Log.Info("market_open",
		zap.String("condition_id", m.ConditionID),
		zap.Float64("strike", m.Strike),
		zap.Time("close_time", m.CloseTime))
}

// OnMarketClose 市场收盘：撤掉在途订单，再按现货与 strike 的关系
// 结算全部仓位。平盘判为 NO 胜（"上涨"未发生）。
func (e *Engine) OnMarketClose(conditionID string, ts time.Time) {
	e.mu.Lock()
	if _, ok := e.markets[conditionID]; !ok {
		e.mu.Unlock()
		return
	}
	var open []uuid.UUID
	for id, p := range e.pending {
		if p.conditionID == conditionID {
			open = append(open, id)
		}
	}
	e.mu.Unlock()

	// 撤单回调会回抢引擎锁，必须在锁外。已有的部分成交先落仓，随后一并结算
	for _, id := range open {
		e.queue.Cancel(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	ms, ok := e.markets[conditionID]
	if !ok {
		return
	}
	winner := signal.SideNo
	if e.spot > ms.mkt.Strike {
		winner = signal.SideYes
	}

	closed, halt := e.deps.Ledger.SettleMarket(conditionID, winner, ts)
	for _, cp := range closed {
		e.deps.Log.LogFill("position_settled", map[string]interface{}{
			"condition_id": conditionID,
			"side":         string(cp.Side),
			"realized":     cp.Realized,
			"winner":       string(winner),
		})
	}
	if len(closed) > 0 {
		e.transition(ms, StateSettled)
		e.transition(ms, StateUpdatingBalance)
	}
	e.transition(ms, StateIdle)
	e.noteHalt(halt)
	e.publishAccount()

	delete(e.markets, conditionID)
	for i, cid := range e.active {
		if cid == conditionID {
			e.active = append(e.active[:i], e.active[i+1:]...)
			break
		}
	}
	delete(e.byToken, ms.mkt.YesTokenID)
	delete(e.byToken, ms.mkt.NoTokenID)
	delete(e.books, ms.mkt.YesTokenID)
	delete(e.books, ms.mkt.NoTokenID)
	delete(e.implied, ms.mkt.NoTokenID)
	e.deps.Tracker.Remove(conditionID)
}

// OnPriceTick 现货价格事件。重复 (symbol, ts) 幂等丢弃。
func (e *Engine) OnPriceTick(t market.PriceTick) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.Symbol != e.cfg.Symbol || t.Price <= 0 {
		return
	}
	key := t.Key()
	if _, dup := e.seen[key]; dup {
		return
	}
	e.seen[key] = struct{}{}

	e.spot = t.Price
	e.deps.Vol.Update(t.ExchangeTS, t.Price)
	e.deps.Detector.OnTick(t.ExchangeTS, t.Price)
	if vol, ok := e.deps.Vol.Estimate(); ok {
		e.deps.Metrics.UpdateMarket(t.Price, vol)
	}

	for _, cid := range e.active {
		if ms := e.markets[cid]; ms != nil {
			e.process(ms, t.ExchangeTS)
		}
	}
}

// OnBook 盘口事件：推进排队模拟、刷新持仓估值、触发该市场的管道。
func (e *Engine) OnBook(b *market.BookSnapshot) {
	if b == nil {
		return
	}
	if err := b.Validate(); err != nil {
		// 交叉盘口是坏数据，降级为本 tick 无信号
		e.deps.Log.LogError(err, map[string]interface{}{"token_id": b.TokenID})
		return
	}

	e.mu.Lock()
	e.books[b.TokenID] = b
	delete(e.implied, b.TokenID)

	// 没有真实 NO 盘口的市场由 YES 盘口合成一份，供执行层使用
	var syn *market.BookSnapshot
	if cid, ok := e.byToken[b.TokenID]; ok {
		if ms, ok := e.markets[cid]; ok && b.TokenID == ms.mkt.YesTokenID {
			if e.books[ms.mkt.NoTokenID] == nil {
				syn = impliedNoBook(b, ms.mkt.NoTokenID)
				e.implied[ms.mkt.NoTokenID] = syn
			}
		}
	}
	e.mu.Unlock()

	// 排队推进的成交回调会回抢引擎锁，必须在锁外喂
	e.queue.OnBook(b)
	if syn != nil {
		e.queue.OnBook(syn)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	conditionID, ok := e.byToken[b.TokenID]
	if !ok {
		return
	}
	ms, ok := e.markets[conditionID]
	if !ok {
		return
	}

	// YES 盘口的最优买价即持仓的可变现价
	if bid, okBid := b.BestBid(); okBid {
		side := signal.SideYes
		if b.TokenID == ms.mkt.NoTokenID {
			side = signal.SideNo
		}
		halt := e.deps.Ledger.Mark(conditionID, side, bid)
		e.noteHalt(halt)
		e.checkEarlyExit(ms, side, bid, b.UpdatedAt)
	}

	e.process(ms, b.UpdatedAt)
}

// process 管道主链：对一个触发事件同步执行到底。
func (e *Engine) process(ms *marketState, now time.Time) {
	if ms.state != StateIdle {
		return
	}
	if !ms.mkt.Active(now) {
		return
	}

	e.transition(ms, StateCalculating)
	vol, volOK := e.deps.Vol.Estimate()
	yesBook := e.books[ms.mkt.YesTokenID]
	// σ=0（窗口内价格纹丝不动）和样本不足同等对待：没有可用估计就不出信号
	if !volOK || vol <= 0 || yesBook == nil || e.spot <= 0 {
		e.transition(ms, StateIdle)
		return
	}

	e.transition(ms, StateDetecting)
	stdErr, _ := e.deps.Vol.StandardError()
	sig, reject, err := e.deps.Detector.Detect(signal.DetectContext{
		Market:        ms.mkt,
		Spot:          e.spot,
		Volatility:    vol,
		VolStdErr:     stdErr,
		Book:          yesBook,
		OpenPositions: e.deps.Ledger.OpenCount(),
		Now:           now,
	})
	if err != nil {
		// 契约破坏，大声记录
		e.deps.Log.LogError(err, map[string]interface{}{"condition_id": ms.mkt.ConditionID})
		e.transition(ms, StateIdle)
		return
	}
	if reject != "" {
		e.deps.Metrics.RecordReject(string(reject))
		e.transition(ms, StateIdle)
		return
	}
	e.deps.Metrics.RecordSignal()

	e.transition(ms, StateChoosingOrder)
	token := ms.mkt.YesTokenID
	if sig.Side == signal.SideNo {
		token = ms.mkt.NoTokenID
	}
	tokenBook := e.bookFor(token)
	kind, price, ok := e.deps.Selector.Choose(sig.AdjustedEdge, tokenBook)
	if !ok {
		e.transition(ms, StateIdle)
		return
	}

	notional := e.deps.Sizer.Size(e.deps.Ledger.Bankroll(), sig)
	shares := sizing.SharesFor(notional, price)
	if shares <= 0 {
		e.transition(ms, StateIdle)
		return
	}

	if kind == execution.KindTaker {
		e.transition(ms, StateTakerOrder)
	} else {
		e.transition(ms, StateMakerOrder)
	}

	// 每次提交前重查风控与熔断，信号时点的检查不作数
	if err := e.deps.Ledger.Reserve(notional); err != nil {
		e.deps.Metrics.RecordRiskReject(riskCause(err))
		e.deps.Log.LogRisk("order_blocked", map[string]interface{}{
			"condition_id": ms.mkt.ConditionID,
			"cause":        err.Error(),
		})
		e.transition(ms, StateIdle)
		return
	}

	ord := execution.NewOrder(sig, token, price, shares, kind, now)
	e.pending[ord.ID] = &pendingOrder{
		conditionID: ms.mkt.ConditionID,
		sig:         sig,
		reserved:    notional,
	}
	e.queue.Submit(ord)
	e.transition(ms, StateAwaitingFill)

	e.deps.Metrics.RecordOrder(string(kind))
	e.deps.Log.LogSignal("order_submitted", sig.ID.String(), map[string]interface{}{
		"condition_id": ms.mkt.ConditionID,
		"side":         string(sig.Side),
		"kind":         string(kind),
		"price":        price,
		"shares":       shares,
		"edge":         sig.AdjustedEdge,
		"reason":       string(sig.Reason),
	})
}

func (e *Engine) onFill(f execution.Fill) {
	e.deps.Metrics.RecordFill(f.Size)
}

func (e *Engine) onOrderDone(res execution.QueueResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[res.Order.ID]
	if !ok {
		return
	}
	delete(e.pending, res.Order.ID)
	ms := e.markets[p.conditionID]

	// 市场已收盘结算的在途吃单撤不掉，成交作废，退回预留
	if res.Filled <= 0 || ms == nil {
		e.deps.Ledger.Release(p.reserved)
		e.deps.Metrics.RecordCancel()
		if ms != nil {
			e.transition(ms, StateIdle)
		} else if res.Filled > 0 {
			e.deps.Log.LogRisk("fill_dropped", map[string]interface{}{
				"condition_id": p.conditionID,
				"cause":        "market closed before execution",
			})
		}
		return
	}

	avg := 0.0
	ts := res.Order.SubmittedAt
	for _, f := range res.Fills {
		avg += f.Price * f.Size
		if f.Timestamp.After(ts) {
			ts = f.Timestamp
		}
	}
	avg /= res.Filled
	fee := e.cfg.FeeRate * avg * res.Filled

	id, halt := e.deps.Ledger.Open(p.sig, avg, res.Filled, fee, p.reserved, ts)
	if ms != nil {
		e.transition(ms, StatePositionOpen)
		ms.positionIDs = append(ms.positionIDs, id)
	}
	if e.deps.Markout != nil {
		e.deps.Markout.OnFill(res.Order.ID, res.Order.TokenID, avg, ts)
	}
	if res.Cancelled {
		e.deps.Metrics.RecordCancel()
	}
	e.noteHalt(halt)
	e.publishAccount()

	e.deps.Log.LogFill("position_opened", map[string]interface{}{
		"condition_id": p.conditionID,
		"side":         string(p.sig.Side),
		"price":        avg,
		"shares":       res.Filled,
		"fee":          fee,
	})
}

// checkEarlyExit 止盈/止损：相对建仓价的比例阈值，触发即按当前买价离场。
func (e *Engine) checkEarlyExit(ms *marketState, side signal.Side, bid float64, ts time.Time) {
	if (e.cfg.TakeProfitPct <= 0 && e.cfg.StopLossPct <= 0) || len(ms.positionIDs) == 0 {
		return
	}
	kept := ms.positionIDs[:0]
	for _, id := range ms.positionIDs {
		p, ok := e.deps.Ledger.Position(id)
		if !ok {
			continue
		}
		if p.Side != side || p.EntryPrice <= 0 {
			kept = append(kept, id)
			continue
		}
		change := (bid - p.EntryPrice) / p.EntryPrice
		take := e.cfg.TakeProfitPct > 0 && change >= e.cfg.TakeProfitPct
		stop := e.cfg.StopLossPct > 0 && change <= -e.cfg.StopLossPct
		if !take && !stop {
			kept = append(kept, id)
			continue
		}

		fee := e.cfg.FeeRate * bid * p.Shares
		cp, halt, err := e.deps.Ledger.Exit(id, bid, fee, ts)
		if err != nil {
			kept = append(kept, id)
			continue
		}
		if ms.state == StatePositionOpen {
			e.transition(ms, StateEarlyExit)
			e.transition(ms, StateUpdatingBalance)
			e.transition(ms, StateIdle)
		}
		e.noteHalt(halt)
		e.publishAccount()
		e.deps.Log.LogFill("position_exited", map[string]interface{}{
			"condition_id": ms.mkt.ConditionID,
			"price":        bid,
			"realized":     cp.Realized,
			"take_profit":  take,
		})
	}
	ms.positionIDs = kept
}

// ResetHalt 手动清除熔断（控制面触发）。
func (e *Engine) ResetHalt() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deps.Ledger.ResetHalt()
	e.noteHalt(risk.HaltNone)
	e.deps.Log.Info("halt_reset")
}

// State 某市场当前管道状态（测试与监控用）。
func (e *Engine) State(conditionID string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ms, ok := e.markets[conditionID]
	if !ok {
		return "", false
	}
	return ms.state, true
}

// transition 状态推进，非法转换只记录不崩溃。
func (e *Engine) transition(ms *marketState, to State) {
	if err := e.sm.ValidateTransition(ms.state, to); err != nil {
		e.deps.Log.LogError(err, map[string]interface{}{"condition_id": ms.mkt.ConditionID})
		return
	}
	ms.state = to
}

// noteHalt 熔断状态变化时记一条高严重级日志。
func (e *Engine) noteHalt(halt risk.HaltReason) {
	if halt == e.halted {
		return
	}
	e.halted = halt
	e.deps.Metrics.SetHalted(halt != risk.HaltNone)
	if halt != risk.HaltNone {
		e.deps.Log.LogHalt(string(halt), map[string]interface{}{
			"equity": e.deps.Ledger.Equity(),
		})
		if e.deps.Alerts != nil {
			_ = e.deps.Alerts.Halt(string(halt), e.deps.Ledger.Equity(), e.deps.Ledger.Peak())
		}
	} else if e.deps.Alerts != nil {
		_ = e.deps.Alerts.HaltCleared()
	}
}

func (e *Engine) publishAccount() {
	l := e.deps.Ledger
	e.deps.Metrics.UpdateAccount(
		l.Equity(), l.Peak(), l.CurrentDrawdown(), l.DailyDrawdown(),
		l.Bankroll(), l.Exposure(), l.Realized(), l.OpenCount(),
	)
}

// bookFor 真实盘口优先，其次是合成盘口。调用方需持有 e.mu。
func (e *Engine) bookFor(token string) *market.BookSnapshot {
	if b := e.books[token]; b != nil {
		return b
	}
	return e.implied[token]
}

// MidQuote 某个 token 当前的中间价，供成交后分析采样。
func (e *Engine) MidQuote(token string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.bookFor(token)
	if b == nil {
		return 0, false
	}
	return b.Mid()
}

// impliedNoBook 没有 NO 盘口时由 YES 盘口的互补价合成。
// NO 的卖价 = 1 − YES 买价，NO 的买价 = 1 − YES 卖价。
func impliedNoBook(yes *market.BookSnapshot, noToken string) *market.BookSnapshot {
	if yes == nil {
		return nil
	}
	implied := &market.BookSnapshot{TokenID: noToken, UpdatedAt: yes.UpdatedAt}
	for _, lvl := range yes.Bids {
		implied.Asks = append(implied.Asks, market.PriceLevel{Price: 1 - lvl.Price, Size: lvl.Size})
	}
	for _, lvl := range yes.Asks {
		implied.Bids = append(implied.Bids, market.PriceLevel{Price: 1 - lvl.Price, Size: lvl.Size})
	}
	return implied
}

func riskCause(err error) string {
	switch {
	case errors.Is(err, risk.ErrTradingHalted):
		return "halted"
	case errors.Is(err, risk.ErrPositionTooLarge):
		return "position_too_large"
	case errors.Is(err, risk.ErrMaxPositions):
		return "max_positions"
	case errors.Is(err, risk.ErrMaxExposure):
		return "max_exposure"
	default:
		return "other"
	}
}
