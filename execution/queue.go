package execution

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"poly-hft-go/market"
)

// QueueConfig 成交模拟参数。
type QueueConfig struct {
	// TakerDelay 吃单的固定执行延迟，延迟内订单对盘口不可见。
	TakerDelay time.Duration `yaml:"taker_delay"`
	// MakerTimeout 挂单超时未成交即取消（可能带部分成交）。
	MakerTimeout time.Duration `yaml:"maker_timeout"`
}

// QueueResult 订单终结时的汇总，回调给上层。
type QueueResult struct {
	Order     Order
	Fills     []Fill
	Filled    float64
	Cancelled bool // true=超时/流动性不足取消（可能部分成交）
}

// QueueSimulator 排队成交模型，回测与纸面交易共用同一实现。
//
// 挂单：下单时记录该价位的在前量（ahead）。之后每次盘口更新，
// 该价位深度的减少视为他人成交/撤单，先消耗 ahead；ahead 清零后
// 剩余的减少量按序成交本单。ahead 只减不增。
// 吃单：经固定延迟后按当时盘口从最优价起逐档扫单，深度不足则
// 剩余部分取消。
type QueueSimulator struct {
	mu       sync.Mutex
	cfg      QueueConfig
	sched    Scheduler
	books    map[string]*market.BookSnapshot
	resting  map[uuid.UUID]*restingOrder
	onFill   func(Fill)
	onDone   func(QueueResult)
	lastFill time.Time
}

type restingOrder struct {
	order       Order
	ahead       float64
	filled      float64
	fills       []Fill
	levelDepth  float64 // 上次观察到的该价位深度
	cancelTimer func()
}

// NewQueueSimulator onFill 每笔成交回调一次，onDone 订单终结时回调。
// 回调在调度线程内同步执行。
func NewQueueSimulator(cfg QueueConfig, sched Scheduler, onFill func(Fill), onDone func(QueueResult)) *QueueSimulator {
	return &QueueSimulator{
		cfg:     cfg,
		sched:   sched,
		books:   make(map[string]*market.BookSnapshot),
		resting: make(map[uuid.UUID]*restingOrder),
		onFill:  onFill,
		onDone:  onDone,
	}
}

// OnBook 喂入最新盘口，驱动挂单的排队推进。
func (q *QueueSimulator) OnBook(book *market.BookSnapshot) {
	if book == nil {
		return
	}
	q.mu.Lock()
	q.books[book.TokenID] = book

	var done []QueueResult
	var fills []Fill
	for _, r := range q.resting {
		if r.order.TokenID != book.TokenID {
			continue
		}
		depth := book.DepthAt(market.SideBid, r.order.Price)
		reduction := r.levelDepth - depth
		r.levelDepth = depth
		if reduction <= 0 {
			continue
		}

		// 先消耗在前量
		if r.ahead > 0 {
			if reduction <= r.ahead {
				r.ahead -= reduction
				continue
			}
			reduction -= r.ahead
			r.ahead = 0
		}

		// 轮到本单成交
		remaining := r.order.Size - r.filled
		size := reduction
		if size > remaining {
			size = remaining
		}
		if size <= 0 {
			continue
		}
		f := q.newFillLocked(r.order.ID, r.order.Price, size, book.UpdatedAt)
		r.filled += size
		r.fills = append(r.fills, f)
		fills = append(fills, f)
		if r.filled >= r.order.Size {
			done = append(done, q.finishLocked(r, false))
		}
	}
	q.mu.Unlock()

	for _, f := range fills {
		q.emitFill(f)
	}
	for _, res := range done {
		q.emitDone(res)
	}
}

// Submit 提交订单。挂单立即入队，吃单在延迟后执行。
func (q *QueueSimulator) Submit(order Order) {
	if order.Kind == KindTaker {
		q.sched.Schedule(q.cfg.TakerDelay, func() { q.executeTaker(order) })
		return
	}

	q.mu.Lock()
	r := &restingOrder{order: order}
	if book := q.books[order.TokenID]; book != nil {
		r.ahead = book.DepthAt(market.SideBid, order.Price)
		r.levelDepth = r.ahead
	}
	q.resting[order.ID] = r
	if q.cfg.MakerTimeout > 0 {
		r.cancelTimer = q.sched.Schedule(q.cfg.MakerTimeout, func() { q.Cancel(order.ID) })
	}
	q.mu.Unlock()
}

// Cancel 取消一张挂单，上报已有的部分成交。
func (q *QueueSimulator) Cancel(id uuid.UUID) {
	q.mu.Lock()
	r, ok := q.resting[id]
	var res QueueResult
	if ok {
		res = q.finishLocked(r, true)
	}
	q.mu.Unlock()
	if ok {
		q.emitDone(res)
	}
}

// executeTaker 延迟结束后按最新盘口扫单。
func (q *QueueSimulator) executeTaker(order Order) {
	q.mu.Lock()
	book := q.books[order.TokenID]
	now := q.sched.Now()

	var fills []Fill
	remaining := order.Size
	if book != nil {
		for _, lvl := range book.Asks {
			if remaining <= 0 {
				break
			}
			size := lvl.Size
			if size > remaining {
				size = remaining
			}
			if size <= 0 {
				continue
			}
			fills = append(fills, q.newFillLocked(order.ID, lvl.Price, size, now))
			remaining -= size
		}
	}
	q.mu.Unlock()

	for _, f := range fills {
		q.emitFill(f)
	}
	q.emitDone(QueueResult{
		Order:     order,
		Fills:     fills,
		Filled:    order.Size - remaining,
		Cancelled: remaining > 0,
	})
}

// newFillLocked 生成成交并保证时间戳不回退。
func (q *QueueSimulator) newFillLocked(orderID uuid.UUID, price, size float64, ts time.Time) Fill {
	if ts.Before(q.lastFill) {
		ts = q.lastFill
	}
	q.lastFill = ts
	return Fill{OrderID: orderID, Price: price, Size: size, Timestamp: ts}
}

// finishLocked 摘除订单并组装结果，回调由调用方在锁外执行。
func (q *QueueSimulator) finishLocked(r *restingOrder, cancelled bool) QueueResult {
	delete(q.resting, r.order.ID)
	if r.cancelTimer != nil {
		r.cancelTimer()
	}
	return QueueResult{
		Order:     r.order,
		Fills:     r.fills,
		Filled:    r.filled,
		Cancelled: cancelled,
	}
}

func (q *QueueSimulator) emitFill(f Fill) {
	if q.onFill != nil {
		q.onFill(f)
	}
}

func (q *QueueSimulator) emitDone(res QueueResult) {
	if q.onDone != nil {
		q.onDone(res)
	}
}

// QueueState 某挂单当前的排队状态，监控用。
type QueueState struct {
	Ahead  float64
	Filled float64
}

// State 读取挂单状态。订单已终结时 ok=false。
func (q *QueueSimulator) State(id uuid.UUID) (QueueState, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.resting[id]
	if !ok {
		return QueueState{}, false
	}
	return QueueState{Ahead: r.ahead, Filled: r.filled}, true
}
