package backtest

import (
	"container/heap"
	"sort"
	"time"

	"poly-hft-go/market"
)

// EventKind 回放事件类别。时间戳相同的事件按此序投递：
// 先市场生命周期（开盘、收盘），再现货成交，最后盘口快照。
type EventKind int

const (
	KindMarketOpen EventKind = iota
	KindMarketClose
	KindPriceTick
	KindBook
)

// Event 一条回放事件。按 Kind 只有对应字段有效。
type Event struct {
	TS          time.Time
	Kind        EventKind
	Market      market.Market        // KindMarketOpen
	ConditionID string               // KindMarketClose
	Tick        market.PriceTick     // KindPriceTick
	Book        *market.BookSnapshot // KindBook
}

// OpenEvent 市场开盘事件。
func OpenEvent(m market.Market) Event {
	return Event{TS: m.OpenTime, Kind: KindMarketOpen, Market: m}
}

// CloseEvent 市场收盘事件。
func CloseEvent(m market.Market) Event {
	return Event{TS: m.CloseTime, Kind: KindMarketClose, ConditionID: m.ConditionID}
}

// TickEvent 现货成交事件。
func TickEvent(t market.PriceTick) Event {
	return Event{TS: t.ExchangeTS, Kind: KindPriceTick, Tick: t}
}

// BookEvent 盘口快照事件。
func BookEvent(b *market.BookSnapshot) Event {
	return Event{TS: b.UpdatedAt, Kind: KindBook, Book: b}
}

// EventStream 把多路已按时间排序的事件源归并成单一非降序流。
// 同一时间戳先比 Kind，再比源的加入顺序，回放因此完全确定。
type EventStream struct {
	h cursorHeap
}

// NewEventStream 构造归并流。每个源内部会先按 (TS, Kind) 稳定排序，
// 源之间的先后由传入顺序决定。
func NewEventStream(sources ...[]Event) *EventStream {
	s := &EventStream{}
	for i, src := range sources {
		if len(src) == 0 {
			continue
		}
		events := make([]Event, len(src))
		copy(events, src)
		sort.SliceStable(events, func(a, b int) bool {
			if !events[a].TS.Equal(events[b].TS) {
				return events[a].TS.Before(events[b].TS)
			}
			return events[a].Kind < events[b].Kind
		})
		s.h = append(s.h, &cursor{events: events, src: i})
	}
	heap.Init(&s.h)
	return s
}

// Next 返回下一条事件；流结束时第二个返回值为 false。
func (s *EventStream) Next() (Event, bool) {
	if s.h.Len() == 0 {
		return Event{}, false
	}
	c := s.h[0]
	ev := c.events[c.idx]
	c.idx++
	if c.idx == len(c.events) {
		heap.Pop(&s.h)
	} else {
		heap.Fix(&s.h, 0)
	}
	return ev, true
}

type cursor struct {
	events []Event
	idx    int
	src    int
}

func (c *cursor) head() Event { return c.events[c.idx] }

type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	a, b := h[i].head(), h[j].head()
	if !a.TS.Equal(b.TS) {
		return a.TS.Before(b.TS)
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return h[i].src < h[j].src
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}
