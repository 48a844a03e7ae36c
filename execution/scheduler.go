package execution

import (
	"container/heap"
	"sync"
	"time"
)

// Scheduler 可取消的定时任务。吃单延迟与挂单超时都走这里，
// 实盘用真实计时器，回测用模拟时钟按事件时间推进。
type Scheduler interface {
	// Schedule 在 d 之后执行 fn，返回取消函数。取消后 fn 不再执行。
	Schedule(d time.Duration, fn func()) (cancel func())
	// Now 当前时间（实盘为墙钟，回测为模拟时间）。
	Now() time.Time
}

// WallScheduler 实盘调度器。
type WallScheduler struct{}

func (WallScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

func (WallScheduler) Now() time.Time { return time.Now().UTC() }

// SimScheduler 回测调度器：任务按到期时间排序，Advance 推进模拟时钟
// 并依次执行到期任务。单 goroutine 驱动，与回测事件循环同步。
type SimScheduler struct {
	mu    sync.Mutex
	now   time.Time
	tasks taskHeap
	seq   int
}

// NewSimScheduler 以起始时间创建。
func NewSimScheduler(start time.Time) *SimScheduler {
	return &SimScheduler{now: start}
}

func (s *SimScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *SimScheduler) Schedule(d time.Duration, fn func()) func() {
	s.mu.Lock()
	t := &simTask{at: s.now.Add(d), fn: fn, seq: s.seq}
	s.seq++
	heap.Push(&s.tasks, t)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

// Advance 把模拟时钟推到 to，执行途中所有到期任务（按到期顺序）。
// 时钟不回退。
func (s *SimScheduler) Advance(to time.Time) {
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 || s.tasks[0].at.After(to) {
			if to.After(s.now) {
				s.now = to
			}
			s.mu.Unlock()
			return
		}
		t := heap.Pop(&s.tasks).(*simTask)
		if t.at.After(s.now) {
			s.now = t.at
		}
		cancelled := t.cancelled
		s.mu.Unlock()
		if !cancelled {
			t.fn()
		}
	}
}

type simTask struct {
	at        time.Time
	fn        func()
	seq       int
	cancelled bool
}

type taskHeap []*simTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*simTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}
