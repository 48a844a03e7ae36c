package market

import (
	"sync"
	"time"
)

// Tracker 维护当前跟踪的市场集合。
// 市场在发现时登记，close+grace 之后由 Sweep 清除；登记后不可变。
type Tracker struct {
	mu      sync.RWMutex
	markets map[string]Market // by condition id
	byToken map[string]string // token id -> condition id
	grace   time.Duration
}

// NewTracker 创建市场注册表；grace 为结算后保留时间。
func NewTracker(grace time.Duration) *Tracker {
	return &Tracker{
		markets: make(map[string]Market),
		byToken: make(map[string]string),
		grace:   grace,
	}
}

// Add 登记一个市场；重复登记是幂等的。返回是否为新市场。
func (t *Tracker) Add(m Market) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.markets[m.ConditionID]; ok {
		return false
	}
	t.markets[m.ConditionID] = m
	t.byToken[m.YesTokenID] = m.ConditionID
	t.byToken[m.NoTokenID] = m.ConditionID
	return true
}

// Get 按 condition id 查找。
func (t *Tracker) Get(conditionID string) (Market, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.markets[conditionID]
	return m, ok
}

// ByToken 按 token id 查找所属市场。
func (t *Tracker) ByToken(tokenID string) (Market, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cid, ok := t.byToken[tokenID]
	if !ok {
		return Market{}, false
	}
	m, ok := t.markets[cid]
	return m, ok
}

// Active 返回 now 时刻处于交易窗口内的市场。
func (t *Tracker) Active(now time.Time) []Market {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Market, 0, len(t.markets))
	for _, m := range t.markets {
		if m.Active(now) {
			out = append(out, m)
		}
	}
	return out
}

// Remove 注销一个市场。
func (t *Tracker) Remove(conditionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.markets[conditionID]
	if !ok {
		return
	}
	delete(t.markets, conditionID)
	delete(t.byToken, m.YesTokenID)
	delete(t.byToken, m.NoTokenID)
}

// Sweep 清除已超过 close+grace 的市场，返回清除数量。
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for cid, m := range t.markets {
		if m.Expired(now, t.grace) {
			delete(t.markets, cid)
			delete(t.byToken, m.YesTokenID)
			delete(t.byToken, m.NoTokenID)
			n++
		}
	}
	return n
}

// Count 当前登记的市场数。
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.markets)
}
