package gateway

import (
	"context"
	"sync"
	"time"
)

// ConnectThrottle 限制重连/重订阅频率，避免触发 CLOB 端限流封禁。
// 令牌桶：burst 允许的突发重连次数，之后按 rate（次/秒）补充。
type ConnectThrottle struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

// NewConnectThrottle 创建限速器。rate、burst 非法时回退到 1。
func NewConnectThrottle(rate float64, burst int) *ConnectThrottle {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &ConnectThrottle{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Wait 取一枚令牌，不足则阻塞到补满；ctx 取消立即返回其错误。
func (t *ConnectThrottle) Wait(ctx context.Context) error {
	t.mu.Lock()
	now := time.Now()
	t.tokens += now.Sub(t.last).Seconds() * t.rate
	if t.tokens > t.burst {
		t.tokens = t.burst
	}
	t.last = now

	if t.tokens >= 1 {
		t.tokens--
		t.mu.Unlock()
		return nil
	}
	wait := time.Duration((1 - t.tokens) / t.rate * float64(time.Second))
	t.tokens = 0
	t.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
