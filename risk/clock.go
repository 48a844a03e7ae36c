package risk

import "time"

// Clock 抽象时间，回测与日界测试都靠它注入。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// RealClock 实盘默认时钟，UTC。
var RealClock Clock = realClock{}

// FixedClock 测试/回测用：显式推进。
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

// Advance 推进时钟。
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
