package market

import "time"

// Market 表示一个固定周期的二元市场（例如 15 分钟 BTC up/down）。
// Strike 在开盘时锁定，之后不可变；结算价与 Strike 比较决定 Yes/No。
type Market struct {
	ConditionID string
	YesTokenID  string
	NoTokenID   string
	Strike      float64
	OpenTime    time.Time
	CloseTime   time.Time
}

// TimeToExpiry 返回距结算的剩余时间；已过期返回负值。
func (m Market) TimeToExpiry(now time.Time) time.Duration {
	return m.CloseTime.Sub(now)
}

// SinceOpen 返回开盘以来经过的时间。
func (m Market) SinceOpen(now time.Time) time.Duration {
	return now.Sub(m.OpenTime)
}

// Active 判断市场是否处于交易窗口内。
func (m Market) Active(now time.Time) bool {
	return !now.Before(m.OpenTime) && now.Before(m.CloseTime)
}

// Expired 判断市场是否已超过 close + grace，可以丢弃。
func (m Market) Expired(now time.Time, grace time.Duration) bool {
	return now.After(m.CloseTime.Add(grace))
}

// YearsToExpiry 以年为单位的剩余时间，供定价模型使用。
func (m Market) YearsToExpiry(now time.Time) float64 {
	return m.TimeToExpiry(now).Seconds() / SecondsPerYear
}

// SecondsPerYear 365.25 天。
const SecondsPerYear = 365.25 * 24 * 60 * 60
