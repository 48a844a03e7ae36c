package model

import (
	"math"
	"time"

	"poly-hft-go/market"
)

// VolatilityEstimator 基于时间窗口内的对数收益率计算年化波动率。
// 窗口外的价格点被丢弃；样本不足时 Estimate 返回 ok=false，
// 调用方必须把"未就绪"当成独立状态处理，不能当 0 波动率用。
type VolatilityEstimator struct {
	window     time.Duration
	minSamples int
	points     []pricePoint
}

type pricePoint struct {
	ts    time.Time
	price float64
}

// NewVolatilityEstimator 创建估计器；minSamples 为产生估计所需的最小价格点数。
func NewVolatilityEstimator(window time.Duration, minSamples int) *VolatilityEstimator {
	if minSamples < 2 {
		minSamples = 2
	}
	return &VolatilityEstimator{
		window:     window,
		minSamples: minSamples,
		points:     make([]pricePoint, 0, 1024),
	}
}

// Update 记录一个价格观测并丢弃窗口外的旧点。
func (v *VolatilityEstimator) Update(ts time.Time, price float64) {
	if price <= 0 {
		return
	}
	v.points = append(v.points, pricePoint{ts: ts, price: price})
	cutoff := ts.Add(-v.window)
	i := 0
	for ; i < len(v.points); i++ {
		if !v.points[i].ts.Before(cutoff) {
			break
		}
	}
	if i > 0 {
		v.points = v.points[i:]
	}
}

// Ready 判断样本是否足够。
func (v *VolatilityEstimator) Ready() bool {
	return len(v.points) >= v.minSamples
}

// Estimate 返回年化标准差。样本不足时 ok=false。
// 年化方式：对数收益率样本标准差 × sqrt(每年观测次数)，
// 观测频率按窗口内平均间隔推算。
func (v *VolatilityEstimator) Estimate() (float64, bool) {
	if !v.Ready() {
		return 0, false
	}

	returns := make([]float64, 0, len(v.points)-1)
	for i := 1; i < len(v.points); i++ {
		prev := v.points[i-1].price
		cur := v.points[i].price
		if prev > 0 && cur > 0 {
			returns = append(returns, math.Log(cur/prev))
		}
	}
	if len(returns) < 1 {
		return 0, false
	}

	n := float64(len(returns))
	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	mean := sum / n

	sumSq := 0.0
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	stdDev := math.Sqrt(sumSq / n)

	span := v.points[len(v.points)-1].ts.Sub(v.points[0].ts).Seconds()
	if span <= 0 {
		return 0, false
	}
	avgInterval := span / n
	perYear := market.SecondsPerYear / avgInterval

	return stdDev * math.Sqrt(perYear), true
}

// StandardError 波动率估计的标准误，SE ≈ σ/sqrt(2n)。用于置信度评分。
func (v *VolatilityEstimator) StandardError() (float64, bool) {
	vol, ok := v.Estimate()
	if !ok {
		return 0, false
	}
	return vol / math.Sqrt(2*float64(len(v.points))), true
}

// SampleCount 当前窗口内的价格点数。
func (v *VolatilityEstimator) SampleCount() int {
	return len(v.points)
}
