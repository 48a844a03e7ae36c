package model

import (
	"errors"
	"fmt"
	"math"
)

// FairValue 二元结果的理论概率。YesProb + NoProb 恒等于 1。
type FairValue struct {
	YesProb    float64
	NoProb     float64
	Confidence float64 // [0,1]
}

// Inputs GBM 定价模型的输入。
type Inputs struct {
	Spot          float64 // 现货价 S
	Strike        float64 // 行权价 K（开盘锁定）
	YearsToExpiry float64 // 剩余时间 T（年）
	Volatility    float64 // 年化波动率 σ
	// Liquidity 可选的流动性评分 [0,1]；<0 表示未提供。
	Liquidity float64
	// VolStdErr 波动率估计标准误，用于置信度；0 表示未提供。
	VolStdErr float64
}

var (
	// ErrInvalidVolatility σ<=0 属于上游契约破坏：波动率必须先估好且为正。
	ErrInvalidVolatility = errors.New("volatility must be positive")
	// ErrInvalidPrice S 或 K 非正。
	ErrInvalidPrice = errors.New("spot and strike must be positive")
)

// 置信度加权：波动率确定性 / 剩余时间 / 流动性。
const (
	confWeightVol       = 0.4
	confWeightTime      = 0.3
	confWeightLiquidity = 0.3
)

// Probability 计算 P(up) = Φ(d2)，d2 = (ln(S/K) − 0.5σ²T)/(σ√T)。
// T<=0 时结果确定：S>K 为 1，S<K 为 0，S=K 为 0.5。
// σ<=0 或价格非正返回错误（编程契约破坏，调用方必须修数据而不是吞掉）。
func Probability(in Inputs) (FairValue, error) {
	if in.Spot <= 0 || in.Strike <= 0 {
		return FairValue{}, fmt.Errorf("%w: spot=%.4f strike=%.4f", ErrInvalidPrice, in.Spot, in.Strike)
	}

	if in.YearsToExpiry <= 0 {
		// 到期,没有模型不确定性了
		yes := 0.5
		switch {
		case in.Spot > in.Strike:
			yes = 1
		case in.Spot < in.Strike:
			yes = 0
		}
		return FairValue{YesProb: yes, NoProb: 1 - yes, Confidence: 1}, nil
	}

	if in.Volatility <= 0 {
		return FairValue{}, fmt.Errorf("%w: sigma=%.6f", ErrInvalidVolatility, in.Volatility)
	}

	t := in.YearsToExpiry
	d2 := (math.Log(in.Spot/in.Strike) - 0.5*in.Volatility*in.Volatility*t) / (in.Volatility * math.Sqrt(t))
	yes := normCDF(d2)

	return FairValue{
		YesProb:    yes,
		NoProb:     1 - yes,
		Confidence: confidence(in),
	}, nil
}

// confidence 三项加权：波动率确定性 0.4、剩余时间 0.3、流动性 0.3。
// 各子项先截断到 [0,1] 再加权。
func confidence(in Inputs) float64 {
	// 波动率确定性：标准误相对 σ 越小越可信；未提供标准误时取中性 0.5。
	volTerm := 0.5
	if in.VolStdErr > 0 && in.Volatility > 0 {
		volTerm = 1 - in.VolStdErr/in.Volatility
	}

	// 剩余时间：越接近到期，模型输出越接近确定。以 1 小时为尺度。
	timeTerm := 1 - in.YearsToExpiry*market365/hoursScale

	// 流动性：调用方给出的 [0,1] 评分；未提供时中性。
	liqTerm := in.Liquidity
	if liqTerm < 0 {
		liqTerm = 0.5
	}

	return confWeightVol*clamp01(volTerm) +
		confWeightTime*clamp01(timeTerm) +
		confWeightLiquidity*clamp01(liqTerm)
}

const (
	market365  = 365.25 * 24 // 每年小时数
	hoursScale = 1.0
)

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// normCDF 标准正态分布函数，Abramowitz-Stegun 7.1.26 近似，误差 < 1.5e-7。
func normCDF(x float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	z := math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + p*z)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-z*z)

	return 0.5 * (1.0 + sign*y)
}
