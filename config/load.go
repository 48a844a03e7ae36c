package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"poly-hft-go/engine"
	"poly-hft-go/execution"
	"poly-hft-go/infrastructure/logger"
	"poly-hft-go/market"
	"poly-hft-go/risk"
	"poly-hft-go/signal"
	"poly-hft-go/sizing"
)

// AppConfig holds the main runtime configuration.
// 一次运行期间不可变；改参数需要重启。
type AppConfig struct {
	Env        string                   `yaml:"env"`
	Symbol     string                   `yaml:"symbol"`
	Bankroll   float64                  `yaml:"bankroll"`
	Engine     EngineSection            `yaml:"engine"`
	Volatility VolatilitySection        `yaml:"volatility"`
	Strategy   StrategySection          `yaml:"strategy"`
	Filters    FilterSection            `yaml:"filters"`
	Sizing     sizing.Config            `yaml:"sizing"`
	Selector   execution.SelectorConfig `yaml:"selector"`
	Queue      QueueSection             `yaml:"queue"`
	Risk       RiskSection              `yaml:"risk"`
	Markets    []MarketSection          `yaml:"markets"`
	Gateway    GatewaySection           `yaml:"gateway"`
	Logger     logger.Config            `yaml:"logger"`
	Monitor    MonitorSection           `yaml:"monitor"`
	Control    ControlSection           `yaml:"control"`
}

type EngineSection struct {
	FeeRate       float64 `yaml:"feeRate"`
	TakeProfitPct float64 `yaml:"takeProfitPct"`
	StopLossPct   float64 `yaml:"stopLossPct"`
}

type VolatilitySection struct {
	WindowSec  int `yaml:"windowSec"`  // 滚动窗口长度
	MinSamples int `yaml:"minSamples"` // 出估计所需的最小样本数
}

// StrategySection 选择信号策略并携带各自参数。
type StrategySection struct {
	Name     string          `yaml:"name"` // edge | momentum
	Edge     EdgeSection     `yaml:"edge"`
	Momentum MomentumSection `yaml:"momentum"`
}

type EdgeSection struct {
	FeeRate           float64 `yaml:"feeRate"`
	Slippage          float64 `yaml:"slippage"`
	DecayBuffer       float64 `yaml:"decayBuffer"`
	PostOpenWindowSec int     `yaml:"postOpenWindowSec"`
	DivergenceEdge    float64 `yaml:"divergenceEdge"`
}

type MomentumSection struct {
	WindowSec       int     `yaml:"windowSec"`
	MinMovePct      float64 `yaml:"minMovePct"`
	MaxMovePct      float64 `yaml:"maxMovePct"`
	ConfirmationSec int     `yaml:"confirmationSec"`
	MinLag          float64 `yaml:"minLag"`
	MaxYesForUp     float64 `yaml:"maxYesForUp"`
	MinYesForDown   float64 `yaml:"minYesForDown"`
	Sensitivity     float64 `yaml:"sensitivity"`
	CostBuffer      float64 `yaml:"costBuffer"`
}

type FilterSection struct {
	MinEdge             float64 `yaml:"minEdge"`
	MaxEdge             float64 `yaml:"maxEdge"`
	MinTimeSinceOpenSec int     `yaml:"minTimeSinceOpenSec"`
	MinTimeToExpirySec  int     `yaml:"minTimeToExpirySec"`
	MaxTimeToExpirySec  int     `yaml:"maxTimeToExpirySec"`
	MinLiquidity        float64 `yaml:"minLiquidity"`
	MinVolatility       float64 `yaml:"minVolatility"`
	MaxVolatility       float64 `yaml:"maxVolatility"`
	MaxPositions        int     `yaml:"maxPositions"`
}

type QueueSection struct {
	TakerDelayMs    int `yaml:"takerDelayMs"`    // 吃单执行延迟
	MakerTimeoutSec int `yaml:"makerTimeoutSec"` // 挂单未成撤单时限
}

type RiskSection struct {
	Gate     risk.GateConfig     `yaml:"gate"`
	Drawdown risk.DrawdownConfig `yaml:"drawdown"`
}

// MarketSection 一个要跟踪的二元市场。
type MarketSection struct {
	ConditionID string    `yaml:"conditionId"`
	YesTokenID  string    `yaml:"yesTokenId"`
	NoTokenID   string    `yaml:"noTokenId"`
	Strike      float64   `yaml:"strike"`
	OpenTime    time.Time `yaml:"openTime"`
	CloseTime   time.Time `yaml:"closeTime"`
}

type GatewaySection struct {
	BinanceWSURL string `yaml:"binanceWsUrl"`
	ClobWSURL    string `yaml:"clobWsUrl"`
}

type MonitorSection struct {
	Addr string `yaml:"addr"` // promhttp 监听地址，空则不开
}

type ControlSection struct {
	ResetFile string `yaml:"resetFile"` // 手动清除熔断的触发文件，空则不开
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides endpoint fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("PH_BINANCE_WS_URL"); v != "" {
		cfg.Gateway.BinanceWSURL = v
	}
	if v := os.Getenv("PH_CLOB_WS_URL"); v != "" {
		cfg.Gateway.ClobWSURL = v
	}
	return cfg, Validate(cfg)
}

// EngineConfig 组装引擎配置。
func (c AppConfig) EngineConfig() engine.Config {
	return engine.Config{
		Symbol:        c.Symbol,
		FeeRate:       c.Engine.FeeRate,
		TakeProfitPct: c.Engine.TakeProfitPct,
		StopLossPct:   c.Engine.StopLossPct,
		Queue: execution.QueueConfig{
			TakerDelay:   time.Duration(c.Queue.TakerDelayMs) * time.Millisecond,
			MakerTimeout: time.Duration(c.Queue.MakerTimeoutSec) * time.Second,
		},
	}
}

// FilterConfig 组装过滤链配置。
func (c AppConfig) FilterConfig() signal.FilterConfig {
	f := c.Filters
	return signal.FilterConfig{
		MinEdge:          f.MinEdge,
		MaxEdge:          f.MaxEdge,
		MinTimeSinceOpen: time.Duration(f.MinTimeSinceOpenSec) * time.Second,
		MinTimeToExpiry:  time.Duration(f.MinTimeToExpirySec) * time.Second,
		MaxTimeToExpiry:  time.Duration(f.MaxTimeToExpirySec) * time.Second,
		MinLiquidity:     f.MinLiquidity,
		MinVolatility:    f.MinVolatility,
		MaxVolatility:    f.MaxVolatility,
		MaxPositions:     f.MaxPositions,
	}
}

// Strategy 按 name 构造信号策略。
func (c AppConfig) StrategyFor() (signal.Strategy, error) {
	switch c.Strategy.Name {
	case "", "edge":
		e := c.Strategy.Edge
		return signal.NewEdgeStrategy(signal.EdgeStrategyConfig{
			FeeRate:        e.FeeRate,
			Slippage:       e.Slippage,
			DecayBuffer:    e.DecayBuffer,
			PostOpenWindow: time.Duration(e.PostOpenWindowSec) * time.Second,
			DivergenceEdge: e.DivergenceEdge,
		}), nil
	case "momentum":
		m := c.Strategy.Momentum
		return signal.NewLagStrategy(signal.LagStrategyConfig{
			Momentum: signal.MomentumConfig{
				Window:       time.Duration(m.WindowSec) * time.Second,
				MinMovePct:   m.MinMovePct,
				MaxMovePct:   m.MaxMovePct,
				Confirmation: time.Duration(m.ConfirmationSec) * time.Second,
			},
			MinLag:        m.MinLag,
			MaxYesForUp:   m.MaxYesForUp,
			MinYesForDown: m.MinYesForDown,
			Sensitivity:   m.Sensitivity,
			CostBuffer:    m.CostBuffer,
		}), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", c.Strategy.Name)
	}
}

// VolWindow 波动率窗口时长。
func (c AppConfig) VolWindow() time.Duration {
	return time.Duration(c.Volatility.WindowSec) * time.Second
}

// MarketList 转换为领域市场对象。
func (c AppConfig) MarketList() []market.Market {
	out := make([]market.Market, 0, len(c.Markets))
	for _, m := range c.Markets {
		out = append(out, market.Market{
			ConditionID: m.ConditionID,
			YesTokenID:  m.YesTokenID,
			NoTokenID:   m.NoTokenID,
			Strike:      m.Strike,
			OpenTime:    m.OpenTime,
			CloseTime:   m.CloseTime,
		})
	}
	return out
}
