package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
env: dev
symbol: BTCUSDT
bankroll: 500
engine:
  feeRate: 0.001
  takeProfitPct: 0.3
  stopLossPct: 0.5
volatility:
  windowSec: 1800
  minSamples: 10
strategy:
  name: edge
  edge:
    feeRate: 0.001
    slippage: 0.005
filters:
  minEdge: 0.01
  maxEdge: 0.25
  minLiquidity: 10
sizing:
  policy: kelly
  kelly:
    fraction: 0.25
    max_bankroll_pct: 0.01
selector:
  low_threshold: 0.01
  high_threshold: 0.03
  tick_size: 0.01
queue:
  takerDelayMs: 500
  makerTimeoutSec: 60
risk:
  gate:
    max_position_pct: 0.05
    max_concurrent: 3
    max_exposure_pct: 0.20
  drawdown:
    max_drawdown_pct: 0.15
    max_daily_loss_pct: 0.05
markets:
  - conditionId: cond-1
    yesTokenId: yes-1
    noTokenId: no-1
    strike: 95000
    openTime: 2025-06-01T12:00:00Z
    closeTime: 2025-06-01T12:15:00Z
gateway:
  binanceWsUrl: wss://stream.binance.com:9443/ws
  clobWsUrl: wss://ws-subscriptions-clob.polymarket.com/ws
logger:
  level: info
  format: json
monitor:
  addr: :9090
`

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "dev" || cfg.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	if cfg.Risk.Gate.MaxConcurrent != 3 {
		t.Errorf("gate.maxConcurrent = %d, want 3", cfg.Risk.Gate.MaxConcurrent)
	}
	if len(cfg.Markets) != 1 || cfg.Markets[0].Strike != 95000 {
		t.Fatalf("markets = %+v", cfg.Markets)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	t.Setenv("PH_BINANCE_WS_URL", "wss://test.binance")
	t.Setenv("PH_CLOB_WS_URL", "wss://test.clob")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.BinanceWSURL != "wss://test.binance" || cfg.Gateway.ClobWSURL != "wss://test.clob" {
		t.Fatalf("env overrides not applied: %+v", cfg.Gateway)
	}
}

func TestEngineConfig(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ec := cfg.EngineConfig()
	if ec.Queue.TakerDelay != 500*time.Millisecond {
		t.Errorf("taker delay = %s, want 500ms", ec.Queue.TakerDelay)
	}
	if ec.Queue.MakerTimeout != time.Minute {
		t.Errorf("maker timeout = %s, want 1m", ec.Queue.MakerTimeout)
	}
	if ec.FeeRate != 0.001 {
		t.Errorf("fee rate = %v", ec.FeeRate)
	}
}

func TestStrategyFor(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	strat, err := cfg.StrategyFor()
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	if strat.Name() != "edge" {
		t.Errorf("strategy name = %s, want edge", strat.Name())
	}

	cfg.Strategy.Name = "momentum"
	strat, err = cfg.StrategyFor()
	if err != nil {
		t.Fatalf("momentum strategy: %v", err)
	}
	if strat.Name() != "momentum_lag" {
		t.Errorf("strategy name = %s, want momentum_lag", strat.Name())
	}
}

func TestMarketList(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ms := cfg.MarketList()
	if len(ms) != 1 {
		t.Fatalf("markets = %d, want 1", len(ms))
	}
	if ms[0].ConditionID != "cond-1" || ms[0].NoTokenID != "no-1" {
		t.Errorf("market = %+v", ms[0])
	}
	if !ms[0].CloseTime.Equal(time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)) {
		t.Errorf("close time = %s", ms[0].CloseTime)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(AppConfig{}); err == nil {
		t.Fatal("expected error for empty config")
	}

	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"zero bankroll", func(c *AppConfig) { c.Bankroll = 0 }},
		{"bad strategy", func(c *AppConfig) { c.Strategy.Name = "oracle" }},
		{"bad sizing policy", func(c *AppConfig) { c.Sizing.Policy = "martingale" }},
		{"inverted selector", func(c *AppConfig) { c.Selector.HighThreshold = 0.001 }},
		{"drawdown pct above 1", func(c *AppConfig) { c.Risk.Drawdown.MaxDrawdownPct = 1.5 }},
		{"market window inverted", func(c *AppConfig) {
			c.Markets[0].CloseTime = c.Markets[0].OpenTime.Add(-time.Minute)
		}},
		{"too few vol samples", func(c *AppConfig) { c.Volatility.MinSamples = 1 }},
	}
	for _, tc := range cases {
		bad := cfg
		bad.Markets = append([]MarketSection(nil), cfg.Markets...)
		tc.mutate(&bad)
		if err := Validate(bad); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
