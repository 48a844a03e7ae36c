package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 信号指标
	signalsTotal  prometheus.Counter
	signalRejects *prometheus.CounterVec

	// 订单/成交指标
	ordersPlaced    *prometheus.CounterVec
	ordersCancelled prometheus.Counter
	fillsTotal      prometheus.Counter
	filledVolume    prometheus.Counter

	// 风控指标
	riskRejects *prometheus.CounterVec
	haltState   prometheus.Gauge

	// 账户指标
	equity        prometheus.Gauge
	peakEquity    prometheus.Gauge
	drawdown      prometheus.Gauge
	dailyDrawdown prometheus.Gauge
	bankroll      prometheus.Gauge
	openPositions prometheus.Gauge
	exposure      prometheus.Gauge
	realizedPnL   prometheus.Gauge

	// 市场指标
	spotPrice  prometheus.Gauge
	volatility prometheus.Gauge
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "polyhft",
		Subsystem: "pipeline",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		signalsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "signals_total",
			Help:      "通过过滤链的信号总数",
		}),
		signalRejects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "signal_rejects_total",
			Help:      "过滤链拒绝总数",
		}, []string{"reason"}),

		ordersPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_placed_total",
			Help:      "订单提交总数",
		}, []string{"kind"}),
		ordersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_cancelled_total",
			Help:      "订单取消总数（含挂单超时）",
		}),
		fillsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fills_total",
			Help:      "成交笔数总数",
		}),
		filledVolume: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "filled_volume_total",
			Help:      "累计成交份额",
		}),

		riskRejects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "risk_rejects_total",
			Help:      "风控闸门拒绝总数",
		}, []string{"cause"}),
		haltState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "halt_state",
			Help:      "熔断状态（0=正常，1=熔断）",
		}),

		equity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "equity",
			Help:      "当前权益",
		}),
		peakEquity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "peak_equity",
			Help:      "历史峰值权益",
		}),
		drawdown: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "drawdown",
			Help:      "当前回撤比例",
		}),
		dailyDrawdown: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "daily_drawdown",
			Help:      "当日回撤比例",
		}),
		bankroll: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "bankroll",
			Help:      "可用现金",
		}),
		openPositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "open_positions",
			Help:      "未平仓数量",
		}),
		exposure: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "exposure",
			Help:      "持仓敞口（成本口径）",
		}),
		realizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "realized_pnl",
			Help:      "已实现盈亏",
		}),

		spotPrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "spot_price",
			Help:      "现货最新价",
		}),
		volatility: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "volatility",
			Help:      "年化波动率估计",
		}),
	}
	return m
}

// RecordSignal 信号通过。
func (m *Monitor) RecordSignal() { m.signalsTotal.Inc() }

// RecordReject 过滤链拒绝。
func (m *Monitor) RecordReject(reason string) {
	m.signalRejects.WithLabelValues(reason).Inc()
}

// RecordRiskReject 风控拒绝。
func (m *Monitor) RecordRiskReject(cause string) {
	m.riskRejects.WithLabelValues(cause).Inc()
}

// RecordOrder 订单提交。
func (m *Monitor) RecordOrder(kind string) {
	m.ordersPlaced.WithLabelValues(kind).Inc()
}

// RecordCancel 订单取消。
func (m *Monitor) RecordCancel() { m.ordersCancelled.Inc() }

// RecordFill 一笔成交。
func (m *Monitor) RecordFill(size float64) {
	m.fillsTotal.Inc()
	m.filledVolume.Add(size)
}

// SetHalted 熔断状态。
func (m *Monitor) SetHalted(halted bool) {
	if halted {
		m.haltState.Set(1)
	} else {
		m.haltState.Set(0)
	}
}

// UpdateAccount 账户面板一次性刷新。
func (m *Monitor) UpdateAccount(equity, peak, dd, dailyDD, bankroll, exposure, realized float64, open int) {
	m.equity.Set(equity)
	m.peakEquity.Set(peak)
	m.drawdown.Set(dd)
	m.dailyDrawdown.Set(dailyDD)
	m.bankroll.Set(bankroll)
	m.exposure.Set(exposure)
	m.realizedPnL.Set(realized)
	m.openPositions.Set(float64(open))
}

// UpdateMarket 行情指标。
func (m *Monitor) UpdateMarket(spot, vol float64) {
	m.spotPrice.Set(spot)
	m.volatility.Set(vol)
}

// Handler 暴露 /metrics。
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层 registry（测试用）。
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
