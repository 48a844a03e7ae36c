package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"poly-hft-go/config"
	"poly-hft-go/engine"
	"poly-hft-go/execution"
	"poly-hft-go/gateway"
	"poly-hft-go/infrastructure/alert"
	"poly-hft-go/infrastructure/logger"
	"poly-hft-go/infrastructure/monitor"
	"poly-hft-go/internal/control"
	"poly-hft-go/market"
	"poly-hft-go/metrics"
	"poly-hft-go/model"
	"poly-hft-go/position"
	"poly-hft-go/posttrade"
	"poly-hft-go/risk"
	sig "poly-hft-go/signal"
	"poly-hft-go/sizing"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	// .env 不存在时忽略，线上用真实环境变量
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	lg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Sync()

	mon := monitor.New(monitor.DefaultConfig())
	alerts := alert.NewManager([]alert.Channel{alert.NewZapChannel("log", lg)}, 5*time.Minute)

	strat, err := cfg.StrategyFor()
	if err != nil {
		log.Fatalf("初始化策略失败: %v", err)
	}
	sizer, err := sizing.New(cfg.Sizing)
	if err != nil {
		log.Fatalf("初始化定仓失败: %v", err)
	}

	sched := execution.WallScheduler{}
	dd := risk.NewDrawdownMonitor(cfg.Risk.Drawdown, cfg.Bankroll, risk.RealClock)
	ledger := risk.NewLedger(risk.NewGate(cfg.Risk.Gate), dd, position.NewTracker(), cfg.Bankroll)

	// Markout 的报价源引用引擎自身，闭包延迟绑定
	var eng *engine.Engine
	markout := posttrade.NewAnalyzer(sched, func(token string) (float64, bool) {
		return eng.MidQuote(token)
	})

	eng = engine.New(cfg.EngineConfig(), engine.Deps{
		Log:      lg,
		Metrics:  mon,
		Vol:      model.NewVolatilityEstimator(cfg.VolWindow(), cfg.Volatility.MinSamples),
		Detector: sig.NewDetector(strat, sig.NewChain(cfg.FilterConfig())),
		Selector: execution.NewSelector(cfg.Selector),
		Sizer:    sizer,
		Ledger:   ledger,
		Sched:    sched,
		Tracker:  market.NewTracker(time.Minute),
		Markout:  markout,
		Alerts:   alerts,
	})

	markets := cfg.MarketList()
	assetIDs := make([]string, 0, len(markets)*2)
	for _, m := range markets {
		eng.OnMarketOpen(m)
		assetIDs = append(assetIDs, m.YesTokenID, m.NoTokenID)
	}
	if len(markets) == 0 {
		log.Fatalf("配置中没有市场")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Monitor.Addr != "" {
		srv := metrics.NewServer(cfg.Monitor.Addr, mon.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				lg.LogError(err, map[string]interface{}{"component": "metrics"})
			}
		}()
		go func() {
			<-ctx.Done()
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer shutCancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	if cfg.Control.ResetFile != "" {
		rw, err := control.NewResetWatcher(cfg.Control.ResetFile, ledger, lg, 0)
		if err != nil {
			log.Fatalf("初始化熔断复位监听失败: %v", err)
		}
		if err := rw.Start(ctx); err != nil {
			log.Fatalf("启动熔断复位监听失败: %v", err)
		}
		defer rw.Stop()
	}

	binanceURL := cfg.Gateway.BinanceWSURL
	if binanceURL == "" {
		binanceURL = gateway.BinanceFeedEndpoint
	}
	clobURL := cfg.Gateway.ClobWSURL
	if clobURL == "" {
		clobURL = gateway.ClobFeedEndpoint
	}

	binance := gateway.NewBinanceWS(binanceURL, cfg.Symbol, lg, eng.OnPriceTick)
	clob := gateway.NewClobWS(clobURL, assetIDs, lg, eng.OnBook)

	errCh := make(chan error, 2)
	go func() { errCh <- binance.Run(ctx) }()
	go func() { errCh <- clob.Run(ctx) }()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	lg.Info("pipeline started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			lg.LogError(err, map[string]interface{}{"component": "gateway"})
			_ = alerts.FeedDown("gateway", err)
		}
		cancel()
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stats := markout.Stats()
	lg.Info("pipeline exit")
	log.Printf("退出: 成交 %d 笔, 5s markout %.4f, 逆向选择率 %.2f",
		stats.TotalFills, stats.AvgMarkout5s, stats.AdverseSelectionRate)
}
