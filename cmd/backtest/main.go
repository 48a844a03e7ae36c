package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"poly-hft-go/backtest"
	"poly-hft-go/config"
	"poly-hft-go/engine"
	"poly-hft-go/execution"
	"poly-hft-go/infrastructure/logger"
	"poly-hft-go/infrastructure/monitor"
	"poly-hft-go/market"
	"poly-hft-go/model"
	"poly-hft-go/position"
	"poly-hft-go/risk"
	"poly-hft-go/signal"
	"poly-hft-go/sizing"
)

// 配置驱动的回放脚本。
// 用法：
//
//	go run ./cmd/backtest -config configs/config.yaml -ticks data/ticks.csv -books data/books.csv -out trades.csv
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	tickPath := flag.String("ticks", "", "现货价格 CSV（ts,price）")
	bookPath := flag.String("books", "", "盘口 CSV（ts,token_id,bid,bid_size,ask,ask_size）")
	marketPath := flag.String("markets", "", "市场 CSV，留空则用配置中的 markets")
	outPath := flag.String("out", "", "若指定则写出逐笔平仓 CSV")
	drainSec := flag.Int("drainSec", 3600, "事件流结束后继续推进的秒数，冲掉在途定时器")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *tickPath == "" {
		log.Fatal("必须指定 -ticks")
	}

	var sources [][]backtest.Event
	ticks, err := backtest.LoadTickCSV(*tickPath, cfg.Symbol)
	if err != nil {
		log.Fatalf("读取价格 CSV 失败: %v", err)
	}
	sources = append(sources, ticks)

	if *bookPath != "" {
		books, err := backtest.LoadBookCSV(*bookPath)
		if err != nil {
			log.Fatalf("读取盘口 CSV 失败: %v", err)
		}
		sources = append(sources, books)
	}

	var marketEvents []backtest.Event
	if *marketPath != "" {
		marketEvents, err = backtest.LoadMarketCSV(*marketPath)
		if err != nil {
			log.Fatalf("读取市场 CSV 失败: %v", err)
		}
	} else {
		for _, m := range cfg.MarketList() {
			marketEvents = append(marketEvents, backtest.OpenEvent(m), backtest.CloseEvent(m))
		}
	}
	if len(marketEvents) == 0 {
		log.Fatal("没有任何市场")
	}
	sources = append(sources, marketEvents)

	start := earliest(sources)
	stream := backtest.NewEventStream(sources...)

	lg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Sync()

	strat, err := cfg.StrategyFor()
	if err != nil {
		log.Fatalf("初始化策略失败: %v", err)
	}
	sizer, err := sizing.New(cfg.Sizing)
	if err != nil {
		log.Fatalf("初始化定仓失败: %v", err)
	}

	sched := execution.NewSimScheduler(start)
	// 回撤监控共用模拟时钟，日亏停机才会随回放跨日解除
	dd := risk.NewDrawdownMonitor(cfg.Risk.Drawdown, cfg.Bankroll, sched)
	ledger := risk.NewLedger(risk.NewGate(cfg.Risk.Gate), dd, position.NewTracker(), cfg.Bankroll)

	eng := engine.New(cfg.EngineConfig(), engine.Deps{
		Log:      lg,
		Metrics:  monitor.New(monitor.DefaultConfig()),
		Vol:      model.NewVolatilityEstimator(cfg.VolWindow(), cfg.Volatility.MinSamples),
		Detector: signal.NewDetector(strat, signal.NewChain(cfg.FilterConfig())),
		Selector: execution.NewSelector(cfg.Selector),
		Sizer:    sizer,
		Ledger:   ledger,
		Sched:    sched,
		Tracker:  market.NewTracker(time.Minute),
	})

	runner := backtest.NewRunner(eng, sched, ledger, time.Duration(*drainSec)*time.Second)
	result := runner.Run(stream)

	fmt.Print(result.Summary.FormatTable())
	log.Printf("events=%d trades=%d netPnL=%.4f", result.Events, result.Summary.TotalTrades, result.Summary.NetPnL)

	if *outPath != "" {
		if err := writeTradesCSV(*outPath, result.Closed); err != nil {
			log.Fatalf("写出平仓 CSV 失败: %v", err)
		}
		log.Printf("平仓明细已写入 %s", *outPath)
	}
}

// earliest 返回所有事件源中最早的时间戳，作为模拟时钟起点。
func earliest(sources [][]backtest.Event) time.Time {
	var t time.Time
	for _, src := range sources {
		for _, ev := range src {
			if t.IsZero() || ev.TS.Before(t) {
				t = ev.TS
			}
		}
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t
}

func writeTradesCSV(path string, closed []position.ClosedPosition) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	header := []string{"condition_id", "side", "entry_time", "exit_time", "entry_price", "exit_price", "shares", "realized", "edge", "settlement"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, cp := range closed {
		record := []string{
			cp.Market.ConditionID,
			string(cp.Side),
			cp.EntryTime.UTC().Format(time.RFC3339),
			cp.ExitTime.UTC().Format(time.RFC3339),
			fmt.Sprintf("%.6f", cp.EntryPrice),
			fmt.Sprintf("%.6f", cp.ExitPrice),
			fmt.Sprintf("%.4f", cp.Shares),
			fmt.Sprintf("%.6f", cp.Realized),
			fmt.Sprintf("%.6f", cp.Edge),
			fmt.Sprintf("%t", cp.Settlement),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
