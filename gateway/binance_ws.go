package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"poly-hft-go/infrastructure/logger"
	"poly-hft-go/market"
)

// BinanceFeedEndpoint 默认现货行情端点。
const BinanceFeedEndpoint = "wss://stream.binance.com:9443/ws"

const (
	maxReconnectAttempts  = 10
	initialReconnectDelay = time.Second
	maxReconnectDelay     = time.Minute
	readTimeout           = 60 * time.Second
)

// BinanceWS 订阅 <symbol>@aggTrade 并把现货成交推给回调。
// 断线指数退避重连，连续失败超过上限则放弃返回错误。
type BinanceWS struct {
	URL    string
	Symbol string
	Dialer *websocket.Dialer
	Log    *logger.Logger
	OnTick func(market.PriceTick)
}

// NewBinanceWS 创建客户端；url 为空用默认端点。
func NewBinanceWS(url, symbol string, log *logger.Logger, onTick func(market.PriceTick)) *BinanceWS {
	if url == "" {
		url = BinanceFeedEndpoint
	}
	return &BinanceWS{
		URL:    url,
		Symbol: symbol,
		Dialer: websocket.DefaultDialer,
		Log:    log,
		OnTick: onTick,
	}
}

func (b *BinanceWS) streamURL() string {
	return fmt.Sprintf("%s/%s@aggTrade", b.URL, strings.ToLower(b.Symbol))
}

// Run 维持连接直到 ctx 取消；正常关闭后重连，重试耗尽返回错误。
func (b *BinanceWS) Run(ctx context.Context) error {
	if b.Symbol == "" {
		return fmt.Errorf("symbol required")
	}
	attempts := 0
	delay := initialReconnectDelay
	for {
		err := b.readLoop(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempts++
		if attempts >= maxReconnectAttempts {
			return fmt.Errorf("binance ws: giving up after %d attempts: %w", attempts, err)
		}
		b.Log.Warn("binance ws reconnecting",
			zap.Error(err), zap.Int("attempt", attempts), zap.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (b *BinanceWS) readLoop(ctx context.Context) error {
	conn, _, err := b.Dialer.DialContext(ctx, b.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	b.Log.Info("binance ws connected", zap.String("symbol", b.Symbol))

	// 交易所主动 ping，回 pong 并顺延读超时即可
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		tick, ok, err := ParseAggTrade(raw, time.Now().UTC())
		if err != nil {
			// 坏消息只记录，不断流
			b.Log.LogError(err, map[string]interface{}{"raw": string(raw)})
			continue
		}
		if ok && b.OnTick != nil {
			b.OnTick(tick)
		}
	}
}
