package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"poly-hft-go/infrastructure/logger"
	"poly-hft-go/market"
)

// ClobFeedEndpoint 默认 CLOB 行情端点（market 频道）。
const ClobFeedEndpoint = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

// clobSubscribe 订阅请求。
type clobSubscribe struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

// ClobWS 订阅一组 token 的盘口快照并推给回调。
// 交叉盘等坏快照在上层（引擎 OnBook）校验丢弃，这里只负责解码。
type ClobWS struct {
	URL      string
	AssetIDs []string
	Dialer   *websocket.Dialer
	Log      *logger.Logger
	OnBook   func(*market.BookSnapshot)
	limiter  *ConnectThrottle
}

// NewClobWS 创建客户端；url 为空用默认端点。
func NewClobWS(url string, assetIDs []string, log *logger.Logger, onBook func(*market.BookSnapshot)) *ClobWS {
	if url == "" {
		url = ClobFeedEndpoint
	}
	return &ClobWS{
		URL:      url,
		AssetIDs: assetIDs,
		Dialer:   websocket.DefaultDialer,
		Log:      log,
		OnBook:   onBook,
		// 重连与重订阅限速，避免触发服务端限流
		limiter: NewConnectThrottle(1, 3),
	}
}

// Run 维持连接直到 ctx 取消。
func (c *ClobWS) Run(ctx context.Context) error {
	if len(c.AssetIDs) == 0 {
		return fmt.Errorf("no asset ids to subscribe")
	}
	attempts := 0
	delay := initialReconnectDelay
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		err := c.readLoop(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempts++
		if attempts >= maxReconnectAttempts {
			return fmt.Errorf("clob ws: giving up after %d attempts: %w", attempts, err)
		}
		c.Log.Warn("clob ws reconnecting",
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

func (c *ClobWS) readLoop(ctx context.Context) error {
	conn, _, err := c.Dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(clobSubscribe{AssetIDs: c.AssetIDs, Type: "market"}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.Log.Info("clob ws connected", zap.Int("assets", len(c.AssetIDs)))

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
		snaps, err := ParseClobMessages(raw)
		if err != nil {
			c.Log.LogError(err, map[string]interface{}{"raw": string(raw)})
			continue
		}
		for _, snap := range snaps {
			if c.OnBook != nil {
				c.OnBook(snap)
			}
		}
	}
}
