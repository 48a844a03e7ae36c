package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"poly-hft-go/market"
)

// aggTradeMsg 对应 binance <symbol>@aggTrade 消息。
type aggTradeMsg struct {
	EventType string      `json:"e"`
	EventTime int64       `json:"E"` // 毫秒；必须单列，否则 "E" 会大小写不敏感地匹配到 "e"
	Symbol    string      `json:"s"`
	Price     json.Number `json:"p"`
	Quantity  json.Number `json:"q"`
	TradeTime int64       `json:"T"` // 毫秒
}

// ParseAggTrade 解析 aggTrade 消息为 PriceTick。
// 非 aggTrade 事件（订阅确认、ping 等）返回 (zero, false, nil)。
func ParseAggTrade(raw []byte, now time.Time) (market.PriceTick, bool, error) {
	var msg aggTradeMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return market.PriceTick{}, false, fmt.Errorf("parse aggTrade: %w", err)
	}
	if msg.EventType != "aggTrade" {
		return market.PriceTick{}, false, nil
	}
	price, err := msg.Price.Float64()
	if err != nil {
		return market.PriceTick{}, false, fmt.Errorf("aggTrade price %q: %w", msg.Price, err)
	}
	if price <= 0 {
		return market.PriceTick{}, false, fmt.Errorf("aggTrade price %v out of range", price)
	}
	return market.PriceTick{
		Symbol:     msg.Symbol,
		Price:      price,
		ExchangeTS: time.UnixMilli(msg.TradeTime).UTC(),
		ReceivedTS: now,
	}, true, nil
}

// clobLevel CLOB 档位，价格与数量都是字符串。
type clobLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// clobBookMsg 对应 CLOB market 频道的 book 快照消息。
type clobBookMsg struct {
	EventType string      `json:"event_type"`
	AssetID   string      `json:"asset_id"`
	Bids      []clobLevel `json:"bids"`
	Asks      []clobLevel `json:"asks"`
	Timestamp string      `json:"timestamp"` // 毫秒
}

// ParseClobMessages 解析一帧 CLOB 消息。服务端可能把多条事件打包成
// JSON 数组，单条对象也兼容；非 book 事件被丢弃。
func ParseClobMessages(raw []byte) ([]*market.BookSnapshot, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '[' {
		snap, err := ParseClobBook(trimmed)
		if err != nil || snap == nil {
			return nil, err
		}
		return []*market.BookSnapshot{snap}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("parse clob batch: %w", err)
	}
	var out []*market.BookSnapshot
	for _, item := range items {
		snap, err := ParseClobBook(item)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			out = append(out, snap)
		}
	}
	return out, nil
}

// ParseClobBook 解析 book 快照。其他 event_type（price_change、
// last_trade_price）返回 (nil, nil)，由上层忽略。
func ParseClobBook(raw []byte) (*market.BookSnapshot, error) {
	var msg clobBookMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parse clob message: %w", err)
	}
	if msg.EventType != "book" {
		return nil, nil
	}
	if msg.AssetID == "" {
		return nil, fmt.Errorf("book message missing asset_id")
	}

	snap := &market.BookSnapshot{TokenID: msg.AssetID}
	if ms, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
		snap.UpdatedAt = time.UnixMilli(ms).UTC()
	} else {
		snap.UpdatedAt = time.Now().UTC()
	}

	var err error
	if snap.Bids, err = parseLevels(msg.Bids, false); err != nil {
		return nil, fmt.Errorf("book %s bids: %w", msg.AssetID, err)
	}
	if snap.Asks, err = parseLevels(msg.Asks, true); err != nil {
		return nil, fmt.Errorf("book %s asks: %w", msg.AssetID, err)
	}
	return snap, nil
}

// parseLevels 转换档位并按约定排序：bids 价格从高到低，asks 从低到高。
// CLOB 的 bids 按价格升序推送，这里统一成内部约定。
func parseLevels(in []clobLevel, ascending bool) ([]market.PriceLevel, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]market.PriceLevel, 0, len(in))
	for _, l := range in {
		price, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", l.Price, err)
		}
		size, err := strconv.ParseFloat(l.Size, 64)
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", l.Size, err)
		}
		if size <= 0 {
			continue
		}
		out = append(out, market.PriceLevel{Price: price, Size: size})
	}
	sort.Slice(out, func(i, j int) bool {
		if ascending {
			return out[i].Price < out[j].Price
		}
		return out[i].Price > out[j].Price
	})
	return out, nil
}
