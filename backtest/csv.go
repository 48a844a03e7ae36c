package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"poly-hft-go/market"
)

// LoadTickCSV 读取现货成交 CSV，每行 ts,price，ts 为 RFC3339。
// 首行表头与无法解析的行直接跳过。
func LoadTickCSV(path, symbol string) ([]Event, error) {
	rows, err := readAll(path)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			continue
		}
		out = append(out, TickEvent(market.PriceTick{
			Symbol:     symbol,
			Price:      price,
			ExchangeTS: ts,
			ReceivedTS: ts,
		}))
	}
	return out, nil
}

// LoadBookCSV 读取单档盘口 CSV，每行 ts,token_id,bid,bid_size,ask,ask_size。
func LoadBookCSV(path string) ([]Event, error) {
	rows, err := readAll(path)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			continue
		}
		vals := make([]float64, 4)
		ok := true
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseFloat(row[2+i], 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		b := &market.BookSnapshot{TokenID: row[1], UpdatedAt: ts}
		if vals[1] > 0 {
			b.Bids = []market.PriceLevel{{Price: vals[0], Size: vals[1]}}
		}
		if vals[3] > 0 {
			b.Asks = []market.PriceLevel{{Price: vals[2], Size: vals[3]}}
		}
		out = append(out, BookEvent(b))
	}
	return out, nil
}

// LoadMarketCSV 读取市场定义 CSV，每行
// condition_id,yes_token,no_token,strike,open,close（时间为 RFC3339），
// 展开成开盘与收盘两条事件。
func LoadMarketCSV(path string) ([]Event, error) {
	rows, err := readAll(path)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, 2*len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		strike, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			continue
		}
		open, err := time.Parse(time.RFC3339, row[4])
		if err != nil {
			continue
		}
		closeAt, err := time.Parse(time.RFC3339, row[5])
		if err != nil {
			continue
		}
		if !closeAt.After(open) {
			return nil, fmt.Errorf("market %s: close %s not after open %s", row[0], row[5], row[4])
		}
		m := market.Market{
			ConditionID: row[0],
			YesTokenID:  row[1],
			NoTokenID:   row[2],
			Strike:      strike,
			OpenTime:    open,
			CloseTime:   closeAt,
		}
		out = append(out, OpenEvent(m), CloseEvent(m))
	}
	return out, nil
}

func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}
