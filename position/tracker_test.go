package position

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"poly-hft-go/market"
	"poly-hft-go/signal"
)

func testSignal(conditionID string, side signal.Side) signal.Signal {
	return signal.Signal{
		ID: uuid.New(),
		Market: market.Market{
			ConditionID: conditionID,
			YesTokenID:  conditionID + "-yes",
			NoTokenID:   conditionID + "-no",
			Strike:      95000,
		},
		Side:        side,
		FairValue:   0.72,
		MarketPrice: 0.52,
	}
}

func TestTracker_OpenAndExposure(t *testing.T) {
	tr := NewTracker()
	now := time.Now()

	id := tr.Open(testSignal("c1", signal.SideYes), 0.52, 10, 0.05, now)
	if tr.Count() != 1 {
		t.Fatalf("count = %d, want 1", tr.Count())
	}
	if got := tr.Exposure(); math.Abs(got-5.2) > 1e-9 {
		t.Errorf("exposure = %f, want 5.2", got)
	}

	p, ok := tr.Get(id)
	if !ok {
		t.Fatal("position must be retrievable")
	}
	if p.EntryPrice != 0.52 || p.Shares != 10 {
		t.Errorf("entry = %f/%f, want 0.52/10", p.EntryPrice, p.Shares)
	}

	tr.Open(testSignal("c2", signal.SideNo), 0.40, 5, 0, now)
	if got := tr.Exposure(); math.Abs(got-7.2) > 1e-9 {
		t.Errorf("exposure = %f, want 7.2", got)
	}
}

func TestTracker_Mark(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	id := tr.Open(testSignal("c1", signal.SideYes), 0.52, 10, 0, now)

	tr.Mark("c1", signal.SideYes, 0.60)
	p, _ := tr.Get(id)
	if math.Abs(p.Unrealized-0.8) > 1e-9 {
		t.Errorf("unrealized = %f, want 0.8", p.Unrealized)
	}

	// 其他市场/方向不受影响
	tr.Mark("c1", signal.SideNo, 0.99)
	tr.Mark("c2", signal.SideYes, 0.99)
	p, _ = tr.Get(id)
	if p.LastMark != 0.60 {
		t.Errorf("mark leaked across market/side: %f", p.LastMark)
	}
}

func TestTracker_SettleWin(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	id := tr.Open(testSignal("c1", signal.SideYes), 0.52, 10, 0.05, now)

	cp, err := tr.Settle(id, true, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 赢：每份额支付 1，payout 10 − 成本 5.2 − 费 0.05
	want := 10 - 5.2 - 0.05
	if math.Abs(cp.Realized-want) > 1e-9 {
		t.Errorf("realized = %f, want %f", cp.Realized, want)
	}
	if !cp.Settlement {
		t.Error("settlement flag must be set")
	}
	if tr.Count() != 0 {
		t.Errorf("count = %d after settle, want 0", tr.Count())
	}
	if math.Abs(tr.Realized()-want) > 1e-9 {
		t.Errorf("tracker realized = %f, want %f", tr.Realized(), want)
	}
}

func TestTracker_SettleLoss(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	id := tr.Open(testSignal("c1", signal.SideYes), 0.52, 10, 0, now)

	cp, err := tr.Settle(id, false, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(cp.Realized-(-5.2)) > 1e-9 {
		t.Errorf("realized = %f, want -5.2", cp.Realized)
	}
}

func TestTracker_SettleMarket(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	tr.Open(testSignal("c1", signal.SideYes), 0.52, 10, 0, now)
	tr.Open(testSignal("c1", signal.SideNo), 0.40, 5, 0, now)
	tr.Open(testSignal("c2", signal.SideYes), 0.50, 4, 0, now)

	closed := tr.SettleMarket("c1", signal.SideYes, now)
	if len(closed) != 2 {
		t.Fatalf("closed %d positions, want 2", len(closed))
	}
	if tr.Count() != 1 {
		t.Errorf("count = %d, want 1 (c2 untouched)", tr.Count())
	}
	for _, cp := range closed {
		switch cp.Side {
		case signal.SideYes:
			if math.Abs(cp.Realized-(10-5.2)) > 1e-9 {
				t.Errorf("yes realized = %f, want 4.8", cp.Realized)
			}
		case signal.SideNo:
			if math.Abs(cp.Realized-(-2.0)) > 1e-9 {
				t.Errorf("no realized = %f, want -2.0", cp.Realized)
			}
		}
	}
}

func TestTracker_EarlyExit(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	id := tr.Open(testSignal("c1", signal.SideYes), 0.52, 10, 0.05, now)

	cp, err := tr.Exit(id, 0.61, 0.06, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 0.61*10 - 5.2 - 0.05 - 0.06
	if math.Abs(cp.Realized-want) > 1e-9 {
		t.Errorf("realized = %f, want %f", cp.Realized, want)
	}
	if cp.Settlement {
		t.Error("early exit must not carry the settlement flag")
	}
}

func TestTracker_NotFound(t *testing.T) {
	tr := NewTracker()
	if _, err := tr.Settle(uuid.New(), true, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if _, err := tr.Exit(uuid.New(), 0.5, 0, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
