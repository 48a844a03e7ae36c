package signal

import (
	"testing"
	"time"
)

func chainConfig() FilterConfig {
	return FilterConfig{
		MinEdge:          0.01,
		MaxEdge:          0.20,
		MinTimeSinceOpen: time.Minute,
		MinTimeToExpiry:  2 * time.Minute,
		MaxTimeToExpiry:  20 * time.Minute,
		MinLiquidity:     50,
		MinVolatility:    0.05,
		MaxVolatility:    3.0,
		MaxPositions:     3,
	}
}

func passingInput() FilterInput {
	return FilterInput{
		Candidate:          Candidate{AdjustedEdge: 0.05},
		TimeSinceOpen:      3 * time.Minute,
		TimeToExpiry:       10 * time.Minute,
		AvailableLiquidity: 500,
		Volatility:         0.45,
		OpenPositions:      1,
	}
}

func TestChain_AllPass(t *testing.T) {
	ch := NewChain(chainConfig())
	if reason, ok := ch.Apply(passingInput()); !ok {
		t.Fatalf("expected pass, rejected with %s", reason)
	}
}

func TestChain_IndividualRejects(t *testing.T) {
	ch := NewChain(chainConfig())

	cases := []struct {
		name   string
		mutate func(*FilterInput)
		want   RejectReason
	}{
		{"max positions", func(in *FilterInput) { in.OpenPositions = 3 }, RejectMaxPositionsReached},
		{"edge too small", func(in *FilterInput) { in.Candidate.AdjustedEdge = 0.005 }, RejectEdgeTooSmall},
		{"edge too large", func(in *FilterInput) { in.Candidate.AdjustedEdge = 0.5 }, RejectEdgeTooLarge},
		{"too soon after open", func(in *FilterInput) { in.TimeSinceOpen = 10 * time.Second }, RejectTooSoonAfterOpen},
		{"too close to expiry", func(in *FilterInput) { in.TimeToExpiry = 30 * time.Second }, RejectTooCloseToExpiry},
		{"too far from expiry", func(in *FilterInput) { in.TimeToExpiry = time.Hour }, RejectTooFarFromExpiry},
		{"insufficient liquidity", func(in *FilterInput) { in.AvailableLiquidity = 10 }, RejectInsufficientLiquidity},
		{"vol too low", func(in *FilterInput) { in.Volatility = 0.01 }, RejectVolatilityOutOfRange},
		{"vol too high", func(in *FilterInput) { in.Volatility = 5 }, RejectVolatilityOutOfRange},
	}

	for _, c := range cases {
		in := passingInput()
		c.mutate(&in)
		reason, ok := ch.Apply(in)
		if ok {
			t.Errorf("%s: expected reject", c.name)
			continue
		}
		if reason != c.want {
			t.Errorf("%s: want %s, got %s", c.name, c.want, reason)
		}
	}
}

func TestChain_FirstFailingByPinnedOrder(t *testing.T) {
	ch := NewChain(chainConfig())

	// 多个过滤器同时失败时，报告的是装配顺序里靠前的那个
	in := passingInput()
	in.Candidate.AdjustedEdge = 0.001 // edge too small
	in.AvailableLiquidity = 0         // and insufficient liquidity
	reason, ok := ch.Apply(in)
	if ok {
		t.Fatal("expected reject")
	}
	if reason != RejectEdgeTooSmall {
		t.Fatalf("pinned order puts edge check before liquidity, got %s", reason)
	}
}

func TestChain_OrderIsStable(t *testing.T) {
	ch := NewChain(chainConfig())
	want := []RejectReason{
		RejectMaxPositionsReached,
		RejectEdgeTooSmall,
		RejectEdgeTooLarge,
		RejectTooSoonAfterOpen,
		RejectTooCloseToExpiry,
		RejectTooFarFromExpiry,
		RejectInsufficientLiquidity,
		RejectVolatilityOutOfRange,
	}
	got := ch.Order()
	if len(got) != len(want) {
		t.Fatalf("expected %d filters, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: want %s got %s", i, want[i], got[i])
		}
	}
}

func TestChain_DisabledBounds(t *testing.T) {
	// MaxEdge/MaxTimeToExpiry/MaxPositions 为零值时对应检查关闭
	ch := NewChain(FilterConfig{MinEdge: 0.01})
	in := passingInput()
	in.Candidate.AdjustedEdge = 0.9
	in.TimeToExpiry = 100 * time.Hour
	in.OpenPositions = 1000
	if reason, ok := ch.Apply(in); !ok {
		t.Fatalf("disabled bounds must not reject, got %s", reason)
	}
}
