package risk

import (
	"math"
	"testing"
	"time"
)

func fixedClock() *FixedClock {
	return &FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestDrawdownMonitor_PeakAndDrawdownSequence(t *testing.T) {
	m := NewDrawdownMonitor(DrawdownConfig{}, 500, fixedClock())

	equities := []float64{500, 520, 480, 510, 450}
	wantPeaks := []float64{500, 520, 520, 520, 520}
	wantDD := []float64{0, 0, 0.0769, 0.0192, 0.1346}

	for i, e := range equities {
		m.UpdateEquity(e)
		if got := m.Peak(); got != wantPeaks[i] {
			t.Errorf("step %d: peak = %f, want %f", i, got, wantPeaks[i])
		}
		if got := m.CurrentDrawdown(); math.Abs(got-wantDD[i]) > 0.0001 {
			t.Errorf("step %d: drawdown = %f, want %f", i, got, wantDD[i])
		}
	}
}

func TestDrawdownMonitor_PeakNeverDecreases(t *testing.T) {
	m := NewDrawdownMonitor(DrawdownConfig{}, 100, fixedClock())
	prev := m.Peak()
	for _, e := range []float64{90, 150, 30, 200, 10, 10, 250} {
		m.UpdateEquity(e)
		if m.Peak() < prev {
			t.Fatalf("peak decreased: %f -> %f", prev, m.Peak())
		}
		prev = m.Peak()
		if m.CurrentDrawdown() < 0 {
			t.Fatalf("drawdown negative at equity %f", e)
		}
	}
}

func TestDrawdownMonitor_DrawdownHaltSticky(t *testing.T) {
	m := NewDrawdownMonitor(DrawdownConfig{MaxDrawdownPct: 0.10}, 500, fixedClock())

	if halt := m.UpdateEquity(460); halt != HaltNone {
		t.Fatalf("8%% drawdown halted early: %s", halt)
	}
	if halt := m.UpdateEquity(440); halt != HaltMaxDrawdown {
		t.Fatalf("12%% drawdown must halt, got %q", halt)
	}

	// 权益回升不自动清除
	if halt := m.UpdateEquity(510); halt != HaltMaxDrawdown {
		t.Fatalf("drawdown halt must be sticky, got %q", halt)
	}

	m.Reset()
	if m.Halted() != HaltNone {
		t.Fatal("manual reset must clear the halt")
	}
}

func TestDrawdownMonitor_DailyLossClearsAtDayBoundary(t *testing.T) {
	clock := fixedClock()
	m := NewDrawdownMonitor(DrawdownConfig{MaxDailyLossPct: 0.05}, 500, clock)

	if halt := m.UpdateEquity(470); halt != HaltMaxDailyLoss {
		t.Fatalf("6%% daily loss must halt, got %q", halt)
	}
	if m.Halted() != HaltMaxDailyLoss {
		t.Fatal("halt must persist within the day")
	}

	// 跨过 UTC 日界：日亏熔断清除，日起始权益重置
	clock.Advance(24 * time.Hour)
	if m.Halted() != HaltNone {
		t.Fatal("daily loss halt must clear on the next trading day")
	}
	if got := m.DailyDrawdown(); got != 0 {
		t.Errorf("daily drawdown after roll = %f, want 0", got)
	}
}

func TestDrawdownMonitor_DrawdownHaltSurvivesDayBoundary(t *testing.T) {
	clock := fixedClock()
	m := NewDrawdownMonitor(DrawdownConfig{MaxDrawdownPct: 0.10}, 500, clock)

	m.UpdateEquity(440)
	clock.Advance(24 * time.Hour)
	if m.Halted() != HaltMaxDrawdown {
		t.Fatal("drawdown halt must not clear at the day boundary")
	}
}

func TestDrawdownMonitor_ExposureHalt(t *testing.T) {
	m := NewDrawdownMonitor(DrawdownConfig{MaxExposurePct: 0.50}, 500, fixedClock())

	if halt := m.CheckExposure(200); halt != HaltNone {
		t.Fatalf("40%% exposure halted early: %s", halt)
	}
	if halt := m.CheckExposure(300); halt != HaltMaxExposure {
		t.Fatalf("60%% exposure must halt, got %q", halt)
	}
}
