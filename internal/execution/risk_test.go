package execution

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"tradefabric/internal/config"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxPositionPerSymbol: 100,
		MaxGlobalExposure:    500,
		KillSwitchDropPct:    0.10,
		KillSwitchWindowSec:  60,
		MaxDailyLoss:         50,
		CooldownAfterKill:    5 * time.Minute,
	}
}

func newTestRiskManager() *RiskManager {
	return NewRiskManager(testRiskConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRiskManagerUnderLimitsNoKill(t *testing.T) {
	rm := newTestRiskManager()
	rm.processReport(PositionReport{Symbol: "btc-usd", ExposureUSD: 50, MidPrice: 100, Timestamp: time.Now()})

	if rm.killSwitchActive {
		t.Fatal("kill switch should not fire under limits")
	}
	select {
	case sig := <-rm.killCh:
		t.Fatalf("unexpected kill signal: %+v", sig)
	default:
	}
}

func TestRiskManagerPerSymbolBreachFiresKill(t *testing.T) {
	rm := newTestRiskManager()
	rm.processReport(PositionReport{Symbol: "btc-usd", ExposureUSD: 150, MidPrice: 100, Timestamp: time.Now()})

	if !rm.killSwitchActive {
		t.Fatal("expected kill switch to fire on per-symbol breach")
	}
	select {
	case sig := <-rm.killCh:
		if sig.Symbol != "btc-usd" {
			t.Errorf("expected kill signal for btc-usd, got %q", sig.Symbol)
		}
	default:
		t.Fatal("expected kill signal on channel")
	}
}

func TestRiskManagerGlobalExposureBreachFiresGlobalKill(t *testing.T) {
	cfg := testRiskConfig()
	cfg.MaxGlobalExposure = 150 // lower than the default so two under-per-symbol-limit reports can sum past it
	rm := NewRiskManager(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rm.processReport(PositionReport{Symbol: "a", ExposureUSD: 90, MidPrice: 100, Timestamp: time.Now()})
	rm.processReport(PositionReport{Symbol: "b", ExposureUSD: 90, MidPrice: 100, Timestamp: time.Now()})

	if rm.totalExposure != 180 {
		t.Fatalf("expected total exposure 180, got %v", rm.totalExposure)
	}
	if !rm.killSwitchActive {
		t.Fatal("expected kill switch to fire once combined exposure exceeds the global limit")
	}
	select {
	case sig := <-rm.killCh:
		if sig.Symbol != "" {
			t.Errorf("expected a global kill signal (empty symbol), got %q", sig.Symbol)
		}
	default:
		t.Fatal("expected kill signal on channel")
	}
}

func TestRiskManagerDailyLossBreachFiresKill(t *testing.T) {
	rm := newTestRiskManager()
	rm.processReport(PositionReport{Symbol: "a", RealizedPnL: -60, MidPrice: 100, Timestamp: time.Now()})

	if !rm.killSwitchActive {
		t.Fatal("expected kill switch to fire on daily loss breach")
	}
}

func TestRiskManagerPriceMovementBreachFiresKill(t *testing.T) {
	rm := newTestRiskManager()
	base := time.Now()
	rm.processReport(PositionReport{Symbol: "a", MidPrice: 100, Timestamp: base})
	rm.processReport(PositionReport{Symbol: "a", MidPrice: 115, Timestamp: base.Add(10 * time.Second)})

	if !rm.killSwitchActive {
		t.Fatal("expected kill switch to fire on a 15% move within the window")
	}
}

func TestIsKillSwitchActiveClearsAfterCooldown(t *testing.T) {
	rm := newTestRiskManager()
	rm.killSwitchActive = true
	rm.killSwitchUntil = time.Now().Add(-time.Second)

	if rm.IsKillSwitchActive() {
		t.Fatal("expected kill switch to report inactive once cooldown has elapsed")
	}
}
