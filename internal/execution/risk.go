package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradefabric/internal/config"
)

// PositionReport is sent after every submitted order for risk evaluation,
// generalizing _examples/0xtitan6-polymarket-mm/internal/risk.Manager's
// per-market PositionReport to a per-symbol one (this system trades
// symbols, not prediction-market conditions).
type PositionReport struct {
	Symbol        string
	MidPrice      float64
	ExposureUSD   float64
	UnrealizedPnL float64
	RealizedPnL   float64
	Timestamp     time.Time
}

// KillSignal tells the pipeline to stop submitting new orders. An empty
// Symbol means halt globally.
type KillSignal struct {
	Symbol string
	Reason string
}

type priceAnchor struct {
	price     float64
	timestamp time.Time
}

// RiskManager enforces portfolio-level limits independent of per-signal
// sizing: per-symbol exposure, global exposure, daily loss, and rapid
// price movement. Grounded one-for-one on
// internal/risk.Manager from the teacher, generalized from "market" to
// "symbol" keying.
type RiskManager struct {
	cfg    config.RiskConfig
	logger *slog.Logger

	mu               sync.RWMutex
	positions        map[string]PositionReport
	totalExposure    float64
	totalRealizedPnL float64
	killSwitchActive bool
	killSwitchUntil  time.Time
	priceAnchors     map[string]priceAnchor

	reportCh chan PositionReport
	killCh   chan KillSignal
}

func NewRiskManager(cfg config.RiskConfig, logger *slog.Logger) *RiskManager {
	return &RiskManager{
		cfg:          cfg,
		logger:       logger.With("component", "risk"),
		positions:    make(map[string]PositionReport),
		priceAnchors: make(map[string]priceAnchor),
		reportCh:     make(chan PositionReport, 100),
		killCh:       make(chan KillSignal, 10),
	}
}

// Run processes reports and clears an expired kill switch on a ticker, so
// the cooldown lifts even without further trading activity.
func (rm *RiskManager) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case report := <-rm.reportCh:
			rm.processReport(report)
		case <-ticker.C:
			rm.clearExpiredKillSwitch()
		}
	}
}

// Report submits a position report without blocking the caller.
func (rm *RiskManager) Report(report PositionReport) {
	select {
	case rm.reportCh <- report:
	default:
		rm.logger.Warn("risk report channel full, dropping report", "symbol", report.Symbol)
	}
}

func (rm *RiskManager) KillCh() <-chan KillSignal { return rm.killCh }

func (rm *RiskManager) RemoveSymbol(symbol string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.positions, symbol)
	delete(rm.priceAnchors, symbol)
}

// IsKillSwitchActive reports whether the kill switch is engaged, clearing
// it first if the cooldown has already elapsed.
func (rm *RiskManager) IsKillSwitchActive() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if !rm.killSwitchActive {
		return false
	}
	if time.Now().After(rm.killSwitchUntil) {
		rm.killSwitchActive = false
		rm.logger.Info("kill switch cooldown expired")
		return false
	}
	return true
}

func (rm *RiskManager) processReport(report PositionReport) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.positions[report.Symbol] = report

	rm.totalExposure = 0
	rm.totalRealizedPnL = 0
	var totalUnrealizedPnL float64
	for _, pos := range rm.positions {
		rm.totalExposure += pos.ExposureUSD
		rm.totalRealizedPnL += pos.RealizedPnL
		totalUnrealizedPnL += pos.UnrealizedPnL
	}

	if rm.cfg.MaxPositionPerSymbol > 0 && report.ExposureUSD > rm.cfg.MaxPositionPerSymbol {
		rm.emitKill(report.Symbol, "per-symbol position limit breached")
	}
	if rm.cfg.MaxGlobalExposure > 0 && rm.totalExposure > rm.cfg.MaxGlobalExposure {
		rm.emitKill("", "global exposure limit breached")
	}
	if rm.cfg.MaxDailyLoss > 0 {
		if totalPnL := rm.totalRealizedPnL + totalUnrealizedPnL; totalPnL < -rm.cfg.MaxDailyLoss {
			rm.emitKill("", "max daily loss breached")
		}
	}
	rm.checkPriceMovement(report)
}

func (rm *RiskManager) checkPriceMovement(report PositionReport) {
	if rm.cfg.KillSwitchDropPct <= 0 {
		return
	}
	window := time.Duration(rm.cfg.KillSwitchWindowSec) * time.Second

	anchor, ok := rm.priceAnchors[report.Symbol]
	if !ok || report.Timestamp.Sub(anchor.timestamp) > window {
		rm.priceAnchors[report.Symbol] = priceAnchor{price: report.MidPrice, timestamp: report.Timestamp}
		return
	}
	if anchor.price == 0 {
		return
	}

	pctChange := (report.MidPrice - anchor.price) / anchor.price
	if pctChange < 0 {
		pctChange = -pctChange
	}
	if pctChange > rm.cfg.KillSwitchDropPct {
		rm.emitKill(report.Symbol, fmt.Sprintf("rapid price movement: %.1f%% in %ds", pctChange*100, rm.cfg.KillSwitchWindowSec))
	}
}

func (rm *RiskManager) clearExpiredKillSwitch() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.killSwitchActive && time.Now().After(rm.killSwitchUntil) {
		rm.killSwitchActive = false
		rm.logger.Info("kill switch cooldown expired")
	}
}

// emitKill activates the kill switch and pushes a KillSignal, draining a
// stale one first if the channel is already full so the latest reason is
// always delivered.
func (rm *RiskManager) emitKill(symbol, reason string) {
	rm.killSwitchActive = true
	rm.killSwitchUntil = time.Now().Add(rm.cfg.CooldownAfterKill)
	rm.logger.Error("kill switch engaged", "symbol", symbol, "reason", reason, "cooldown_until", rm.killSwitchUntil)

	sig := KillSignal{Symbol: symbol, Reason: reason}
	select {
	case rm.killCh <- sig:
	default:
		select {
		case <-rm.killCh:
		default:
		}
		rm.killCh <- sig
	}
}
