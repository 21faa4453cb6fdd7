package indicator

import (
	"context"
	"log/slog"

	"tradefabric/pkg/types"
)

// TypeReport is the per-indicator-type mitigation outcome published after
// each pass, mirroring process_mitigation's per-type results dict.
type TypeReport struct {
	Processed  int
	Updated    int
	Mitigated  int
	StillValid int
	Err        error
}

// MitigationEngine reconciles persisted active indicator instances against
// recent candles, updating touched/mitigated state. Only indicator types
// whose IndicatorType.RequiresMitigation() is true are registered here,
// grounded on strategy/engine/mitigation_service.py's MitigationService.
type MitigationEngine struct {
	indicators map[types.IndicatorType]Mitigatable
	order      []types.IndicatorType
	logger     *slog.Logger
}

func NewMitigationEngine(logger *slog.Logger) *MitigationEngine {
	return &MitigationEngine{
		indicators: make(map[types.IndicatorType]Mitigatable),
		logger:     logger.With("component", "mitigation_engine"),
	}
}

// Register adds ind for mitigation processing if, and only if, its type
// requires mitigation; otherwise it is silently skipped (logged at debug),
// matching the original's register_indicator guard.
func (m *MitigationEngine) Register(ind Mitigatable) {
	t := ind.Type()
	if !t.RequiresMitigation() {
		m.logger.Debug("indicator does not require mitigation, skipping", "type", t.String())
		return
	}
	if _, exists := m.indicators[t]; !exists {
		m.order = append(m.order, t)
	}
	m.indicators[t] = ind
	m.logger.Info("registered indicator for mitigation", "type", t.String())
}

// Process runs one mitigation pass for every registered type over the
// given candle window, scoped to the (exchange, symbol, timeframe) the
// candles belong to — spec.md §9's decided scan scope, matching
// process_mitigation being invoked per candle-close event for one key
// rather than a global sweep. Errors are isolated per type: one type's
// failure never aborts the others.
func (m *MitigationEngine) Process(ctx context.Context, candles []types.Candle) map[string]TypeReport {
	reports := make(map[string]TypeReport, len(m.order))
	if len(candles) == 0 {
		m.logger.Info("no candles passed into mitigation process")
		return reports
	}

	exchange, symbol, timeframe := candles[0].Exchange, candles[0].Symbol, candles[0].Timeframe

	for _, t := range m.order {
		ind := m.indicators[t]
		report := m.processOne(ctx, ind, exchange, symbol, timeframe, candles)
		reports[t.String()] = report
		if report.Err != nil {
			m.logger.Error("mitigation failed for indicator type", "type", t.String(), "error", report.Err)
		} else {
			m.logger.Info("processed mitigation",
				"type", t.String(), "symbol", symbol, "timeframe", timeframe,
				"still_valid", report.StillValid, "mitigated", report.Mitigated)
		}
	}
	return reports
}

func (m *MitigationEngine) processOne(ctx context.Context, ind Mitigatable, exchange, symbol, timeframe string, candles []types.Candle) TypeReport {
	minPrice, maxPrice := ind.RelevantPriceRange(candles)

	instances, err := ind.Repo().FindActiveInPriceRange(ctx, exchange, symbol, minPrice, maxPrice, []string{timeframe})
	if err != nil {
		return TypeReport{Err: err}
	}
	if len(instances) == 0 {
		return TypeReport{}
	}

	updated, stillValid, err := ind.ProcessExisting(ctx, instances, candles)
	if err != nil {
		return TypeReport{Err: err}
	}

	updatedCount := 0
	for _, inst := range updated {
		ok, err := ind.Repo().UpdateIndicatorStatus(ctx, inst)
		if err != nil {
			m.logger.Error("failed to persist mitigated instance", "id", inst.ID, "error", err)
			continue
		}
		if ok {
			updatedCount++
		}
	}

	return TypeReport{
		Processed:  len(instances),
		Updated:    updatedCount,
		Mitigated:  len(instances) - len(stillValid),
		StillValid: len(stillValid),
	}
}
