package execution

import (
	"testing"

	"github.com/shopspring/decimal"

	"tradefabric/internal/config"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPositionSizeBaseFormula(t *testing.T) {
	cfg := config.ExecutionConfig{AccountEquity: 10000, RiskPerTrade: 0.01, MaxPositionSizeUSD: 1000, MinConfidenceScale: 0.25}
	size := PositionSize(cfg, d("100"), d("98"), 1.0)
	// risk_amount = 10000*0.01 = 100; distance = 2; size = 50
	if !size.Equal(d("50")) {
		t.Errorf("expected size 50, got %v", size)
	}
}

func TestPositionSizeScalesDownLowConfidence(t *testing.T) {
	cfg := config.ExecutionConfig{AccountEquity: 10000, RiskPerTrade: 0.01, MaxPositionSizeUSD: 1000, MinConfidenceScale: 0.25}
	size := PositionSize(cfg, d("100"), d("98"), 0.5)
	// base size 50, confidence 0.5 < 0.8 so scaled by 0.5 -> 25
	if !size.Equal(d("25")) {
		t.Errorf("expected confidence-scaled size 25, got %v", size)
	}
}

func TestPositionSizeClampsConfidenceScaleToFloor(t *testing.T) {
	cfg := config.ExecutionConfig{AccountEquity: 10000, RiskPerTrade: 0.01, MaxPositionSizeUSD: 1000, MinConfidenceScale: 0.4}
	size := PositionSize(cfg, d("100"), d("98"), 0.1)
	// confidence 0.1 is below the floor 0.4, so the floor is used: 50*0.4 = 20
	if !size.Equal(d("20")) {
		t.Errorf("expected floor-scaled size 20, got %v", size)
	}
}

func TestPositionSizeCapsAtMax(t *testing.T) {
	cfg := config.ExecutionConfig{AccountEquity: 1_000_000, RiskPerTrade: 0.5, MaxPositionSizeUSD: 5, MinConfidenceScale: 0.25}
	size := PositionSize(cfg, d("100"), d("99"), 1.0)
	if !size.Equal(d("5")) {
		t.Errorf("expected size capped at 5, got %v", size)
	}
}

func TestPositionSizeDefaultsOnZeroStopDistance(t *testing.T) {
	cfg := config.ExecutionConfig{AccountEquity: 10000, RiskPerTrade: 0.01, MaxPositionSizeUSD: 1000, MinConfidenceScale: 0.25}
	size := PositionSize(cfg, d("100"), d("100"), 1.0)
	if !size.Equal(defaultPositionSize) {
		t.Errorf("expected default size %v on zero stop distance, got %v", defaultPositionSize, size)
	}
}

func TestClampToPriceCorridorLeavesInRangeTargetUntouched(t *testing.T) {
	target := clampToPriceCorridor(d("105"), d("100"), 0.20, 0.10)
	if !target.Equal(d("105")) {
		t.Errorf("expected untouched target 105, got %v", target)
	}
}

func TestClampToPriceCorridorClampsAboveUpperBound(t *testing.T) {
	target := clampToPriceCorridor(d("130"), d("100"), 0.20, 0.10)
	if !target.Equal(d("110")) {
		t.Errorf("expected clamp to +10%% of current (110), got %v", target)
	}
}

func TestClampToPriceCorridorClampsBelowLowerBound(t *testing.T) {
	target := clampToPriceCorridor(d("70"), d("100"), 0.20, 0.10)
	if !target.Equal(d("90")) {
		t.Errorf("expected clamp to -10%% of current (90), got %v", target)
	}
}
