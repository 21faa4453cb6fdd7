package candle

import (
	"testing"
	"time"
)

func TestTimeframeDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tf      string
		want    time.Duration
		wantErr bool
	}{
		{"1m", time.Minute, false},
		{"5m", 5 * time.Minute, false},
		{"15m", 15 * time.Minute, false},
		{"1h", time.Hour, false},
		{"4h", 4 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"bogus", 0, true},
		{"", 0, true},
		{"5x", 0, true},
	}
	for _, tc := range cases {
		got, err := TimeframeDuration(tc.tf)
		if tc.wantErr {
			if err == nil {
				t.Errorf("TimeframeDuration(%q): expected error", tc.tf)
			}
			continue
		}
		if err != nil {
			t.Errorf("TimeframeDuration(%q): unexpected error %v", tc.tf, err)
			continue
		}
		if got != tc.want {
			t.Errorf("TimeframeDuration(%q) = %v, want %v", tc.tf, got, tc.want)
		}
	}
}

func TestCalculateBoundariesAlignsToEpoch(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 7, 30, 14, 7, 32, 0, time.UTC)
	start, end := CalculateBoundaries(ts, 5*time.Minute)

	wantStart := time.Date(2026, 7, 30, 14, 5, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 7, 30, 14, 10, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestCalculateBoundariesOnBoundary(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 7, 30, 14, 5, 0, 0, time.UTC)
	start, _ := CalculateBoundaries(ts, 5*time.Minute)
	if !start.Equal(ts) {
		t.Errorf("expected exact boundary timestamp to start its own bucket, got %v", start)
	}
}
