package candle

import (
	"fmt"
	"time"
)

// TimeframeDuration parses a timeframe string ("1m", "5m", "15m", "1h",
// "4h", "1d") into its duration. Only minute/hour/day units are supported,
// matching the custom timeframe mappings this platform configures.
func TimeframeDuration(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	unit := tf[len(tf)-1]
	var n int
	if _, err := fmt.Sscanf(tf[:len(tf)-1], "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid timeframe unit in %q", tf)
	}
}

// CalculateBoundaries returns the [start, end) bucket a base-timeframe
// candle with the given UTC timestamp falls into for the custom timeframe
// duration. Buckets are aligned to the Unix epoch, so a 5m timeframe always
// buckets on :00, :05, :10, ... regardless of when the service started.
func CalculateBoundaries(ts time.Time, duration time.Duration) (start, end time.Time) {
	ts = ts.UTC()
	epoch := ts.Unix()
	bucketSeconds := int64(duration.Seconds())
	bucketStart := (epoch / bucketSeconds) * bucketSeconds
	start = time.Unix(bucketStart, 0).UTC()
	end = start.Add(duration)
	return start, end
}
