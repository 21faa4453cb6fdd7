package monitoring

import (
	"time"

	"tradefabric/pkg/types"
)

// Snapshot aggregates the tracker's current read-only view, analogous to
// the teacher's DashboardSnapshot but reshaped to this domain's Order,
// Position and Alert DTOs instead of market-making quotes/books.
type Snapshot struct {
	Timestamp    time.Time        `json:"timestamp"`
	ActiveOrders []types.Order    `json:"active_orders"`
	Positions    []types.Position `json:"positions"`
	Alerts       []Alert          `json:"alerts"`
}

// BuildSnapshot reads the tracker's current views. Grounded on
// internal/api/snapshot.go's BuildSnapshot.
func BuildSnapshot(t *Tracker) Snapshot {
	return Snapshot{
		Timestamp:    time.Now().UTC(),
		ActiveOrders: t.ActiveOrders(),
		Positions:    t.Positions(),
		Alerts:       t.RecentAlerts(),
	}
}
