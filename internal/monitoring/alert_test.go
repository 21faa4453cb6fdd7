package monitoring

import (
	"context"
	"testing"
	"time"
)

func TestAlertHistoryBoundedCapacity(t *testing.T) {
	h := NewAlertHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(Alert{Type: "t", Symbol: "btc-usd", Timestamp: time.Now()})
	}
	if got := len(h.Snapshot()); got != 3 {
		t.Fatalf("expected capacity-bounded size 3, got %d", got)
	}
}

func TestAlertHistoryPreservesOrder(t *testing.T) {
	h := NewAlertHistory(5)
	for i := 0; i < 3; i++ {
		h.Add(Alert{Message: string(rune('a' + i))})
	}
	snap := h.Snapshot()
	if len(snap) != 3 || snap[0].Message != "a" || snap[2].Message != "c" {
		t.Fatalf("expected oldest-first order, got %+v", snap)
	}
}

func TestAlertHistoryWrapsAroundKeepingMostRecent(t *testing.T) {
	h := NewAlertHistory(2)
	h.Add(Alert{Message: "a"})
	h.Add(Alert{Message: "b"})
	h.Add(Alert{Message: "c"})
	snap := h.Snapshot()
	if len(snap) != 2 || snap[0].Message != "b" || snap[1].Message != "c" {
		t.Fatalf("expected the two most recent entries in order, got %+v", snap)
	}
}

func TestAlertHistoryDedupsByID(t *testing.T) {
	h := NewAlertHistory(5)
	h.Add(Alert{ID: "order-1:filled", Message: "first delivery"})
	h.Add(Alert{ID: "order-2:open", Message: "unrelated"})
	h.Add(Alert{ID: "order-1:filled", Message: "redelivered"})

	snap := h.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected the redelivered alert to replace its earlier entry, got %+v", snap)
	}
	if snap[0].Message != "redelivered" {
		t.Errorf("expected the duplicate ID's entry to hold the latest delivery, got %q", snap[0].Message)
	}
}

type fakeSink struct {
	alerts []Alert
}

func (f *fakeSink) Send(ctx context.Context, alert Alert) error {
	f.alerts = append(f.alerts, alert)
	return nil
}

func TestBroadcastSinkForwardsToNext(t *testing.T) {
	hub := NewHub(testLogger())
	next := &fakeSink{}
	sink := NewBroadcastSink(hub, next)

	if err := sink.Send(context.Background(), Alert{Type: "order_failed"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(next.alerts) != 1 {
		t.Fatalf("expected the forwarded sink to receive the alert")
	}
}
