package workerpool

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolRunsSameKeyInOrder(t *testing.T) {
	p := New(context.Background(), testLogger(), 8)
	defer p.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)

	for i := 0; i < 5; i++ {
		i := i
		p.Submit("btc-usd:1h", func(ctx context.Context) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	waitOrTimeout(t, &wg, time.Second)

	for i, v := range order {
		if v != i {
			t.Fatalf("expected in-order execution 0..4, got %v", order)
		}
	}
}

func TestPoolRunsDifferentKeysConcurrently(t *testing.T) {
	p := New(context.Background(), testLogger(), 8)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan string, 2)

	p.Submit("a", func(ctx context.Context) {
		started <- "a"
		<-release
	})
	p.Submit("b", func(ctx context.Context) {
		started <- "b"
		<-release
	})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case k := <-started:
			seen[k] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for both lanes to start concurrently, seen=%v", seen)
		}
	}
	close(release)
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected both keys to start before either finished, got %v", seen)
	}
}

func TestPoolClosePreventsFurtherExecution(t *testing.T) {
	p := New(context.Background(), testLogger(), 8)
	p.Close()

	ran := false
	done := make(chan struct{})
	go func() {
		p.Submit("x", func(ctx context.Context) { ran = true })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit on a closed pool should return promptly (drop, not block forever)")
	}
	if ran {
		t.Fatal("task should not have run after Close")
	}
}

func TestPoolRemoveLaneThenSubmitStartsFreshLane(t *testing.T) {
	p := New(context.Background(), testLogger(), 8)
	defer p.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit("gone", func(ctx context.Context) { wg.Done() })
	waitOrTimeout(t, &wg, time.Second)

	p.RemoveLane("gone")

	wg.Add(1)
	p.Submit("gone", func(ctx context.Context) { wg.Done() })
	waitOrTimeout(t, &wg, time.Second)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks to complete")
	}
}
