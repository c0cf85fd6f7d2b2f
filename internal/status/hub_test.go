package status

import (
	"sync"
	"testing"
	"time"

	"github.com/bailanluo/autofish/internal/fishing"
)

func TestHubSnapshotReflectsLatestPublish(t *testing.T) {
	h := New(nil)
	h.Publish(fishing.Status{Phase: fishing.WaitingInitial, RoundCount: 0})
	h.Publish(fishing.Status{Phase: fishing.FishHooked, RoundCount: 1})

	got := h.Snapshot()
	if got.Phase != fishing.FishHooked || got.RoundCount != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestHubCallbackReceivesUpdates(t *testing.T) {
	h := New(nil)

	var mu sync.Mutex
	var seen []fishing.Phase
	handle := h.Subscribe(func(s fishing.Status) {
		mu.Lock()
		seen = append(seen, s.Phase)
		mu.Unlock()
	})
	defer h.Unsubscribe(handle)

	h.Publish(fishing.Status{Phase: fishing.WaitingInitial})
	h.Publish(fishing.Status{Phase: fishing.WaitingHook})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatalf("expected at least one delivered update")
	}
	// The last delivered update must be the most recently published one:
	// a slow subscriber drops stale pending updates, it never reorders them.
	if seen[len(seen)-1] != fishing.WaitingHook {
		t.Fatalf("expected last seen phase to be WAITING_HOOK, got %v", seen[len(seen)-1])
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := New(nil)

	var calls int
	var mu sync.Mutex
	handle := h.Subscribe(func(fishing.Status) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	h.Unsubscribe(handle)
	h.Publish(fishing.Status{Phase: fishing.Success})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("expected no calls after unsubscribe, got %d", calls)
	}

	if got := h.SubscriberCount(); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}
}

func TestHubDropsOldestWhenSubscriberIsSlow(t *testing.T) {
	h := New(nil)

	block := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var last fishing.Phase

	handle := h.Subscribe(func(s fishing.Status) {
		select {
		case <-block:
		default:
			close(block)
			<-release // stall the first callback so later publishes must queue
		}
		mu.Lock()
		last = s.Phase
		mu.Unlock()
	})
	defer h.Unsubscribe(handle)

	h.Publish(fishing.Status{Phase: fishing.WaitingInitial})
	<-block
	h.Publish(fishing.Status{Phase: fishing.WaitingHook})
	h.Publish(fishing.Status{Phase: fishing.FishHooked})
	close(release)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		p := last
		mu.Unlock()
		if p == fishing.FishHooked {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if last != fishing.FishHooked {
		t.Fatalf("expected to eventually observe the latest publish, got %v", last)
	}
}
