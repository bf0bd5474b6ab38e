package watch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	var count atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func(string) {
		count.Add(1)
	})
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger("records")
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 callback invocation, got %d", got)
	}
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	d := NewDebouncer(30*time.Millisecond, func(key string) {
		mu.Lock()
		seen[key]++
		mu.Unlock()
	})
	defer d.Stop()

	d.Trigger("records")
	d.Trigger("metadata")
	d.Trigger("records")

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if seen["records"] != 1 || seen["metadata"] != 1 {
		t.Errorf("expected one callback per key, got %v", seen)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	var count atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func(string) {
		count.Add(1)
	})

	d.Trigger("records")
	d.Stop()

	time.Sleep(100 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 callback invocations after stop, got %d", got)
	}
}
