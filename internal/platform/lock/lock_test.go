package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSlotKey(t *testing.T) {
	if got := SlotKey("primary", "2025-01-15", 9); got != "primary|2025-01-15|09" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestKeyedMutex(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	release, err := k.TryLock(ctx, "a", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := k.TryLock(ctx, "a", time.Second); err != ErrLocked {
		t.Errorf("expected ErrLocked, got %v", err)
	}
	other, err := k.TryLock(ctx, "b", time.Second)
	if err != nil {
		t.Fatalf("expected independent key to lock, got %v", err)
	}
	other()

	release()
	release()
	again, err := k.TryLock(ctx, "a", time.Second)
	if err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}
	again()
}

func TestKeyedMutex_SingleWinner(t *testing.T) {
	k := NewKeyedMutex()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := k.TryLock(context.Background(), "slot", time.Second); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
}
