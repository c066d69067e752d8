package attempts

import (
	"context"
	"sync"
	"testing"
)

func TestKey_CombinesPhoneAndMedicine(t *testing.T) {
	if got := Key("+15551230001", "Aspirin"); got != "+15551230001_Aspirin" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestMemoryCounter_Monotonic(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	if n, _ := c.Get(ctx, "k"); n != 0 {
		t.Fatalf("unseen key should be 0, got %d", n)
	}
	if n, err := c.Incr(ctx, "k"); err != nil || n != 1 {
		t.Fatalf("expected 1, got %d (%v)", n, err)
	}
	if n, err := c.Incr(ctx, "k"); err != nil || n != 2 {
		t.Fatalf("expected 2, got %d (%v)", n, err)
	}
	if n, _ := c.Get(ctx, "other"); n != 0 {
		t.Fatalf("keys must be independent, got %d", n)
	}
}

func TestMemoryCounter_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Incr(ctx, "k"); err != nil {
				t.Errorf("incr failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if n, _ := c.Get(ctx, "k"); n != 50 {
		t.Fatalf("expected 50, got %d", n)
	}
}
