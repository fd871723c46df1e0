package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// TestResolver_Caches a second lookup for the same pair does not hit the API
func TestResolver_Caches(t *testing.T) {
	fake := newFakeAPI()
	r := NewResolver(fake)

	for i := 0; i < 3; i++ {
		th, err := r.Resolve(context.Background(), "cust-1", "vend-1")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if th.ID != "t-vend-1" {
			t.Errorf("Unexpected thread %+v", th)
		}
	}
	if fake.threadCalls != 1 {
		t.Errorf("Expected 1 API call, got %d", fake.threadCalls)
	}

	r.Forget("cust-1", "vend-1")
	r.Resolve(context.Background(), "cust-1", "vend-1")
	if fake.threadCalls != 2 {
		t.Errorf("Expected a fresh call after Forget, got %d calls", fake.threadCalls)
	}
}

// TestResolver_SharesInFlight concurrent callers wait for the same request
func TestResolver_SharesInFlight(t *testing.T) {
	fake := newFakeAPI()
	fake.threadGate = make(chan struct{})
	r := NewResolver(fake)

	var wg sync.WaitGroup
	ids := make([]string, 5)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			th, err := r.Resolve(context.Background(), "cust-1", "vend-1")
			if err == nil {
				ids[i] = th.ID
			}
		}(i)
	}

	// give every caller time to join the in-flight request
	time.Sleep(50 * time.Millisecond)
	close(fake.threadGate)
	wg.Wait()

	fake.mu.Lock()
	calls := fake.threadCalls
	fake.mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected 1 API call, got %d", calls)
	}
	for i, id := range ids {
		if id != "t-vend-1" {
			t.Errorf("Caller %d got %q", i, id)
		}
	}
}

// TestResolver_FailureNotCached errors are returned and retried next time
func TestResolver_FailureNotCached(t *testing.T) {
	fake := newFakeAPI()
	fake.threadErr = errors.New("backend down")
	r := NewResolver(fake)

	if _, err := r.Resolve(context.Background(), "cust-1", "vend-1"); err == nil {
		t.Fatal("Expected an error")
	}

	fake.threadErr = nil
	th, err := r.Resolve(context.Background(), "cust-1", "vend-1")
	if err != nil || th.ID != "t-vend-1" {
		t.Errorf("Expected a retry to succeed, got %v %v", th, err)
	}
	if fake.threadCalls != 2 {
		t.Errorf("Expected 2 API calls, got %d", fake.threadCalls)
	}
}

// TestResolver_CallerGivesUp a waiting caller returns when its context ends
// while the shared request carries on for the others
func TestResolver_CallerGivesUp(t *testing.T) {
	fake := newFakeAPI()
	fake.threadGate = make(chan struct{})
	r := NewResolver(fake)

	first := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background(), "cust-1", "vend-1")
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.Resolve(ctx, "cust-1", "vend-1"); err != context.DeadlineExceeded {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}

	close(fake.threadGate)
	if err := <-first; err != nil {
		t.Errorf("First caller failed: %v", err)
	}
	fake.mu.Lock()
	calls := fake.threadCalls
	fake.mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected 1 API call, got %d", calls)
	}
}

func TestResolver_MissingVendor(t *testing.T) {
	fake := newFakeAPI()
	r := NewResolver(fake)

	if _, err := r.Resolve(context.Background(), "cust-1", "  "); err != ErrMissingVendor {
		t.Errorf("Expected ErrMissingVendor, got %v", err)
	}
	if fake.threadCalls != 0 {
		t.Error("API must not be called without a vendor")
	}
}
