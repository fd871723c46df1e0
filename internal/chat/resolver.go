// Package chat is the client side of a negotiation conversation. It keeps the
// message history and the offers of the active thread in sync with the
// backend, sends through the real-time channel with an HTTP fallback, and
// gates offer mutations with the same rules the backend enforces.
package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"eventhub/internal/model"
)

// ErrMissingVendor is returned when a thread is requested without a vendor
var ErrMissingVendor = errors.New("vendor id is required")

// ThreadAPI creates or finds the conversation with a vendor
type ThreadAPI interface {
	GetOrCreateThread(ctx context.Context, vendorID string) (*model.Thread, error)
}

// Resolver maps a (customer, vendor) pair to its thread. Results are cached;
// concurrent lookups for the same pair share one request. Failures are not
// cached so the next call retries.
type Resolver struct {
	api   ThreadAPI
	group singleflight.Group

	mu      sync.Mutex
	threads map[string]model.Thread
}

// NewResolver creates a resolver backed by api
func NewResolver(api ThreadAPI) *Resolver {
	return &Resolver{
		api:     api,
		threads: make(map[string]model.Thread),
	}
}

func pairKey(customerID, vendorID string) string {
	return customerID + "/" + vendorID
}

// Resolve returns the thread between customerID and vendorID
func (r *Resolver) Resolve(ctx context.Context, customerID, vendorID string) (*model.Thread, error) {
	vendorID = strings.TrimSpace(vendorID)
	if vendorID == "" {
		return nil, ErrMissingVendor
	}
	key := pairKey(customerID, vendorID)

	r.mu.Lock()
	if t, ok := r.threads[key]; ok {
		r.mu.Unlock()
		return &t, nil
	}
	r.mu.Unlock()

	// the shared call outlives any one caller giving up
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		thread, err := r.api.GetOrCreateThread(shared, vendorID)
		if err != nil {
			return nil, err
		}
		if thread == nil {
			return nil, errors.Errorf("no thread returned for vendor %s", vendorID)
		}
		r.mu.Lock()
		r.threads[key] = *thread
		r.mu.Unlock()
		return *thread, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		t := res.Val.(model.Thread)
		return &t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Forget drops the cached thread for a pair
func (r *Resolver) Forget(customerID, vendorID string) {
	r.mu.Lock()
	delete(r.threads, pairKey(customerID, vendorID))
	r.mu.Unlock()
}
