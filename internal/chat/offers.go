package chat

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"eventhub/internal/model"
)

// ErrStaleThread is returned when a result arrives for a thread that is no
// longer active
var ErrStaleThread = errors.New("thread is no longer active")

// OffersAPI fetches the offers of a thread
type OffersAPI interface {
	GetOffersByThread(ctx context.Context, threadID string) ([]model.Offer, error)
}

// OfferRepository is the client's view of a thread's offers. Refresh is the
// only way the view changes; mutations go to the backend and are followed by
// a refresh.
type OfferRepository interface {
	Refresh(ctx context.Context, threadID string) ([]model.Offer, error)
	Snapshot() []model.Offer
	Find(offerID string) (model.Offer, bool)
}

// OfferStore is the OfferRepository backed by the HTTP API
type OfferStore struct {
	api OffersAPI

	mu       sync.Mutex
	threadID string
	offers   []model.Offer
}

// NewOfferStore creates an empty store
func NewOfferStore(api OffersAPI) *OfferStore {
	return &OfferStore{api: api}
}

// Reset empties the store and binds it to threadID
func (s *OfferStore) Reset(threadID string) {
	s.mu.Lock()
	s.threadID = threadID
	s.offers = nil
	s.mu.Unlock()
}

// Refresh replaces the offers with the backend's list. On error, or when the
// store was rebound to another thread meanwhile, the current list is kept.
func (s *OfferStore) Refresh(ctx context.Context, threadID string) ([]model.Offer, error) {
	offers, err := s.api.GetOffersByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.threadID != threadID {
		return offers, ErrStaleThread
	}
	s.offers = offers
	return append([]model.Offer(nil), offers...), nil
}

// Snapshot returns a copy of the current offers
func (s *OfferStore) Snapshot() []model.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Offer(nil), s.offers...)
}

// Find returns the offer with the given id
func (s *OfferStore) Find(offerID string) (model.Offer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.offers {
		if o.ID == offerID {
			return o, true
		}
	}
	return model.Offer{}, false
}
