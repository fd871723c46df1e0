package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eventhub/internal/model"
)

// fakeAPI is an in-memory backend. Gates, when set, block the matching call
// until closed.
type fakeAPI struct {
	mu sync.Mutex

	threadCalls int
	threadErr   error
	threadGate  chan struct{}

	history     map[string][]model.Message
	historyGate map[string]chan struct{}
	historyErr  error

	offers    map[string][]model.Offer
	offersErr error

	sent    []model.Message
	sendErr error

	created    []model.CreateOfferRequest
	createErr  error
	createGate chan struct{}

	accepted    []string
	acceptErr   error
	acceptGate  chan struct{}
	withdrawn   []string
	withdrawErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		history:     make(map[string][]model.Message),
		historyGate: make(map[string]chan struct{}),
		offers:      make(map[string][]model.Offer),
	}
}

func (f *fakeAPI) GetOrCreateThread(ctx context.Context, vendorID string) (*model.Thread, error) {
	f.mu.Lock()
	f.threadCalls++
	gate, err := f.threadGate, f.threadErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &model.Thread{ID: "t-" + vendorID, CustomerID: "cust-1", VendorID: vendorID}, nil
}

func (f *fakeAPI) GetMessages(ctx context.Context, threadID string, page, size int) (*model.MessagePage, error) {
	f.mu.Lock()
	gate := f.historyGate[threadID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	msgs := f.history[threadID]
	if len(msgs) > size {
		msgs = msgs[:size]
	}
	return &model.MessagePage{Content: append([]model.Message(nil), msgs...), Page: page, Size: size, Total: len(f.history[threadID])}, nil
}

func (f *fakeAPI) GetOffersByThread(ctx context.Context, threadID string) ([]model.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offersErr != nil {
		return nil, f.offersErr
	}
	return append([]model.Offer(nil), f.offers[threadID]...), nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, threadID, content, clientID string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	m := model.Message{
		ID:         fmt.Sprintf("m-%d", len(f.sent)+1),
		ThreadID:   threadID,
		SenderID:   "cust-1",
		SenderType: model.SenderCustomer,
		Content:    content,
		ClientID:   clientID,
		CreatedAt:  time.Now(),
	}
	f.sent = append(f.sent, m)
	return &m, nil
}

func (f *fakeAPI) CreateOffer(ctx context.Context, req model.CreateOfferRequest) (*model.Offer, error) {
	f.mu.Lock()
	gate := f.createGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	o := model.Offer{
		ID:              fmt.Sprintf("o-%d", len(f.created)),
		ThreadID:        req.ThreadID,
		ListingID:       req.ListingID,
		OriginalPrice:   10000,
		CustomizedPrice: req.CustomizedPrice,
		OfferedPrice:    req.OfferedPrice,
		Status:          model.OfferPending,
		EventType:       req.EventType,
		EventDate:       req.EventDate,
		CreatedAt:       time.Now(),
	}
	f.offers[req.ThreadID] = append(f.offers[req.ThreadID], o)
	return &o, nil
}

func (f *fakeAPI) AcceptCounterOffer(ctx context.Context, offerID string) (*model.Offer, error) {
	f.mu.Lock()
	gate := f.acceptGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, offerID)
	if f.acceptErr != nil {
		return nil, f.acceptErr
	}
	for threadID, offers := range f.offers {
		for i, o := range offers {
			if o.ID != offerID {
				continue
			}
			o.Status = model.OfferAccepted
			o.OrderID = model.String("ord-" + offerID)
			o.TokenAmount = model.Int64((*o.CounterPrice*25 + 50) / 100)
			f.offers[threadID][i] = o
			return &o, nil
		}
	}
	return nil, fmt.Errorf("offer %s not found", offerID)
}

func (f *fakeAPI) WithdrawOffer(ctx context.Context, offerID string) (*model.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawn = append(f.withdrawn, offerID)
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	for threadID, offers := range f.offers {
		for i, o := range offers {
			if o.ID == offerID {
				o.Status = model.OfferWithdrawn
				f.offers[threadID][i] = o
				return &o, nil
			}
		}
	}
	return nil, fmt.Errorf("offer %s not found", offerID)
}

func (f *fakeAPI) GetListing(ctx context.Context, listingID string) (*model.Listing, error) {
	return &model.Listing{ID: listingID, VendorID: "vend-1", Name: "Wedding photography", Price: 10000, Active: true}, nil
}

// fakeTransport records calls in order. connected decides whether sends
// succeed.
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	calls     []string
	sent      []string
}

func (t *fakeTransport) record(call string) {
	t.mu.Lock()
	t.calls = append(t.calls, call)
	t.mu.Unlock()
}

func (t *fakeTransport) SubscribeToThread(threadID string) {
	t.record("subscribe " + threadID)
}

func (t *fakeTransport) UnsubscribeFromThread(threadID string) {
	t.record("unsubscribe " + threadID)
}

func (t *fakeTransport) SendMessage(threadID, content, clientID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return false
	}
	t.sent = append(t.sent, clientID)
	t.calls = append(t.calls, "send "+threadID)
	return true
}

func (t *fakeTransport) SendTypingIndicator(threadID string, isTyping bool) bool {
	t.record(fmt.Sprintf("typing %s %v", threadID, isTyping))
	return true
}

func (t *fakeTransport) SendReadReceipt(threadID string) bool {
	t.record("read " + threadID)
	return true
}

func (t *fakeTransport) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}
