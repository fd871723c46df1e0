// Package payment drives the token deposit of an accepted offer: the amounts
// shown to the customer, the call to the payment gateway, and the refresh
// that makes the paid state visible.
package payment

import (
	"context"
	"log"
	"sync"

	"github.com/pkg/errors"

	"eventhub/internal/model"
	"eventhub/internal/offer"
)

// Methods are the accepted payment methods
var Methods = []string{"card", "upi", "netbanking", "wallet"}

var (
	// ErrNotPayable is returned when an offer has no token due
	ErrNotPayable = errors.New("offer has no token payment due")
	// ErrNotOpen is returned by Pay when the flow is closed
	ErrNotOpen = errors.New("payment flow is not open")
	// ErrInProgress is returned while a payment is being processed
	ErrInProgress = errors.New("payment already in progress")
	// ErrInvalidMethod is returned for an unknown payment method
	ErrInvalidMethod = errors.New("please select a payment method")
)

// estimateFactor derives a total from a token when the agreed price is
// unknown. It assumes the standard token share.
const estimateFactor = 100 / offer.TokenPercent

// Summary is what the customer sees before paying
type Summary struct {
	OfferID       string
	OrderID       string
	TokenAmount   int64
	TotalAmount   int64
	BalanceAmount int64
	TokenPercent  float64
	// TotalIsEstimate is set when TotalAmount was derived from the token
	TotalIsEstimate bool
}

// Payable reports whether o is accepted with an order whose token is unpaid
func Payable(o model.Offer) bool {
	return o.Status == model.OfferAccepted && o.OrderID != nil && *o.OrderID != "" && !o.TokenPaid
}

// SummaryFor computes the amounts for o's token payment
func SummaryFor(o model.Offer) (Summary, error) {
	if !Payable(o) {
		return Summary{}, ErrNotPayable
	}

	total := offer.AgreedPrice(o)
	token := int64(0)
	if o.TokenAmount != nil {
		token = *o.TokenAmount
	}
	if token <= 0 {
		token = offer.TokenAmount(total)
	}

	s := Summary{OfferID: o.ID, OrderID: *o.OrderID, TokenAmount: token, TotalAmount: total}
	if s.TotalAmount <= 0 {
		s.TotalAmount = token * estimateFactor
		s.TotalIsEstimate = true
	}
	s.BalanceAmount = s.TotalAmount - s.TokenAmount
	if s.TotalAmount > 0 {
		s.TokenPercent = float64(s.TokenAmount) / float64(s.TotalAmount) * 100
	}
	return s, nil
}

// Request is one token payment
type Request struct {
	OrderID     string
	TokenAmount int64
	TotalAmount int64
	Method      string
}

// Receipt confirms a payment
type Receipt struct {
	PaymentID string
	Status    string
}

// Gateway charges token payments
type Gateway interface {
	Pay(ctx context.Context, req Request) (Receipt, error)
}

// Flow is the payment dialog of one offer. It is opened for an accepted
// offer, pays once, then closes and refreshes the offers.
type Flow struct {
	gateway Gateway
	refresh func(ctx context.Context) error

	mu      sync.Mutex
	open    bool
	paying  bool
	summary Summary
	receipt *Receipt
}

// NewFlow creates a closed flow. refresh may be nil.
func NewFlow(gateway Gateway, refresh func(ctx context.Context) error) *Flow {
	return &Flow{gateway: gateway, refresh: refresh}
}

// Open prepares the flow for o
func (f *Flow) Open(o model.Offer) (Summary, error) {
	s, err := SummaryFor(o)
	if err != nil {
		return Summary{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paying {
		return Summary{}, ErrInProgress
	}
	f.open = true
	f.summary = s
	f.receipt = nil
	return s, nil
}

// IsOpen reports whether the flow is waiting for a payment
func (f *Flow) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Summary returns the amounts of the open flow
func (f *Flow) Summary() Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary
}

// Receipt returns the last successful payment, if any
func (f *Flow) Receipt() *Receipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt
}

// Cancel closes the flow without paying
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.paying {
		f.open = false
	}
}

// Pay charges the token with method. On success the flow closes and the
// refresh callback runs; a failed refresh is logged, not returned, because
// the payment itself went through. On failure the flow stays open.
func (f *Flow) Pay(ctx context.Context, method string) (Receipt, error) {
	if !validMethod(method) {
		return Receipt{}, ErrInvalidMethod
	}

	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return Receipt{}, ErrNotOpen
	}
	if f.paying {
		f.mu.Unlock()
		return Receipt{}, ErrInProgress
	}
	f.paying = true
	s := f.summary
	f.mu.Unlock()

	receipt, err := f.gateway.Pay(ctx, Request{
		OrderID:     s.OrderID,
		TokenAmount: s.TokenAmount,
		TotalAmount: s.TotalAmount,
		Method:      method,
	})

	f.mu.Lock()
	f.paying = false
	if err == nil {
		f.open = false
		f.receipt = &receipt
	}
	f.mu.Unlock()

	if err != nil {
		return Receipt{}, errors.Wrapf(err, "token payment for order %s", s.OrderID)
	}

	log.Printf("[Payment] ✅ Token of %d paid for order %s (%s)", s.TokenAmount, s.OrderID, receipt.PaymentID)
	if f.refresh != nil {
		if rerr := f.refresh(ctx); rerr != nil {
			log.Printf("[Payment] ⚠️ Refresh after payment failed: %v", rerr)
		}
	}
	return receipt, nil
}

func validMethod(method string) bool {
	for _, m := range Methods {
		if m == method {
			return true
		}
	}
	return false
}
