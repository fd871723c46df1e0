// Package offer holds the negotiation lifecycle of a single offer: the
// transition function, the validation rules gating creation, and the price
// derivatives shown next to an offer. Nothing here performs I/O, so the
// client session and the reference backend share the same rules.
package offer

import (
	"errors"
	"fmt"
	"time"

	"eventhub/internal/model"
)

// Action is a transition request on an offer
type Action string

const (
	// Vendor side
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionCounter Action = "counter"

	// Customer side
	ActionAcceptCounter Action = "accept-counter"
	ActionWithdraw      Action = "withdraw"
	ActionPayToken      Action = "pay-token"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed from the
	// offer's current state.
	ErrInvalidTransition = errors.New("invalid offer transition")
	// ErrInvalidCounterPrice is returned when a counter is not strictly
	// between the offered price and the base price.
	ErrInvalidCounterPrice = errors.New("counter price must be greater than the offered price and less than the base price")
	// ErrMissingOrder is returned when a token payment is attempted on an
	// accepted offer that has no order yet.
	ErrMissingOrder = errors.New("accepted offer has no order")
)

// Event carries an action and the data it needs
type Event struct {
	Action Action

	CounterPrice   int64
	CounterMessage string

	// Set by the backend when acceptance creates an order.
	OrderID     string
	TokenAmount int64

	At time.Time
}

var allowed = map[Action][]model.OfferStatus{
	ActionAccept:        {model.OfferPending},
	ActionReject:        {model.OfferPending},
	ActionCounter:       {model.OfferPending},
	ActionAcceptCounter: {model.OfferCountered},
	ActionWithdraw:      {model.OfferPending, model.OfferCountered},
	ActionPayToken:      {model.OfferAccepted},
}

// Can reports whether action is allowed from the offer's current state
func Can(o model.Offer, action Action) bool {
	if action == ActionPayToken && o.TokenPaid {
		return false
	}
	for _, s := range allowed[action] {
		if o.Status == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible
func Terminal(o model.Offer) bool {
	switch o.Status {
	case model.OfferRejected, model.OfferWithdrawn:
		return true
	case model.OfferAccepted:
		return o.TokenPaid
	}
	return false
}

// Transition applies ev to o and returns the resulting offer. On error the
// input offer is returned unchanged.
func Transition(o model.Offer, ev Event) (model.Offer, error) {
	if !Can(o, ev.Action) {
		return o, fmt.Errorf("%w: cannot %s a %s offer", ErrInvalidTransition, ev.Action, o.Status)
	}

	next := o
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	switch ev.Action {
	case ActionAccept, ActionAcceptCounter:
		next.Status = model.OfferAccepted
		if ev.OrderID != "" {
			next.OrderID = model.String(ev.OrderID)
			next.TokenAmount = model.Int64(ev.TokenAmount)
		}
	case ActionReject:
		next.Status = model.OfferRejected
	case ActionCounter:
		base := EffectiveBasePrice(o)
		if ev.CounterPrice <= o.OfferedPrice || ev.CounterPrice >= base {
			return o, ErrInvalidCounterPrice
		}
		next.Status = model.OfferCountered
		next.CounterPrice = model.Int64(ev.CounterPrice)
		next.CounterMessage = ev.CounterMessage
	case ActionWithdraw:
		next.Status = model.OfferWithdrawn
	case ActionPayToken:
		if o.OrderID == nil || *o.OrderID == "" {
			return o, ErrMissingOrder
		}
		next.TokenPaid = true
	}

	next.UpdatedAt = at
	return next, nil
}
