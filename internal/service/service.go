// Package service implements the backend side of a negotiation: who may see a
// thread, which offers may be created, and what happens when one is accepted.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"eventhub/internal/model"
	"eventhub/internal/notify"
	"eventhub/internal/store"
)

var (
	ErrForbidden          = errors.New("you are not a participant of this conversation")
	ErrWrongSide          = errors.New("this action is not available to you")
	ErrListingUnavailable = errors.New("listing is not available for offers")
	ErrActiveOffer        = errors.New("an active offer already exists for this listing")
	ErrAlreadyPaid        = errors.New("token has already been paid for this order")
	ErrInvalidRequest     = errors.New("invalid request")
)

// Caller identifies who is making a request
type Caller struct {
	UserID string
	Type   model.SenderType
}

// IsVendor reports whether the caller acts as a vendor
func (c Caller) IsVendor() bool { return c.Type == model.SenderVendor }

// Publisher receives real-time events
type Publisher interface {
	Publish(ctx context.Context, ev model.Event) error
}

// Negotiation is the backend service behind the REST and WebSocket handlers
type Negotiation struct {
	store    *store.Store
	events   Publisher
	notifier notify.Notifier
	validate *validator.Validate
	now      func() time.Time
}

// New creates the service. notifier may be nil.
func New(st *store.Store, events Publisher, notifier notify.Notifier) *Negotiation {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	return &Negotiation{
		store:    st,
		events:   events,
		notifier: notifier,
		validate: v,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// check runs the struct's validate tags and turns the first failure into a
// readable ErrInvalidRequest
func (n *Negotiation) check(req any) error {
	err := n.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fe.Field() + " is required"
	case "gt":
		msg = fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
}

func (n *Negotiation) publish(ctx context.Context, ev model.Event) {
	if n.events == nil {
		return
	}
	if err := n.events.Publish(ctx, ev); err != nil {
		log.Printf("[Service] ⚠️ Failed to publish %s for thread %s: %v", ev.Type, ev.ThreadID, err)
	}
}

func (n *Negotiation) notify(ctx context.Context, notice notify.Notice) {
	if err := n.notifier.Notify(ctx, notice); err != nil {
		log.Printf("[Service] ⚠️ Failed to notify %s: %v", notice.Kind, err)
	}
}

// participant loads a thread and checks the caller belongs to it
func participant(ctx context.Context, st *store.Store, caller Caller, threadID string) (*model.Thread, error) {
	t, err := st.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	switch caller.Type {
	case model.SenderCustomer:
		if t.CustomerID == caller.UserID {
			return t, nil
		}
	case model.SenderVendor:
		if t.VendorID == caller.UserID {
			return t, nil
		}
	}
	return nil, ErrForbidden
}

// GetListing returns a listing by id
func (n *Negotiation) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	return n.store.GetListing(ctx, id)
}

// CanAccess reports whether the caller may subscribe to the thread
func (n *Negotiation) CanAccess(ctx context.Context, caller Caller, threadID string) error {
	_, err := participant(ctx, n.store, caller, threadID)
	return err
}
