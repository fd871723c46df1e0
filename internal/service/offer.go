package service

import (
	"context"
	"fmt"

	"eventhub/internal/model"
	"eventhub/internal/notify"
	"eventhub/internal/offer"
	"eventhub/internal/store"
)

// ListOffers returns the thread's offers, oldest first
func (n *Negotiation) ListOffers(ctx context.Context, caller Caller, threadID string) ([]model.Offer, error) {
	if _, err := participant(ctx, n.store, caller, threadID); err != nil {
		return nil, err
	}
	return n.store.ListOffers(ctx, threadID)
}

// CreateOffer records a customer's proposal on one of the thread vendor's
// listings. A listing can carry at most one active offer per thread.
func (n *Negotiation) CreateOffer(ctx context.Context, caller Caller, req model.CreateOfferRequest) (*model.Offer, error) {
	if err := n.check(req); err != nil {
		return nil, err
	}
	if caller.Type != model.SenderCustomer {
		return nil, ErrWrongSide
	}
	if req.Customization != "" {
		if _, err := model.DecodeCustomization(req.Customization); err != nil {
			return nil, fmt.Errorf("%w: customization is malformed", ErrInvalidRequest)
		}
	}

	var created *model.Offer
	var vendorID string
	err := n.store.Tx(ctx, func(tx *store.Store) error {
		t, err := participant(ctx, tx, caller, req.ThreadID)
		if err != nil {
			return err
		}
		listing, err := tx.GetListing(ctx, req.ListingID)
		if err != nil {
			return err
		}
		if !listing.Active || listing.VendorID != t.VendorID {
			return ErrListingUnavailable
		}

		draft := offer.Draft{
			ThreadID:     t.ID,
			ListingID:    listing.ID,
			ListingPrice: listing.Price,
			OfferedPrice: req.OfferedPrice,
			EventType:    req.EventType,
			EventDate:    req.EventDate,
		}
		if req.CustomizedPrice != nil {
			draft.Customize = true
			draft.CustomPrice = *req.CustomizedPrice
		}
		if err := offer.ValidateDraft(draft); err != nil {
			return err
		}

		active, err := tx.HasActiveOffer(ctx, t.ID, listing.ID)
		if err != nil {
			return err
		}
		if active {
			return ErrActiveOffer
		}

		o := &model.Offer{
			ThreadID:        t.ID,
			ListingID:       listing.ID,
			ListingName:     listing.Name,
			OriginalPrice:   listing.Price,
			CustomizedPrice: req.CustomizedPrice,
			OfferedPrice:    req.OfferedPrice,
			Message:         req.Message,
			Status:          model.OfferPending,
			Customization:   req.Customization,
			EventType:       req.EventType,
			EventDate:       req.EventDate,
			EventTime:       req.EventTime,
			VenueAddress:    req.VenueAddress,
			GuestCount:      req.GuestCount,
		}
		if err := tx.CreateOffer(ctx, o); err != nil {
			return err
		}
		created = o
		vendorID = t.VendorID
		return nil
	})
	if err != nil {
		return nil, err
	}

	n.notify(ctx, notify.Notice{
		Kind:     notify.KindNewOffer,
		VendorID: vendorID,
		OfferID:  created.ID,
		Text:     fmt.Sprintf("₹%d offered for %s (%s on %s)", created.OfferedPrice, created.ListingName, created.EventType, created.EventDate),
	})
	return created, nil
}

// Accept is the vendor accepting a pending offer. An order is opened for the
// offered price with the token deposit due.
func (n *Negotiation) Accept(ctx context.Context, caller Caller, offerID string) (*model.Offer, error) {
	o, _, err := n.apply(ctx, caller, model.SenderVendor, offerID, offer.Event{Action: offer.ActionAccept})
	return o, err
}

// Reject is the vendor declining a pending offer
func (n *Negotiation) Reject(ctx context.Context, caller Caller, offerID string) (*model.Offer, error) {
	o, _, err := n.apply(ctx, caller, model.SenderVendor, offerID, offer.Event{Action: offer.ActionReject})
	return o, err
}

// Counter is the vendor proposing a price between the offer and the base price
func (n *Negotiation) Counter(ctx context.Context, caller Caller, offerID string, req model.CounterOfferRequest) (*model.Offer, error) {
	if err := n.check(req); err != nil {
		return nil, err
	}
	o, _, err := n.apply(ctx, caller, model.SenderVendor, offerID, offer.Event{
		Action:         offer.ActionCounter,
		CounterPrice:   req.CounterPrice,
		CounterMessage: req.CounterMessage,
	})
	return o, err
}

// AcceptCounter is the customer agreeing to the vendor's counter price
func (n *Negotiation) AcceptCounter(ctx context.Context, caller Caller, offerID string) (*model.Offer, error) {
	o, vendorID, err := n.apply(ctx, caller, model.SenderCustomer, offerID, offer.Event{Action: offer.ActionAcceptCounter})
	if err != nil {
		return nil, err
	}
	n.notify(ctx, notify.Notice{
		Kind:     notify.KindCounterAccepted,
		VendorID: vendorID,
		OfferID:  o.ID,
		Text:     fmt.Sprintf("Counter of ₹%d accepted for %s", offer.AgreedPrice(*o), o.ListingName),
	})
	return o, nil
}

// Withdraw is the customer retracting an offer that is still open
func (n *Negotiation) Withdraw(ctx context.Context, caller Caller, offerID string) (*model.Offer, error) {
	o, vendorID, err := n.apply(ctx, caller, model.SenderCustomer, offerID, offer.Event{Action: offer.ActionWithdraw})
	if err != nil {
		return nil, err
	}
	n.notify(ctx, notify.Notice{
		Kind:     notify.KindOfferWithdrawn,
		VendorID: vendorID,
		OfferID:  o.ID,
		Text:     fmt.Sprintf("Offer for %s was withdrawn", o.ListingName),
	})
	return o, nil
}

// apply loads the offer, checks the caller is the expected side of its
// thread, runs the transition and persists the result in one transaction.
// Acceptance creates the order in the same transaction.
func (n *Negotiation) apply(ctx context.Context, caller Caller, side model.SenderType, offerID string, ev offer.Event) (*model.Offer, string, error) {
	if caller.Type != side {
		return nil, "", ErrWrongSide
	}

	var result model.Offer
	var vendorID string
	err := n.store.Tx(ctx, func(tx *store.Store) error {
		current, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		t, err := participant(ctx, tx, caller, current.ThreadID)
		if err != nil {
			return err
		}
		vendorID = t.VendorID

		if !offer.Can(*current, ev.Action) {
			return fmt.Errorf("%w: cannot %s a %s offer", offer.ErrInvalidTransition, ev.Action, current.Status)
		}

		ev.At = n.now()
		if ev.Action == offer.ActionAccept || ev.Action == offer.ActionAcceptCounter {
			total := offer.AgreedPrice(*current)
			ord := &model.Order{
				OfferID:     current.ID,
				ThreadID:    t.ID,
				CustomerID:  t.CustomerID,
				VendorID:    t.VendorID,
				TotalAmount: total,
				TokenAmount: offer.TokenAmount(total),
				Status:      model.OrderAwaitingToken,
			}
			if err := tx.CreateOrder(ctx, ord); err != nil {
				return err
			}
			ev.OrderID = ord.ID
			ev.TokenAmount = ord.TokenAmount
		}

		next, err := offer.Transition(*current, ev)
		if err != nil {
			return err
		}
		if err := tx.UpdateOffer(ctx, &next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return &result, vendorID, nil
}

// PayToken records the customer's token deposit for an order. The amount
// must match the deposit fixed when the offer was accepted.
func (n *Negotiation) PayToken(ctx context.Context, caller Caller, orderID string, req model.TokenPaymentRequest) (*model.TokenPaymentResponse, error) {
	if err := n.check(req); err != nil {
		return nil, err
	}
	if caller.Type != model.SenderCustomer {
		return nil, ErrWrongSide
	}

	paymentID := "pay_" + store.NewID()
	var paid *model.Order
	err := n.store.Tx(ctx, func(tx *store.Store) error {
		ord, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if ord.CustomerID != caller.UserID {
			return ErrForbidden
		}
		if ord.TokenPaid {
			return ErrAlreadyPaid
		}
		if req.Amount != ord.TokenAmount {
			return fmt.Errorf("%w: amount must equal the token amount of ₹%d", ErrInvalidRequest, ord.TokenAmount)
		}

		current, err := tx.GetOffer(ctx, ord.OfferID)
		if err != nil {
			return err
		}
		next, err := offer.Transition(*current, offer.Event{Action: offer.ActionPayToken, At: n.now()})
		if err != nil {
			return err
		}
		if err := tx.UpdateOffer(ctx, &next); err != nil {
			return err
		}
		if err := tx.MarkOrderPaid(ctx, ord.ID, paymentID); err != nil {
			return err
		}
		paid = ord
		return nil
	})
	if err != nil {
		return nil, err
	}

	n.notify(ctx, notify.Notice{
		Kind:     notify.KindTokenPaid,
		VendorID: paid.VendorID,
		OfferID:  paid.OfferID,
		Text:     fmt.Sprintf("₹%d token received via %s, balance ₹%d", paid.TokenAmount, req.PaymentMethod, paid.TotalAmount-paid.TokenAmount),
	})
	return &model.TokenPaymentResponse{PaymentID: paymentID, OrderID: paid.ID, Status: string(model.OrderConfirmed)}, nil
}
