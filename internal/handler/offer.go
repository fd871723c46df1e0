package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"eventhub/internal/model"
	"eventhub/internal/service"
)

// GetOffers handles GET /chat/threads/{id}/offers
func (h *Handler) GetOffers(w http.ResponseWriter, r *http.Request) {
	caller, ok := identify(w, r)
	if !ok {
		return
	}

	offers, err := h.Service.ListOffers(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

// CreateOffer handles POST /offers
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	log.Printf("[POST /offers] Request received from %s", r.RemoteAddr)

	caller, ok := identify(w, r)
	if !ok {
		return
	}

	var req model.CreateOfferRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.Service.CreateOffer(r.Context(), caller, req)
	if err != nil {
		fail(w, r, err)
		return
	}

	log.Printf("[POST /offers] ✅ Created offer: ID=%s, Listing=%s, Price=%d", o.ID, o.ListingID, o.OfferedPrice)
	writeJSON(w, http.StatusCreated, o)
}

type offerAction func(ctx context.Context, caller service.Caller, offerID string) (*model.Offer, error)

// transition runs a body-less offer action
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action offerAction) {
	caller, ok := identify(w, r)
	if !ok {
		return
	}

	o, err := action(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, err)
		return
	}

	log.Printf("%s ✅ Offer %s is now %s", route(r), o.ID, o.Status)
	writeJSON(w, http.StatusOK, o)
}

// AcceptCounter handles POST /offers/{id}/accept-counter
func (h *Handler) AcceptCounter(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.AcceptCounter)
}

// WithdrawOffer handles POST /offers/{id}/withdraw
func (h *Handler) WithdrawOffer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Withdraw)
}

// VendorAccept handles POST /vendor/offers/{id}/accept
func (h *Handler) VendorAccept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Accept)
}

// VendorReject handles POST /vendor/offers/{id}/reject
func (h *Handler) VendorReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Reject)
}

// VendorCounter handles POST /vendor/offers/{id}/counter
func (h *Handler) VendorCounter(w http.ResponseWriter, r *http.Request) {
	caller, ok := identify(w, r)
	if !ok {
		return
	}

	var req model.CounterOfferRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.Service.Counter(r.Context(), caller, mux.Vars(r)["id"], req)
	if err != nil {
		fail(w, r, err)
		return
	}

	log.Printf("%s ✅ Countered offer %s at %d", route(r), o.ID, *o.CounterPrice)
	writeJSON(w, http.StatusOK, o)
}

// TokenPayment handles POST /orders/{id}/token-payment
func (h *Handler) TokenPayment(w http.ResponseWriter, r *http.Request) {
	caller, ok := identify(w, r)
	if !ok {
		return
	}

	var req model.TokenPaymentRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.Service.PayToken(r.Context(), caller, mux.Vars(r)["id"], req)
	if err != nil {
		fail(w, r, err)
		return
	}

	log.Printf("%s ✅ Token paid: payment=%s method=%s", route(r), resp.PaymentID, req.PaymentMethod)
	writeJSON(w, http.StatusOK, resp)
}
