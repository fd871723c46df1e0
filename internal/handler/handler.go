package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"eventhub/internal/config"
	"eventhub/internal/hub"
	"eventhub/internal/model"
	"eventhub/internal/offer"
	"eventhub/internal/service"
	"eventhub/internal/store"
)

// Handler holds application dependencies
type Handler struct {
	Service *service.Negotiation
	Hub     *hub.Hub
	Config  config.Config
}

// New creates a new Handler with the given dependencies
func New(svc *service.Negotiation, hb *hub.Hub, cfg config.Config) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hb,
		Config:  cfg,
	}
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// Conversations
	r.HandleFunc("/chat/threads", h.ListThreads).Methods("GET")
	r.HandleFunc("/chat/threads", h.GetOrCreateThread).Methods("POST")
	r.HandleFunc("/chat/threads/{id}/messages", h.GetMessages).Methods("GET")
	r.HandleFunc("/chat/threads/{id}/messages", h.CreateMessage).Methods("POST")
	r.HandleFunc("/chat/threads/{id}/offers", h.GetOffers).Methods("GET")

	// Listings
	r.HandleFunc("/listings/{id}", h.GetListing).Methods("GET")

	// Offers, customer side
	r.HandleFunc("/offers", h.CreateOffer).Methods("POST")
	r.HandleFunc("/offers/{id}/accept-counter", h.AcceptCounter).Methods("POST")
	r.HandleFunc("/offers/{id}/withdraw", h.WithdrawOffer).Methods("POST")

	// Offers, vendor side
	r.HandleFunc("/vendor/offers/{id}/accept", h.VendorAccept).Methods("POST")
	r.HandleFunc("/vendor/offers/{id}/reject", h.VendorReject).Methods("POST")
	r.HandleFunc("/vendor/offers/{id}/counter", h.VendorCounter).Methods("POST")

	// Payments
	r.HandleFunc("/orders/{id}/token-payment", h.TokenPayment).Methods("POST")

	// WebSocket
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	return r
}

func route(r *http.Request) string {
	return fmt.Sprintf("[%s %s]", r.Method, r.URL.Path)
}

// callerFrom reads the caller identity from headers, falling back to query
// parameters for WebSocket clients that cannot set headers
func callerFrom(r *http.Request) (service.Caller, bool) {
	id := r.Header.Get("X-User-ID")
	typ := r.Header.Get("X-User-Type")
	if id == "" {
		id = r.URL.Query().Get("userId")
	}
	if typ == "" {
		typ = r.URL.Query().Get("userType")
	}

	c := service.Caller{UserID: strings.TrimSpace(id), Type: model.SenderType(strings.ToUpper(strings.TrimSpace(typ)))}
	if c.UserID == "" || !c.Type.Valid() {
		return c, false
	}
	return c, true
}

// identify resolves the caller or writes a 401
func identify(w http.ResponseWriter, r *http.Request) (service.Caller, bool) {
	c, ok := callerFrom(r)
	if !ok {
		log.Printf("%s ❌ Unauthorized: missing or invalid user identity", route(r))
		writeError(w, http.StatusUnauthorized, "Missing user identity")
	}
	return c, ok
}

// decode reads a JSON body limited to 1MB
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Printf("%s ❌ Bad Request: %v", route(r), err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a service error to a status code and logs it
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s ❌ Internal error: %v", route(r), err)
	} else {
		log.Printf("%s ❌ %d: %v", route(r), status, err)
	}
	writeError(w, status, msg)
}

func statusFor(err error) (int, string) {
	var verr *offer.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), service.ErrInvalidRequest.Error()+": ")
	case errors.Is(err, offer.ErrInvalidCounterPrice):
		return http.StatusBadRequest, offer.ErrInvalidCounterPrice.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrWrongSide):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrListingUnavailable):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, offer.ErrInvalidTransition),
		errors.Is(err, offer.ErrMissingOrder),
		errors.Is(err, service.ErrActiveOffer),
		errors.Is(err, service.ErrAlreadyPaid):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, "Internal server error"
}
