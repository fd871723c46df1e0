package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// GetOrCreateThread handles POST /chat/threads
func (h *Handler) GetOrCreateThread(w http.ResponseWriter, r *http.Request) {
	log.Printf("[POST /chat/threads] Request received from %s", r.RemoteAddr)

	caller, ok := identify(w, r)
	if !ok {
		return
	}

	var req struct {
		VendorID string `json:"vendorId"`
	}
	if !decode(w, r, &req) {
		return
	}

	t, err := h.Service.GetOrCreateThread(r.Context(), caller, req.VendorID)
	if err != nil {
		fail(w, r, err)
		return
	}

	log.Printf("[POST /chat/threads] ✅ Thread %s for customer=%s vendor=%s", t.ID, t.CustomerID, t.VendorID)
	writeJSON(w, http.StatusOK, t)
}

// ListThreads handles GET /chat/threads
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	caller, ok := identify(w, r)
	if !ok {
		return
	}

	threads, err := h.Service.ListThreads(r.Context(), caller)
	if err != nil {
		fail(w, r, err)
		return
	}

	log.Printf("%s ✅ Returned %d threads for %s", route(r), len(threads), caller.UserID)
	writeJSON(w, http.StatusOK, threads)
}

// GetMessages handles GET /chat/threads/{id}/messages
// 新しい順に1ページ分を返す
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]

	caller, ok := identify(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	result, err := h.Service.ListMessages(r.Context(), caller, threadID, page, size)
	if err != nil {
		fail(w, r, err)
		return
	}

	log.Printf("%s ✅ Returned %d of %d messages", route(r), len(result.Content), result.Total)
	writeJSON(w, http.StatusOK, result)
}

// CreateMessage handles POST /chat/threads/{id}/messages, the fallback used
// when the real-time channel is unavailable
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]

	caller, ok := identify(w, r)
	if !ok {
		return
	}

	var req struct {
		Content  string `json:"content"`
		ClientID string `json:"clientId"`
	}
	if !decode(w, r, &req) {
		return
	}

	msg, err := h.Service.SendMessage(r.Context(), caller, threadID, req.Content, req.ClientID)
	if err != nil {
		fail(w, r, err)
		return
	}

	log.Printf("%s ✅ Created message: ID=%s", route(r), msg.ID)
	writeJSON(w, http.StatusCreated, msg)
}

// GetListing handles GET /listings/{id}
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.Service.GetListing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}
