package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"eventhub/internal/api"
	"eventhub/internal/chat"
	"eventhub/internal/model"
	"eventhub/internal/offer"
	"eventhub/internal/payment"
)

func TestApplyFields(t *testing.T) {
	f := &chat.OfferForm{ListingID: "lst-1", ListingPrice: 10000}
	args := strings.Fields("price=8000 type=Wedding date=2025-06-01 guests=150 message=Can you do  June?")

	listingID, err := applyFields(f, args)
	if err != nil {
		t.Fatalf("applyFields failed: %v", err)
	}
	if listingID != "" {
		t.Errorf("No listing was named, got %q", listingID)
	}
	if f.OfferedPrice != 8000 || f.EventType != "Wedding" || f.EventDate != "2025-06-01" || f.GuestCount != 150 {
		t.Errorf("Unexpected form %+v", f)
	}
	if f.Message != "Can you do June?" {
		t.Errorf("Message should take the rest of the line, got %q", f.Message)
	}
	if err := f.Validate("t1"); err != nil {
		t.Errorf("Filled form should validate: %v", err)
	}
}

func TestApplyFields_Errors(t *testing.T) {
	tests := []string{"price", "price=abc", "guests=many", "colour=red", "listing="}
	for _, arg := range tests {
		if _, err := applyFields(&chat.OfferForm{}, []string{arg}); err == nil {
			t.Errorf("Expected an error for %q", arg)
		}
	}
}

func TestCustomize(t *testing.T) {
	f := &chat.OfferForm{ListingID: "lst-1", ListingPrice: 10000, OfferedPrice: 11000}
	if err := customize(f, strings.Fields("12000 two photographers and a drone")); err != nil {
		t.Fatalf("customize failed: %v", err)
	}
	if !f.Customize || f.CustomPrice != 12000 || f.Requirements != "two photographers and a drone" {
		t.Errorf("Unexpected form %+v", f)
	}
	if f.BasePrice() != 12000 {
		t.Errorf("Custom price should become the base, got %d", f.BasePrice())
	}
	if err := customize(f, []string{"-5"}); err == nil {
		t.Error("Negative custom price should be refused")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&api.Error{Status: 409, Message: "an active offer already exists for this listing"}, "an active offer already exists for this listing"},
		{offer.ErrMissingEventType, "Event type is required"},
		{errors.New("usage: /discount <percent>"), "usage: /discount <percent>"},
		{errors.Wrap(errors.New("connection refused"), "POST /offers"), api.GenericError},
		{payment.ErrInvalidMethod, payment.ErrInvalidMethod.Error()},
	}
	for _, tt := range tests {
		if got := describe(tt.err); got != tt.want {
			t.Errorf("describe(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestView_Due(t *testing.T) {
	var buf bytes.Buffer
	v := newView(&buf, "cust-1")
	v.due(payment.Summary{OrderID: "ord-1", TokenAmount: 2000, TotalAmount: 8000, BalanceAmount: 6000, TokenPercent: 25, TotalIsEstimate: true})

	out := buf.String()
	if !strings.Contains(out, "ord-1") || !strings.Contains(out, "~8000") || !strings.Contains(out, "card|upi|netbanking|wallet") {
		t.Errorf("Unexpected output %q", out)
	}
}

// TestCommands_VendorOnly customers cannot counter or reject
func TestCommands_VendorOnly(t *testing.T) {
	var buf bytes.Buffer
	c := &commands{
		form: &chat.OfferForm{},
		view: newView(&buf, "cust-1"),
		side: model.SenderCustomer,
	}

	for _, line := range []string{"/counter o1 9000", "/reject o1"} {
		buf.Reset()
		if !c.run(context.Background(), line) {
			t.Fatalf("%s should not quit", line)
		}
		if !strings.Contains(buf.String(), "only vendors") {
			t.Errorf("%s: unexpected output %q", line, buf.String())
		}
	}
	if c.run(context.Background(), "/quit") {
		t.Error("/quit should stop the loop")
	}
}

func TestCommands_Discount(t *testing.T) {
	var buf bytes.Buffer
	c := &commands{
		form: &chat.OfferForm{ListingID: "lst-1", ListingPrice: 10000},
		view: newView(&buf, "cust-1"),
		side: model.SenderCustomer,
	}

	c.run(context.Background(), "/discount 20%")
	if c.form.OfferedPrice != 8000 {
		t.Errorf("Expected 8000, got %d", c.form.OfferedPrice)
	}
	buf.Reset()
	c.run(context.Background(), "/discount 12")
	if !strings.Contains(buf.String(), "no quick discount") || c.form.OfferedPrice != 8000 {
		t.Errorf("Unknown rung should be refused, got %q", buf.String())
	}
}

// newBackendCommands wires commands to a stub backend serving two listings
// and one inbox entry
func newBackendCommands(t *testing.T) (*commands, *bytes.Buffer) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/listings/lst-2":
			json.NewEncoder(w).Encode(model.Listing{ID: "lst-2", VendorID: "vend-1", Name: "Catering", Price: 20000, Active: true})
		case "/chat/threads":
			json.NewEncoder(w).Encode([]model.ThreadSummary{{
				Thread:      model.Thread{ID: "t9", CustomerID: "cust-9", VendorID: "vend-1"},
				LastMessage: "Is June free?",
				UnreadCount: 2,
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	t.Cleanup(server.Close)

	client := api.NewClient(server.URL, "vend-1", model.SenderVendor)
	sess := chat.NewSession(chat.Config{UserID: "vend-1", UserType: model.SenderVendor}, client)
	t.Cleanup(sess.Close)

	var buf bytes.Buffer
	return &commands{
		sess:   sess,
		client: client,
		form:   &chat.OfferForm{ListingID: "lst-1", ListingPrice: 10000},
		view:   newView(&buf, "vend-1"),
		side:   model.SenderVendor,
	}, &buf
}

// TestCommands_SetListing switching listings fetches the new base price
func TestCommands_SetListing(t *testing.T) {
	c, buf := newBackendCommands(t)

	c.run(context.Background(), "/set listing=lst-2 price=15000")
	if c.form.ListingID != "lst-2" || c.form.ListingPrice != 20000 || c.form.OfferedPrice != 15000 {
		t.Fatalf("Unexpected form %+v", c.form)
	}
	if err := c.form.Validate("t1"); err == nil || !strings.Contains(err.Error(), "Event type") {
		t.Errorf("Only the event type should be missing, got %v", err)
	}
	if !strings.Contains(buf.String(), "Catering") {
		t.Errorf("Expected the listing to be shown, got %q", buf.String())
	}

	buf.Reset()
	c.run(context.Background(), "/set listing=missing")
	if c.form.ListingID != "lst-2" || !strings.Contains(buf.String(), "not found") {
		t.Errorf("An unknown listing must leave the form alone, got %+v and %q", c.form, buf.String())
	}
}

// TestCommands_Threads the inbox shows the peer and unread count
func TestCommands_Threads(t *testing.T) {
	c, buf := newBackendCommands(t)

	c.run(context.Background(), "/threads")
	out := buf.String()
	if !strings.Contains(out, "t9 with cust-9 (2 unread): Is June free?") {
		t.Errorf("Unexpected inbox %q", out)
	}

	buf.Reset()
	c.run(context.Background(), "/open")
	if !strings.Contains(buf.String(), "usage: /open") {
		t.Errorf("Unexpected output %q", buf.String())
	}
}
