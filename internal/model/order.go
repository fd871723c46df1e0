package model

import "time"

// Listing is the subset of a vendor listing the negotiation core consumes
type Listing struct {
	ID              string `json:"id"`
	VendorID        string `json:"vendorId"`
	Name            string `json:"name"`
	Price           int64  `json:"price"`
	MinimumQuantity int    `json:"minimumQuantity"`
	Unit            string `json:"unit,omitempty"`
	Active          bool   `json:"active"`
}

// OrderStatus of a booking created from an accepted offer
type OrderStatus string

const (
	OrderAwaitingToken OrderStatus = "AWAITING_TOKEN"
	OrderConfirmed     OrderStatus = "CONFIRMED"
)

// Order is created by the backend the moment an offer is accepted
type Order struct {
	ID          string      `json:"id"`
	OfferID     string      `json:"offerId"`
	ThreadID    string      `json:"threadId"`
	CustomerID  string      `json:"customerId"`
	VendorID    string      `json:"vendorId"`
	TotalAmount int64       `json:"totalAmount"`
	TokenAmount int64       `json:"tokenAmount"`
	TokenPaid   bool        `json:"tokenPaid"`
	PaymentID   string      `json:"paymentId,omitempty"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// TokenPaymentRequest is the payload of POST /orders/{id}/token-payment
type TokenPaymentRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=card upi netbanking wallet"`
	Amount        int64  `json:"amount" validate:"gt=0"`
}

// TokenPaymentResponse acknowledges a token payment
type TokenPaymentResponse struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
}
