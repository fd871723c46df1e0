package model

import (
	"encoding/json"
	"time"
)

// OfferStatus is the lifecycle state of a negotiation offer
type OfferStatus string

const (
	OfferPending   OfferStatus = "PENDING"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
	OfferCountered OfferStatus = "COUNTERED"
	OfferWithdrawn OfferStatus = "WITHDRAWN"
)

// Active reports whether the offer is still being negotiated
func (s OfferStatus) Active() bool {
	return s == OfferPending || s == OfferCountered
}

// Customization is the structured payload a customer attaches when asking
// for a modified scope. It travels as a serialized string on the offer.
type Customization struct {
	Requirements  string `json:"requirements"`
	CustomPrice   int64  `json:"customPrice"`
	OriginalPrice int64  `json:"originalPrice"`
}

// Encode serializes the customization for Offer.Customization
func (c Customization) Encode() string {
	b, _ := json.Marshal(c)
	return string(b)
}

// DecodeCustomization parses a serialized customization payload
func DecodeCustomization(s string) (*Customization, error) {
	if s == "" {
		return nil, nil
	}
	var c Customization
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Offer is a negotiation proposal tied to one listing within one thread
type Offer struct {
	ID              string      `json:"id"`
	ThreadID        string      `json:"threadId"`
	ListingID       string      `json:"listingId"`
	ListingName     string      `json:"listingName,omitempty"`
	OriginalPrice   int64       `json:"originalPrice"`
	CustomizedPrice *int64      `json:"customizedPrice,omitempty"`
	OfferedPrice    int64       `json:"offeredPrice"`
	CounterPrice    *int64      `json:"counterPrice,omitempty"`
	CounterMessage  string      `json:"counterMessage,omitempty"`
	Message         string      `json:"message,omitempty"`
	Status          OfferStatus `json:"status"`
	Customization   string      `json:"customization,omitempty"`
	EventType       string      `json:"eventType"`
	EventDate       string      `json:"eventDate"`
	EventTime       string      `json:"eventTime,omitempty"`
	VenueAddress    string      `json:"venueAddress,omitempty"`
	GuestCount      *int        `json:"guestCount,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	OrderID         *string     `json:"orderId,omitempty"`
	TokenAmount     *int64      `json:"tokenAmount,omitempty"`
	TokenPaid       bool        `json:"tokenPaid"`
}

// CreateOfferRequest is the payload of POST /offers
type CreateOfferRequest struct {
	ThreadID        string `json:"threadId" validate:"required"`
	ListingID       string `json:"listingId" validate:"required"`
	OfferedPrice    int64  `json:"offeredPrice" validate:"gt=0"`
	CustomizedPrice *int64 `json:"customizedPrice,omitempty" validate:"omitempty,gt=0"`
	Message         string `json:"message,omitempty" validate:"max=2000"`
	Customization   string `json:"customization,omitempty"`
	EventType       string `json:"eventType" validate:"required"`
	EventDate       string `json:"eventDate" validate:"required"`
	EventTime       string `json:"eventTime,omitempty"`
	VenueAddress    string `json:"venueAddress,omitempty"`
	GuestCount      *int   `json:"guestCount,omitempty" validate:"omitempty,gt=0"`
}

// CounterOfferRequest is the payload of POST /vendor/offers/{id}/counter
type CounterOfferRequest struct {
	CounterPrice   int64  `json:"counterPrice" validate:"gt=0"`
	CounterMessage string `json:"counterMessage,omitempty" validate:"max=2000"`
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v
func String(v string) *string { return &v }
