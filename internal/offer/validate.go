package offer

import (
	"fmt"
	"strings"
)

// ValidationError is a client-side refusal carrying a user-facing message.
// No request is sent when one of these is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrMissingThread     = &ValidationError{Field: "threadId", Message: "No active conversation. Please start a chat first"}
	ErrInvalidListing    = &ValidationError{Field: "listingId", Message: "Listing information is missing"}
	ErrInvalidPrice      = &ValidationError{Field: "offeredPrice", Message: "Please enter a valid offer price"}
	ErrCustomBelowOrigin = &ValidationError{Field: "customizedPrice", Message: "Customized price cannot be less than original price"}
	ErrPriceNotBelowBase = &ValidationError{Field: "offeredPrice", Message: "Offer price must be less than base price"}
	ErrMissingEventType  = &ValidationError{Field: "eventType", Message: "Event type is required"}
	ErrMissingEventDate  = &ValidationError{Field: "eventDate", Message: "Event date is required"}
)

// Draft is everything needed to decide whether an offer may be created
type Draft struct {
	ThreadID  string
	ListingID any

	ListingPrice int64
	// Customize enables the customized scope; CustomPrice then replaces the
	// listing price as the base.
	Customize   bool
	CustomPrice int64

	OfferedPrice int64
	EventType    string
	EventDate    string
}

// BasePrice is the price the offer must undercut
func (d Draft) BasePrice() int64 {
	if d.Customize && d.CustomPrice > 0 {
		return d.CustomPrice
	}
	return d.ListingPrice
}

// IsValidListingID reports whether id, coerced to a string, names a listing.
// Values that stringify to "", "undefined" or "null" do not.
func IsValidListingID(id any) bool {
	if id == nil {
		return false
	}
	s := strings.TrimSpace(fmt.Sprint(id))
	return s != "" && s != "undefined" && s != "null" && s != "<nil>"
}

// ValidateDraft checks the creation preconditions in order and returns the
// first one that fails.
func ValidateDraft(d Draft) error {
	if strings.TrimSpace(d.ThreadID) == "" {
		return ErrMissingThread
	}
	if !IsValidListingID(d.ListingID) {
		return ErrInvalidListing
	}
	if d.OfferedPrice <= 0 {
		return ErrInvalidPrice
	}
	if d.Customize && d.CustomPrice > 0 && d.CustomPrice < d.ListingPrice {
		return ErrCustomBelowOrigin
	}
	if d.OfferedPrice >= d.BasePrice() {
		return ErrPriceNotBelowBase
	}
	if strings.TrimSpace(d.EventType) == "" {
		return ErrMissingEventType
	}
	if strings.TrimSpace(d.EventDate) == "" {
		return ErrMissingEventDate
	}
	return nil
}
