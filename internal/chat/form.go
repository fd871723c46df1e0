package chat

import (
	"strings"

	"eventhub/internal/model"
	"eventhub/internal/offer"
)

// OfferForm is the offer composer. The listing fields survive Clear; the
// rest describes one offer.
type OfferForm struct {
	ListingID    string
	ListingPrice int64

	Customize    bool
	Requirements string
	CustomPrice  int64

	OfferedPrice int64
	Message      string

	EventType    string
	EventDate    string
	EventTime    string
	VenueAddress string
	GuestCount   int
}

// SetListing points the form at a listing
func (f *OfferForm) SetListing(l model.Listing) {
	f.ListingID = l.ID
	f.ListingPrice = l.Price
}

// BasePrice is the price the offer must undercut
func (f OfferForm) BasePrice() int64 {
	return f.draft("").BasePrice()
}

// Discount is the offered price's discount against the base, in percent
func (f OfferForm) Discount() float64 {
	return offer.DiscountPercent(f.BasePrice(), f.OfferedPrice)
}

// Suggestions is the quick-discount ladder for the current base
func (f OfferForm) Suggestions() []offer.Suggestion {
	return offer.QuickDiscounts(f.BasePrice())
}

// ApplySuggestion sets the offered price to the ladder rung with the given
// percentage. It reports whether such a rung exists.
func (f *OfferForm) ApplySuggestion(percent int) bool {
	for _, s := range f.Suggestions() {
		if s.Percent == percent {
			f.OfferedPrice = s.Price
			return true
		}
	}
	return false
}

// Clear resets everything but the listing
func (f *OfferForm) Clear() {
	*f = OfferForm{ListingID: f.ListingID, ListingPrice: f.ListingPrice}
}

// Validate runs the creation rules for threadID
func (f OfferForm) Validate(threadID string) error {
	return offer.ValidateDraft(f.draft(threadID))
}

func (f OfferForm) draft(threadID string) offer.Draft {
	return offer.Draft{
		ThreadID:     threadID,
		ListingID:    f.ListingID,
		ListingPrice: f.ListingPrice,
		Customize:    f.Customize,
		CustomPrice:  f.CustomPrice,
		OfferedPrice: f.OfferedPrice,
		EventType:    f.EventType,
		EventDate:    f.EventDate,
	}
}

// Request builds the create payload for threadID
func (f OfferForm) Request(threadID string) model.CreateOfferRequest {
	req := model.CreateOfferRequest{
		ThreadID:     threadID,
		ListingID:    f.ListingID,
		OfferedPrice: f.OfferedPrice,
		Message:      strings.TrimSpace(f.Message),
		EventType:    strings.TrimSpace(f.EventType),
		EventDate:    strings.TrimSpace(f.EventDate),
		EventTime:    strings.TrimSpace(f.EventTime),
		VenueAddress: strings.TrimSpace(f.VenueAddress),
	}
	if f.Customize && f.CustomPrice > 0 {
		req.CustomizedPrice = model.Int64(f.CustomPrice)
		req.Customization = model.Customization{
			Requirements:  strings.TrimSpace(f.Requirements),
			CustomPrice:   f.CustomPrice,
			OriginalPrice: f.ListingPrice,
		}.Encode()
	}
	if f.GuestCount > 0 {
		n := f.GuestCount
		req.GuestCount = &n
	}
	return req
}
