package offer

import (
	"math"

	"eventhub/internal/model"
)

// QuickDiscountPercents are the anchors of the suggestion ladder
var QuickDiscountPercents = []int{5, 10, 15, 20, 25, 30}

// TokenPercent is the share of the agreed price required as a deposit
const TokenPercent = 25

// Suggestion is one rung of the quick-discount ladder
type Suggestion struct {
	Percent int   `json:"percent"`
	Price   int64 `json:"price"`
}

// EffectiveBasePrice is the customized price when present, else the original
func EffectiveBasePrice(o model.Offer) int64 {
	if o.CustomizedPrice != nil && *o.CustomizedPrice > 0 {
		return *o.CustomizedPrice
	}
	return o.OriginalPrice
}

// DiscountPercent is (base - offered) / base * 100
func DiscountPercent(base, offered int64) float64 {
	if base <= 0 {
		return 0
	}
	return float64(base-offered) / float64(base) * 100
}

// OfferDiscount is DiscountPercent against the offer's effective base
func OfferDiscount(o model.Offer) float64 {
	return DiscountPercent(EffectiveBasePrice(o), o.OfferedPrice)
}

// QuickDiscounts proposes one offer per ladder percentage, rounded to the
// nearest whole currency unit.
func QuickDiscounts(base int64) []Suggestion {
	out := make([]Suggestion, 0, len(QuickDiscountPercents))
	for _, p := range QuickDiscountPercents {
		price := math.Round(float64(base) * float64(100-p) / 100)
		out = append(out, Suggestion{Percent: p, Price: int64(price)})
	}
	return out
}

// TokenAmount is TokenPercent of total, rounded half up
func TokenAmount(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return (total*TokenPercent + 50) / 100
}

// AgreedPrice is what the customer owes once the offer is accepted: the
// vendor's counter when there was one, otherwise the customer's offer.
func AgreedPrice(o model.Offer) int64 {
	if o.CounterPrice != nil && *o.CounterPrice > 0 {
		return *o.CounterPrice
	}
	return o.OfferedPrice
}

// DisplayStatus is the label shown on an offer card
func DisplayStatus(o model.Offer) string {
	switch o.Status {
	case model.OfferPending:
		return "Pending"
	case model.OfferCountered:
		return "Countered"
	case model.OfferAccepted:
		if o.TokenPaid {
			return "Confirmed"
		}
		return "Accepted"
	case model.OfferRejected:
		return "Rejected"
	case model.OfferWithdrawn:
		return "Withdrawn"
	}
	return string(o.Status)
}
