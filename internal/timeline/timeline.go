// Package timeline projects the messages and offers of a thread into one
// chronological, day-grouped view. It holds no state of its own.
package timeline

import (
	"sort"
	"time"

	"eventhub/internal/model"
)

// Kind discriminates timeline entries
type Kind string

const (
	KindMessage Kind = "message"
	KindOffer   Kind = "offer"
)

// Item is one entry of the unified timeline
type Item struct {
	Kind    Kind
	At      time.Time
	Message *model.Message
	Offer   *model.Offer
}

// Day is a contiguous run of items that fall on the same calendar day
type Day struct {
	Date  time.Time
	Items []Item
}

// Label formats the divider shown above a day
func (d Day) Label() string {
	return d.Date.Format("Mon, 02 Jan 2006")
}

// Merge tags every message and offer and sorts them by timestamp. Ties keep
// input order, so messages come before offers with the same timestamp.
func Merge(messages []model.Message, offers []model.Offer) []Item {
	items := make([]Item, 0, len(messages)+len(offers))
	for i := range messages {
		m := messages[i]
		items = append(items, Item{Kind: KindMessage, At: m.CreatedAt, Message: &m})
	}
	for i := range offers {
		o := offers[i]
		items = append(items, Item{Kind: KindOffer, At: o.CreatedAt, Offer: &o})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].At.Before(items[j].At)
	})
	return items
}

// Group splits sorted items into calendar days in loc (time.Local when nil)
func Group(items []Item, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}

	var days []Day
	for _, it := range items {
		t := it.At.In(loc)
		date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		if n := len(days); n > 0 && days[n-1].Date.Equal(date) {
			days[n-1].Items = append(days[n-1].Items, it)
			continue
		}
		days = append(days, Day{Date: date, Items: []Item{it}})
	}
	return days
}

// Build is Merge followed by Group
func Build(messages []model.Message, offers []model.Offer, loc *time.Location) []Day {
	return Group(Merge(messages, offers), loc)
}
