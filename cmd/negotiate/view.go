package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"eventhub/internal/chat"
	"eventhub/internal/model"
	"eventhub/internal/offer"
	"eventhub/internal/payment"
	"eventhub/internal/timeline"
)

// view prints session state. Updates arrive from the channel goroutine as
// well as from the input loop, so output is serialized.
type view struct {
	mu      sync.Mutex
	w       io.Writer
	userID  string
	printed map[string]bool
	typing  bool
}

func newView(w io.Writer, userID string) *view {
	return &view{w: w, userID: userID, printed: make(map[string]bool)}
}

func (v *view) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, format+"\n", args...)
}

func (v *view) println(s string) {
	v.printf("%s", s)
}

func (v *view) errorf(format string, args ...any) {
	v.printf("❌ "+format, args...)
}

// update prints what changed: new confirmed messages, the peer's typing
// state and errors
func (v *view) update(sess *chat.Session, u chat.Update) {
	switch u {
	case chat.UpdateMessages:
		v.mu.Lock()
		defer v.mu.Unlock()
		for _, m := range sess.Messages() {
			if m.Pending || v.printed[m.ID] {
				continue
			}
			v.printed[m.ID] = true
			if m.SenderID == v.userID {
				continue
			}
			fmt.Fprintf(v.w, "%s\n", v.line(m))
		}
	case chat.UpdateTyping:
		typing := sess.PeerTyping()
		v.mu.Lock()
		defer v.mu.Unlock()
		if typing && !v.typing {
			fmt.Fprintln(v.w, "  … typing")
		}
		v.typing = typing
	case chat.UpdateError:
		if msg := sess.LastError(); msg != "" {
			sess.ClearError()
			v.errorf("%s", msg)
		}
	}
}

func (v *view) line(m model.Message) string {
	who := "them"
	if m.SenderID == v.userID {
		who = "you"
	}
	read := ""
	if who == "you" && m.IsRead {
		read = " ✓✓"
	}
	return fmt.Sprintf("[%s] %s: %s%s", m.CreatedAt.Local().Format("15:04"), who, m.Content, read)
}

// history prints the whole conversation grouped by day
func (v *view) history(sess *chat.Session) {
	days := sess.Timeline()
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, d := range days {
		fmt.Fprintf(v.w, "── %s ──\n", d.Label())
		for _, item := range d.Items {
			switch item.Kind {
			case timeline.KindMessage:
				v.printed[item.Message.ID] = true
				fmt.Fprintln(v.w, v.line(*item.Message))
			case timeline.KindOffer:
				fmt.Fprintln(v.w, offerLine(*item.Offer))
			}
		}
	}
}

func (v *view) threads(threads []model.ThreadSummary, active string) {
	if len(threads) == 0 {
		v.println("No conversations yet")
		return
	}
	for _, t := range threads {
		peer := t.VendorID
		if peer == v.userID {
			peer = t.CustomerID
		}
		mark := " "
		if t.ID == active {
			mark = "*"
		}
		unread := ""
		if t.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", t.UnreadCount)
		}
		v.printf("%s %s with %s%s: %s", mark, t.ID, peer, unread, t.LastMessage)
	}
}

func offerLine(o model.Offer) string {
	s := fmt.Sprintf("  [offer %s] %s: %d on %d (%.0f%% off) for %s %s",
		o.ID, offer.DisplayStatus(o), o.OfferedPrice, offer.EffectiveBasePrice(o), offer.OfferDiscount(o), o.EventType, o.EventDate)
	if o.CounterPrice != nil {
		s += fmt.Sprintf(", counter %d", *o.CounterPrice)
		if o.CounterMessage != "" {
			s += fmt.Sprintf(" %q", o.CounterMessage)
		}
	}
	if o.TokenAmount != nil {
		s += fmt.Sprintf(", token %d", *o.TokenAmount)
	}
	return s
}

func (v *view) offers(offers []model.Offer) {
	if len(offers) == 0 {
		v.println("No offers yet")
		return
	}
	for _, o := range offers {
		v.println(offerLine(o))
	}
}

func (v *view) form(f *chat.OfferForm) {
	v.printf("Listing %s at %d, base %d", f.ListingID, f.ListingPrice, f.BasePrice())
	if f.Customize {
		v.printf("Customized at %d: %s", f.CustomPrice, f.Requirements)
	}
	v.printf("Offer %d (%.1f%% off), %s on %s %s, venue %q, guests %d",
		f.OfferedPrice, f.Discount(), f.EventType, f.EventDate, f.EventTime, f.VenueAddress, f.GuestCount)
	if f.Message != "" {
		v.printf("Message: %s", f.Message)
	}
}

func (v *view) suggestions(f *chat.OfferForm) {
	for _, s := range f.Suggestions() {
		v.printf("  %2d%% off → %d", s.Percent, s.Price)
	}
}

func (v *view) due(s payment.Summary) {
	total := fmt.Sprint(s.TotalAmount)
	if s.TotalIsEstimate {
		total = "~" + total
	}
	v.printf("💳 Token due for order %s: %d (%.0f%% of %s), balance %d later",
		s.OrderID, s.TokenAmount, s.TokenPercent, total, s.BalanceAmount)
	v.printf("   Pay with /pay <%s>", strings.Join(payment.Methods, "|"))
}
