// Package notify tells vendors about negotiation events outside the chat
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"gopkg.in/tucnak/telebot.v2"
)

// Kind of a notice
type Kind string

const (
	KindNewOffer        Kind = "new_offer"
	KindCounterAccepted Kind = "counter_accepted"
	KindOfferWithdrawn  Kind = "offer_withdrawn"
	KindTokenPaid       Kind = "token_paid"
)

// Notice is one vendor-facing notification
type Notice struct {
	Kind     Kind
	VendorID string
	OfferID  string
	Text     string
}

// Notifier delivers notices
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// LogNotifier writes notices to the log
type LogNotifier struct{}

// Notify implements Notifier
func (LogNotifier) Notify(_ context.Context, n Notice) error {
	log.Printf("[Notify] 📢 %s vendor=%s offer=%s: %s", n.Kind, n.VendorID, n.OfferID, n.Text)
	return nil
}

// Telegram sends notices to a Telegram chat
type Telegram struct {
	bot    *telebot.Bot
	chatID int64
}

// NewTelegram connects a bot with the given token. Notices go to chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %v", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Notify implements Notifier
func (t *Telegram) Notify(_ context.Context, n Notice) error {
	if _, err := t.bot.Send(&telebot.Chat{ID: t.chatID}, Format(n), telebot.ModeMarkdown); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Format renders a notice as a short Markdown message
func Format(n Notice) string {
	var title string
	switch n.Kind {
	case KindNewOffer:
		title = "💬 *New offer*"
	case KindCounterAccepted:
		title = "🤝 *Counter offer accepted*"
	case KindOfferWithdrawn:
		title = "↩️ *Offer withdrawn*"
	case KindTokenPaid:
		title = "✅ *Token payment received*"
	default:
		title = "*" + string(n.Kind) + "*"
	}
	return fmt.Sprintf("%s\n%s\nOffer: `%s`", title, n.Text, n.OfferID)
}

// Async wraps a Notifier so that delivery never blocks the caller. Failures
// are logged.
type Async struct {
	next    Notifier
	timeout time.Duration
}

// NewAsync wraps next
func NewAsync(next Notifier) *Async {
	return &Async{next: next, timeout: 10 * time.Second}
}

// Notify implements Notifier
func (a *Async) Notify(_ context.Context, n Notice) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Notify(ctx, n); err != nil {
			log.Printf("[Notify] ❌ %s for offer %s: %v", n.Kind, n.OfferID, err)
		}
	}()
	return nil
}
