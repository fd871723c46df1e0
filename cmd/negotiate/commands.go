package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"eventhub/internal/api"
	"eventhub/internal/chat"
	"eventhub/internal/model"
	"eventhub/internal/offer"
	"eventhub/internal/payment"
)

const help = `Commands:
  <text>                         send a message
  /threads                       list your conversations
  /open <threadId>               switch to a conversation
  /offers                        list offers in this conversation
  /history                       show the conversation by day
  /form                          show the offer form
  /set key=value ...             fill the form (listing, price, type, date, time, venue, guests, message)
  /custom <price> <requirements> ask for a customized scope at <price>
  /plain                         drop the customization
  /suggest                       show quick discounts
  /discount <percent>            use a quick discount
  /offer                         submit the form
  /accept <offerId>              accept (vendor) or accept the counter (customer)
  /withdraw <offerId>            withdraw an open offer
  /reject <offerId>              reject an offer (vendor)
  /counter <offerId> <price> [message]  counter an offer (vendor)
  /pay <card|upi|netbanking|wallet>     pay the token of an accepted offer
  /quit`

// backendAPI is what the terminal needs beyond the session: the inbox and
// the vendor's offer actions
type backendAPI interface {
	ListThreads(ctx context.Context) ([]model.ThreadSummary, error)
	AcceptOffer(ctx context.Context, offerID string) (*model.Offer, error)
	RejectOffer(ctx context.Context, offerID string) (*model.Offer, error)
	CounterOffer(ctx context.Context, offerID string, req model.CounterOfferRequest) (*model.Offer, error)
}

type commands struct {
	sess   *chat.Session
	client backendAPI
	flow   *payment.Flow
	form   *chat.OfferForm
	view   *view
	side   model.SenderType
}

// run executes one input line and reports whether to keep reading
func (c *commands) run(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, "/") {
		c.send(ctx, line)
		return true
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	var err error

	switch cmd {
	case "/quit", "/exit":
		return false
	case "/help":
		c.view.println(help)
	case "/threads":
		err = c.threads(ctx)
	case "/open":
		err = c.open(ctx, args)
	case "/offers":
		c.view.offers(c.sess.Offers())
	case "/history":
		c.view.history(c.sess)
	case "/form":
		c.view.form(c.form)
	case "/set":
		err = c.set(ctx, args)
	case "/custom":
		err = customize(c.form, args)
	case "/plain":
		c.form.Customize = false
		c.form.CustomPrice = 0
		c.form.Requirements = ""
	case "/suggest":
		c.view.suggestions(c.form)
	case "/discount":
		err = c.discount(args)
	case "/offer":
		var o *model.Offer
		if o, err = c.sess.MakeOffer(ctx, c.form); err == nil {
			c.view.printf("✅ Offer %s sent at %d (%.0f%% off)", o.ID, o.OfferedPrice, offer.OfferDiscount(*o))
		}
	case "/accept":
		err = c.accept(ctx, args)
	case "/withdraw":
		err = c.offerAction(ctx, args, c.sess.Withdraw)
	case "/reject":
		err = c.vendorOnly(func() error { return c.offerAction(ctx, args, c.client.RejectOffer) })
	case "/counter":
		err = c.vendorOnly(func() error { return c.counter(ctx, args) })
	case "/pay":
		err = c.pay(ctx, args)
	default:
		err = errors.Errorf("unknown command %s, try /help", cmd)
	}

	if err != nil {
		c.view.errorf("%s", describe(err))
	}
	return true
}

func (c *commands) threads(ctx context.Context) error {
	threads, err := c.client.ListThreads(ctx)
	if err != nil {
		return err
	}
	c.view.threads(threads, c.sess.ThreadID())
	return nil
}

func (c *commands) open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: /open <threadId>")
	}
	if err := c.sess.Open(ctx, args[0]); err != nil {
		return err
	}
	c.view.history(c.sess)
	return nil
}

// set fills the form. A new listing is fetched so the base price follows it.
func (c *commands) set(ctx context.Context, args []string) error {
	listingID, err := applyFields(c.form, args)
	if err != nil || listingID == "" {
		return err
	}
	l, err := c.sess.LoadListing(ctx, listingID, c.form)
	if err != nil {
		return err
	}
	c.view.printf("Listing %s (%s) at %d", l.ID, l.Name, l.Price)
	return nil
}

func (c *commands) send(ctx context.Context, text string) {
	c.sess.SetCompose(text)
	if err := c.sess.Send(ctx, c.sess.Compose()); err != nil {
		c.view.errorf("%s", describe(err))
		if draft := c.sess.Compose(); draft != "" {
			c.view.printf("✏️  Draft kept: %s", draft)
		}
	}
}

func (c *commands) discount(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: /discount <percent>")
	}
	p, err := strconv.Atoi(strings.TrimSuffix(args[0], "%"))
	if err != nil {
		return errors.Errorf("invalid percent %q", args[0])
	}
	if !c.form.ApplySuggestion(p) {
		return errors.Errorf("no quick discount of %d%%", p)
	}
	c.view.printf("Offer price set to %d", c.form.OfferedPrice)
	return nil
}

func (c *commands) accept(ctx context.Context, args []string) error {
	if c.side == model.SenderVendor {
		return c.offerAction(ctx, args, c.client.AcceptOffer)
	}
	if len(args) != 1 {
		return errors.New("usage: /accept <offerId>")
	}
	o, err := c.sess.AcceptCounter(ctx, args[0])
	if err != nil {
		return err
	}
	c.view.printf("✅ Offer %s accepted at %d", o.ID, offer.AgreedPrice(*o))
	return nil
}

func (c *commands) offerAction(ctx context.Context, args []string, do func(context.Context, string) (*model.Offer, error)) error {
	if len(args) != 1 {
		return errors.New("usage: <command> <offerId>")
	}
	o, err := do(ctx, args[0])
	if err != nil {
		return err
	}
	c.view.printf("✅ Offer %s is now %s", o.ID, offer.DisplayStatus(*o))
	if c.side == model.SenderVendor {
		return c.sess.RefreshOffers(ctx)
	}
	return nil
}

func (c *commands) counter(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: /counter <offerId> <price> [message]")
	}
	price, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || price <= 0 {
		return errors.Errorf("invalid price %q", args[1])
	}
	o, err := c.client.CounterOffer(ctx, args[0], model.CounterOfferRequest{
		CounterPrice:   price,
		CounterMessage: strings.Join(args[2:], " "),
	})
	if err != nil {
		return err
	}
	c.view.printf("✅ Countered offer %s at %d", o.ID, price)
	return c.sess.RefreshOffers(ctx)
}

func (c *commands) vendorOnly(fn func() error) error {
	if c.side != model.SenderVendor {
		return errors.New("only vendors can do that")
	}
	return fn()
}

func (c *commands) pay(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.Errorf("usage: /pay <%s>", strings.Join(payment.Methods, "|"))
	}
	if !c.flow.IsOpen() {
		// reopen for an accepted offer that is still unpaid
		for _, o := range c.sess.Offers() {
			if payment.Payable(o) {
				if _, err := c.flow.Open(o); err != nil {
					return err
				}
				break
			}
		}
	}
	receipt, err := c.flow.Pay(ctx, args[0])
	if err != nil {
		return err
	}
	c.view.printf("✅ Token paid, payment %s (%s)", receipt.PaymentID, receipt.Status)
	return nil
}

// applyFields fills the form from key=value pairs. Values may not contain
// spaces except for the trailing message=..., which takes the rest. A
// listing=<id> pair is returned instead of applied: its price has to be
// fetched.
func applyFields(f *chat.OfferForm, args []string) (listingID string, err error) {
	for i, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return "", errors.Errorf("expected key=value, got %q", arg)
		}
		switch strings.ToLower(key) {
		case "price":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return "", errors.Errorf("invalid price %q", value)
			}
			f.OfferedPrice = n
		case "type":
			f.EventType = value
		case "date":
			f.EventDate = value
		case "time":
			f.EventTime = value
		case "venue":
			f.VenueAddress = value
		case "guests":
			n, err := strconv.Atoi(value)
			if err != nil {
				return "", errors.Errorf("invalid guest count %q", value)
			}
			f.GuestCount = n
		case "listing":
			listingID = strings.TrimSpace(value)
			if listingID == "" {
				return "", errors.New("listing id is empty")
			}
		case "message":
			f.Message = strings.TrimSpace(strings.Join(append([]string{value}, args[i+1:]...), " "))
			return listingID, nil
		default:
			return "", errors.Errorf("unknown field %q", key)
		}
	}
	return listingID, nil
}

func customize(f *chat.OfferForm, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: /custom <price> <requirements>")
	}
	price, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || price <= 0 {
		return errors.Errorf("invalid price %q", args[0])
	}
	f.Customize = true
	f.CustomPrice = price
	f.Requirements = strings.Join(args[1:], " ")
	return nil
}

// describe turns err into the line shown to the user
func describe(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	msg := chat.ErrorMessage(err)
	if msg == api.GenericError {
		// local usage errors carry their own text
		if errors.Cause(err) == err {
			return err.Error()
		}
	}
	return msg
}
