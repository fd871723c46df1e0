package chat

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"eventhub/internal/api"
	"eventhub/internal/channel"
	"eventhub/internal/model"
	"eventhub/internal/offer"
	"eventhub/internal/payment"
	"eventhub/internal/timeline"
)

var (
	// ErrBusy is returned while another offer mutation is in flight
	ErrBusy = errors.New("another offer action is in progress")
	// ErrEmptyMessage is returned when the trimmed text is empty
	ErrEmptyMessage = errors.New("message is empty")
	// ErrUnknownOffer is returned for an offer the session has not loaded
	ErrUnknownOffer = errors.New("offer not found in this conversation")
)

// API is the part of the backend a session talks to
type API interface {
	ThreadAPI
	HistoryAPI
	OffersAPI
	SendMessage(ctx context.Context, threadID, content, clientID string) (*model.Message, error)
	CreateOffer(ctx context.Context, req model.CreateOfferRequest) (*model.Offer, error)
	AcceptCounterOffer(ctx context.Context, offerID string) (*model.Offer, error)
	WithdrawOffer(ctx context.Context, offerID string) (*model.Offer, error)
	GetListing(ctx context.Context, listingID string) (*model.Listing, error)
}

// Transport is the real-time side. Send methods report false when the frame
// could not go out.
type Transport interface {
	SubscribeToThread(threadID string)
	UnsubscribeFromThread(threadID string)
	SendMessage(threadID, content, clientID string) bool
	SendTypingIndicator(threadID string, isTyping bool) bool
	SendReadReceipt(threadID string) bool
}

type offline struct{}

func (offline) SubscribeToThread(string)                {}
func (offline) UnsubscribeFromThread(string)            {}
func (offline) SendMessage(string, string, string) bool { return false }
func (offline) SendTypingIndicator(string, bool) bool   { return false }
func (offline) SendReadReceipt(string) bool             { return false }

// Update names the part of the session that changed
type Update int

const (
	UpdateMessages Update = iota
	UpdateOffers
	UpdateTyping
	UpdateError
)

// Config configures a session
type Config struct {
	UserID   string
	UserType model.SenderType

	PageSize   int
	TypingIdle time.Duration
	Location   *time.Location

	// OnPayment is called with an accepted offer whose token is due
	OnPayment func(model.Offer)
	// OnUpdate is called after state visible to the user changed. It may run
	// on the channel's read goroutine.
	OnUpdate func(Update)
}

// Session is one user's chat window: the active thread, its messages and
// offers, the compose buffer and the typing state.
type Session struct {
	cfg      Config
	api      API
	resolver *Resolver
	messages *MessageStore
	offers   *OfferStore
	typer    *Typer
	now      func() time.Time

	mu         sync.Mutex
	transport  Transport
	threadID   string
	gen        uint64
	loaded     bool
	compose    string
	peerTyping bool
	busy       bool
	lastError  string
}

// NewSession creates a session. Until Attach is called every send goes over
// HTTP.
func NewSession(cfg Config, client API) *Session {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &Session{
		cfg:       cfg,
		api:       client,
		resolver:  NewResolver(client),
		messages:  NewMessageStore(client, cfg.PageSize),
		offers:    NewOfferStore(client),
		transport: offline{},
		now:       time.Now,
	}
	s.typer = NewTyper(cfg.TypingIdle, s.emitTyping)
	return s
}

// Attach sets the real-time transport
func (s *Session) Attach(t Transport) {
	if t == nil {
		t = offline{}
	}
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()
}

// Handlers wires a channel's inbound events to the session
func (s *Session) Handlers() channel.Handlers {
	return channel.Handlers{
		OnMessage: s.HandleMessage,
		OnTyping:  s.HandleTyping,
		OnRead:    s.HandleRead,
		OnError:   s.HandleError,
		OnConnect: s.HandleConnect,
	}
}

func (s *Session) link() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

func (s *Session) active() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID, s.gen
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Session) update(u Update) {
	if s.cfg.OnUpdate != nil {
		s.cfg.OnUpdate(u)
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.lastError = ErrorMessage(err)
	s.mu.Unlock()
	s.update(UpdateError)
}

// OpenVendor opens the customer's conversation with vendorID, creating it
// on first contact
func (s *Session) OpenVendor(ctx context.Context, vendorID string) (*model.Thread, error) {
	thread, err := s.resolver.Resolve(ctx, s.cfg.UserID, vendorID)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	if err := s.Open(ctx, thread.ID); err != nil {
		return thread, err
	}
	return thread, nil
}

// Open makes threadID the active thread. The previous thread is
// unsubscribed before the new one is subscribed, and results that arrive
// after another Open are dropped with ErrStaleThread. Opening the active
// thread again is a no-op once it loaded, and a reload after a failure.
func (s *Session) Open(ctx context.Context, threadID string) error {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return offer.ErrMissingThread
	}

	s.mu.Lock()
	if s.threadID == threadID && s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.typer.Stop()

	s.mu.Lock()
	prev := s.threadID
	s.gen++
	gen := s.gen
	s.threadID = threadID
	s.loaded = false
	s.peerTyping = false
	s.lastError = ""
	t := s.transport
	s.mu.Unlock()

	if prev != threadID {
		if prev != "" {
			t.UnsubscribeFromThread(prev)
		}
		t.SubscribeToThread(threadID)
	}
	s.messages.Reset(threadID)
	s.offers.Reset(threadID)
	s.update(UpdateMessages)

	if _, err := s.messages.LoadHistory(ctx, threadID); err != nil {
		if !s.current(gen) {
			return ErrStaleThread
		}
		s.fail(err)
		return errors.Wrap(err, "failed to load history")
	}
	if !s.current(gen) {
		return ErrStaleThread
	}
	s.update(UpdateMessages)

	if err := s.refresh(ctx, threadID, gen); err != nil {
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrStaleThread
	}
	s.loaded = true
	s.mu.Unlock()
	t.SendReadReceipt(threadID)
	return nil
}

// ThreadID returns the active thread, or "" when none is open
func (s *Session) ThreadID() string {
	id, _ := s.active()
	return id
}

// Messages returns the active thread's messages, oldest first
func (s *Session) Messages() []model.Message {
	return s.messages.Snapshot()
}

// Offers returns the active thread's offers
func (s *Session) Offers() []model.Offer {
	return s.offers.Snapshot()
}

// Timeline merges messages and offers into day groups
func (s *Session) Timeline() []timeline.Day {
	return timeline.Build(s.messages.Snapshot(), s.offers.Snapshot(), s.cfg.Location)
}

// SetCompose replaces the compose buffer. Non-empty text counts as a
// keystroke.
func (s *Session) SetCompose(text string) {
	s.mu.Lock()
	s.compose = text
	s.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		s.typer.Stop()
		return
	}
	s.typer.Keystroke()
}

// Compose returns the compose buffer
func (s *Session) Compose() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compose
}

// PeerTyping reports whether the other participant is typing
func (s *Session) PeerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerTyping
}

// Busy reports whether an offer mutation is in flight
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// LastError returns the last user-facing error, or ""
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// ClearError dismisses the last error
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

// Send posts text to the active thread. The message shows immediately as
// pending; it goes out over the channel when connected and over HTTP
// otherwise. When both fail the entry is removed and the text is put back
// into the compose buffer.
func (s *Session) Send(ctx context.Context, text string) error {
	content := strings.TrimSpace(text)
	if content == "" {
		return ErrEmptyMessage
	}
	threadID, gen := s.active()
	if threadID == "" {
		return offer.ErrMissingThread
	}

	clientID := uuid.NewString()
	local := model.Message{
		ID:         "local-" + clientID,
		ThreadID:   threadID,
		SenderID:   s.cfg.UserID,
		SenderType: s.cfg.UserType,
		Content:    content,
		CreatedAt:  s.now(),
		ClientID:   clientID,
	}
	s.messages.AppendOptimistic(local)
	s.mu.Lock()
	s.compose = ""
	s.mu.Unlock()
	s.typer.Stop()
	s.update(UpdateMessages)

	if s.link().SendMessage(threadID, content, clientID) {
		return nil
	}

	saved, err := s.api.SendMessage(ctx, threadID, content, clientID)
	if err != nil {
		s.messages.RemoveOptimistic(local.ID)
		s.mu.Lock()
		if s.gen == gen && s.compose == "" {
			s.compose = text
		}
		s.mu.Unlock()
		s.update(UpdateMessages)
		s.fail(err)
		return errors.Wrap(err, "failed to send message")
	}
	s.messages.MergeIncoming(*saved)
	s.update(UpdateMessages)
	return nil
}

// HandleMessage merges a message pushed by the server
func (s *Session) HandleMessage(m model.Message) {
	if s.messages.MergeIncoming(m) == Ignored {
		return
	}
	if m.SenderType != s.cfg.UserType {
		s.mu.Lock()
		s.peerTyping = false
		t := s.transport
		s.mu.Unlock()
		t.SendReadReceipt(m.ThreadID)
	}
	s.update(UpdateMessages)
}

// HandleTyping reflects the peer's typing state
func (s *Session) HandleTyping(ti model.TypingIndicator) {
	s.mu.Lock()
	if ti.ThreadID != s.threadID || ti.UserID == s.cfg.UserID {
		s.mu.Unlock()
		return
	}
	s.peerTyping = ti.IsTyping
	s.mu.Unlock()
	s.update(UpdateTyping)
}

// HandleRead marks own messages read when the peer read the thread
func (s *Session) HandleRead(r model.ReadReceipt) {
	if r.ThreadID != s.ThreadID() || r.UserID == s.cfg.UserID {
		return
	}
	reader := model.SenderCustomer
	if r.IsVendor {
		reader = model.SenderVendor
	}
	if s.messages.MarkRead(reader) > 0 {
		s.update(UpdateMessages)
	}
}

// HandleError surfaces an error frame for the active thread. When the frame
// answers one of our sends, that send is rolled back as if HTTP had failed.
func (s *Session) HandleError(threadID, clientID, msg string) {
	if threadID != "" && threadID != s.ThreadID() {
		return
	}
	if m, ok := s.messages.RemovePending(clientID); ok {
		s.mu.Lock()
		if s.compose == "" {
			s.compose = m.Content
		}
		s.mu.Unlock()
		s.update(UpdateMessages)
	}
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
	s.update(UpdateError)
}

// HandleConnect re-announces that the active thread has been read. The
// channel itself replays subscriptions.
func (s *Session) HandleConnect() {
	threadID, _ := s.active()
	if threadID == "" {
		return
	}
	s.link().SendReadReceipt(threadID)
}

func (s *Session) emitTyping(isTyping bool) {
	threadID, _ := s.active()
	if threadID == "" {
		return
	}
	s.link().SendTypingIndicator(threadID, isTyping)
}

// LoadListing fetches a listing and points form at it
func (s *Session) LoadListing(ctx context.Context, listingID string, form *OfferForm) (*model.Listing, error) {
	l, err := s.api.GetListing(ctx, listingID)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	if form != nil {
		form.SetListing(*l)
	}
	return l, nil
}

// RefreshOffers reloads the offers of the active thread
func (s *Session) RefreshOffers(ctx context.Context) error {
	threadID, gen := s.active()
	if threadID == "" {
		return offer.ErrMissingThread
	}
	return s.refresh(ctx, threadID, gen)
}

func (s *Session) refresh(ctx context.Context, threadID string, gen uint64) error {
	if _, err := s.offers.Refresh(ctx, threadID); err != nil {
		if errors.Is(err, ErrStaleThread) || !s.current(gen) {
			return ErrStaleThread
		}
		s.fail(err)
		return errors.Wrap(err, "failed to load offers")
	}
	if !s.current(gen) {
		return ErrStaleThread
	}
	s.update(UpdateOffers)
	return nil
}

func (s *Session) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// MakeOffer validates form, creates the offer, clears the form and reloads
// the offers. Nothing is sent when validation fails.
func (s *Session) MakeOffer(ctx context.Context, form *OfferForm) (*model.Offer, error) {
	if !s.acquire() {
		return nil, ErrBusy
	}
	defer s.release()

	threadID, gen := s.active()
	if err := form.Validate(threadID); err != nil {
		s.fail(err)
		return nil, err
	}

	created, err := s.api.CreateOffer(ctx, form.Request(threadID))
	if err != nil {
		s.fail(err)
		return nil, err
	}
	form.Clear()
	s.refreshAfterMutation(ctx, threadID, gen)
	return created, nil
}

// AcceptCounter accepts the vendor's counter. Only COUNTERED offers are
// sent; anything else fails locally with offer.ErrInvalidTransition. When
// the accepted offer carries an order, OnPayment is called.
func (s *Session) AcceptCounter(ctx context.Context, offerID string) (*model.Offer, error) {
	accepted, gen, err := s.acceptCounter(ctx, offerID)
	if err != nil {
		return nil, err
	}
	// a thread switch while accepting leaves the token for later
	if !s.current(gen) {
		return accepted, nil
	}
	if payment.Payable(*accepted) && s.cfg.OnPayment != nil {
		s.cfg.OnPayment(*accepted)
	}
	return accepted, nil
}

func (s *Session) acceptCounter(ctx context.Context, offerID string) (*model.Offer, uint64, error) {
	if !s.acquire() {
		return nil, 0, ErrBusy
	}
	defer s.release()

	threadID, gen := s.active()
	o, ok := s.offers.Find(offerID)
	if !ok {
		s.fail(ErrUnknownOffer)
		return nil, gen, ErrUnknownOffer
	}
	if !offer.Can(o, offer.ActionAcceptCounter) {
		err := errors.Wrapf(offer.ErrInvalidTransition, "offer is %s", o.Status)
		s.fail(err)
		return nil, gen, err
	}

	updated, err := s.api.AcceptCounterOffer(ctx, offerID)
	if err != nil {
		s.fail(err)
		return nil, gen, err
	}
	s.refreshAfterMutation(ctx, threadID, gen)

	accepted := *updated
	if fresh, ok := s.offers.Find(offerID); ok && fresh.Status == model.OfferAccepted {
		accepted = fresh
	}
	return &accepted, gen, nil
}

// Withdraw withdraws an offer. The backend decides whether that is still
// possible; its refusal is surfaced and the local offers stay as they were.
func (s *Session) Withdraw(ctx context.Context, offerID string) (*model.Offer, error) {
	if !s.acquire() {
		return nil, ErrBusy
	}
	defer s.release()

	threadID, gen := s.active()
	updated, err := s.api.WithdrawOffer(ctx, offerID)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	s.refreshAfterMutation(ctx, threadID, gen)
	return updated, nil
}

func (s *Session) refreshAfterMutation(ctx context.Context, threadID string, gen uint64) {
	if threadID == "" {
		return
	}
	if err := s.refresh(ctx, threadID, gen); err != nil && !errors.Is(err, ErrStaleThread) {
		log.Printf("[Chat] ⚠️ Offer refresh failed for thread %s: %v", threadID, err)
	}
}

// Close leaves the active thread and stops the typing timer
func (s *Session) Close() {
	s.typer.Release()

	s.mu.Lock()
	prev := s.threadID
	s.threadID = ""
	s.loaded = false
	s.gen++
	t := s.transport
	s.mu.Unlock()

	if prev != "" {
		t.UnsubscribeFromThread(prev)
	}
}

// ErrorMessage is the text shown to the user for err
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *offer.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return api.Message(err)
	}
	for _, known := range []error{ErrBusy, ErrEmptyMessage, ErrUnknownOffer, ErrMissingVendor, offer.ErrInvalidTransition} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return api.GenericError
}
