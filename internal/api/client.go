// Package api is the HTTP client for the negotiation backend
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"eventhub/internal/model"
)

// GenericError is shown when the backend gives no usable message
const GenericError = "Something went wrong. Please try again"

// Error is a non-2xx response from the backend
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Message extracts the user-facing message from err, falling back to
// GenericError for anything that is not a backend error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return GenericError
}

// IsStatus reports whether err is a backend error with the given status
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client calls the backend on behalf of one user
type Client struct {
	client   *http.Client
	baseURL  string
	userID   string
	userType model.SenderType
}

// NewClient creates a client for baseURL acting as userID
func NewClient(baseURL, userID string, userType model.SenderType) *Client {
	return &Client{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		userID:   userID,
		userType: userType,
	}
}

// UserID returns the identity the client acts as
func (c *Client) UserID() string { return c.userID }

// UserType returns the side the client acts for
func (c *Client) UserType() model.SenderType { return c.userType }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", c.userID)
	req.Header.Set("X-User-Type", string(c.userType))

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = errResp.Message
		}
		if msg == "" {
			msg = GenericError
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s %s", method, path)
	}
	return nil
}

// GetOrCreateThread returns the caller's conversation with vendorID
func (c *Client) GetOrCreateThread(ctx context.Context, vendorID string) (*model.Thread, error) {
	var t model.Thread
	if err := c.do(ctx, http.MethodPost, "/chat/threads", map[string]string{"vendorId": vendorID}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListThreads returns the caller's inbox, most recently active first
func (c *Client) ListThreads(ctx context.Context) ([]model.ThreadSummary, error) {
	var out []model.ThreadSummary
	if err := c.do(ctx, http.MethodGet, "/chat/threads", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMessages returns one page of a thread, newest first
func (c *Client) GetMessages(ctx context.Context, threadID string, page, size int) (*model.MessagePage, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("size", fmt.Sprint(size))

	var out model.MessagePage
	path := "/chat/threads/" + url.PathEscape(threadID) + "/messages?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage posts a message over HTTP
func (c *Client) SendMessage(ctx context.Context, threadID, content, clientID string) (*model.Message, error) {
	body := map[string]string{"content": content, "clientId": clientID}
	var m model.Message
	if err := c.do(ctx, http.MethodPost, "/chat/threads/"+url.PathEscape(threadID)+"/messages", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetOffersByThread returns the offers of a thread
func (c *Client) GetOffersByThread(ctx context.Context, threadID string) ([]model.Offer, error) {
	var offers []model.Offer
	if err := c.do(ctx, http.MethodGet, "/chat/threads/"+url.PathEscape(threadID)+"/offers", nil, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// CreateOffer submits a new offer
func (c *Client) CreateOffer(ctx context.Context, req model.CreateOfferRequest) (*model.Offer, error) {
	var o model.Offer
	if err := c.do(ctx, http.MethodPost, "/offers", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// AcceptCounterOffer accepts the vendor's counter
func (c *Client) AcceptCounterOffer(ctx context.Context, offerID string) (*model.Offer, error) {
	var o model.Offer
	if err := c.do(ctx, http.MethodPost, "/offers/"+url.PathEscape(offerID)+"/accept-counter", nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// WithdrawOffer withdraws an open offer
func (c *Client) WithdrawOffer(ctx context.Context, offerID string) (*model.Offer, error) {
	var o model.Offer
	if err := c.do(ctx, http.MethodPost, "/offers/"+url.PathEscape(offerID)+"/withdraw", nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetListing returns listing details
func (c *Client) GetListing(ctx context.Context, listingID string) (*model.Listing, error) {
	var l model.Listing
	if err := c.do(ctx, http.MethodGet, "/listings/"+url.PathEscape(listingID), nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// InitiateTokenPayment pays the token deposit of an order
func (c *Client) InitiateTokenPayment(ctx context.Context, orderID string, req model.TokenPaymentRequest) (*model.TokenPaymentResponse, error) {
	var out model.TokenPaymentResponse
	if err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/token-payment", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptOffer accepts a pending offer as the vendor
func (c *Client) AcceptOffer(ctx context.Context, offerID string) (*model.Offer, error) {
	return c.vendorAction(ctx, offerID, "accept", nil)
}

// RejectOffer rejects a pending offer as the vendor
func (c *Client) RejectOffer(ctx context.Context, offerID string) (*model.Offer, error) {
	return c.vendorAction(ctx, offerID, "reject", nil)
}

// CounterOffer answers a pending offer with a counter price
func (c *Client) CounterOffer(ctx context.Context, offerID string, req model.CounterOfferRequest) (*model.Offer, error) {
	return c.vendorAction(ctx, offerID, "counter", req)
}

func (c *Client) vendorAction(ctx context.Context, offerID, action string, body any) (*model.Offer, error) {
	var o model.Offer
	if err := c.do(ctx, http.MethodPost, "/vendor/offers/"+url.PathEscape(offerID)+"/"+action, body, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
