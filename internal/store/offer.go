package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventhub/internal/model"
)

const offerColumns = `id, thread_id, listing_id, listing_name, original_price, customized_price, offered_price,
	counter_price, counter_message, message, status, customization, event_type, event_date, event_time,
	venue_address, guest_count, order_id, token_amount, token_paid, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOffer(row scanner) (*model.Offer, error) {
	var (
		o                                   model.Offer
		status                              string
		customized, counter, token, guests  sql.NullInt64
		counterMsg, msg, custom, venue, oid sql.NullString
	)
	err := row.Scan(&o.ID, &o.ThreadID, &o.ListingID, &o.ListingName, &o.OriginalPrice, &customized, &o.OfferedPrice,
		&counter, &counterMsg, &msg, &status, &custom, &o.EventType, &o.EventDate, &o.EventTime,
		&venue, &guests, &oid, &token, &o.TokenPaid, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OfferStatus(status)
	o.CustomizedPrice = int64Ptr(customized)
	o.CounterPrice = int64Ptr(counter)
	o.TokenAmount = int64Ptr(token)
	o.OrderID = stringPtr(oid)
	o.CounterMessage = counterMsg.String
	o.Message = msg.String
	o.Customization = custom.String
	o.VenueAddress = venue.String
	if guests.Valid {
		g := int(guests.Int64)
		o.GuestCount = &g
	}
	return &o, nil
}

// CreateOffer stores o, assigning its id and timestamps
func (s *Store) CreateOffer(ctx context.Context, o *model.Offer) error {
	o.ID = NewID()
	o.CreatedAt = now()
	o.UpdatedAt = o.CreatedAt

	var guests sql.NullInt64
	if o.GuestCount != nil {
		guests = sql.NullInt64{Int64: int64(*o.GuestCount), Valid: true}
	}

	_, err := s.q.ExecContext(ctx,
		"INSERT INTO offers ("+offerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		o.ID, o.ThreadID, o.ListingID, o.ListingName, o.OriginalPrice, nullInt64(o.CustomizedPrice), o.OfferedPrice,
		nullInt64(o.CounterPrice), o.CounterMessage, o.Message, string(o.Status), o.Customization, o.EventType, o.EventDate, o.EventTime,
		o.VenueAddress, guests, nullString(o.OrderID), nullInt64(o.TokenAmount), o.TokenPaid, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

// GetOffer loads an offer by id
func (s *Store) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	o, err := scanOffer(s.q.QueryRowContext(ctx, "SELECT "+offerColumns+" FROM offers WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

// ListOffers returns the offers of a thread, oldest first
func (s *Store) ListOffers(ctx context.Context, threadID string) ([]model.Offer, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+offerColumns+" FROM offers WHERE thread_id = ? ORDER BY created_at ASC, id ASC", threadID)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	offers := []model.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

// HasActiveOffer reports whether the thread already has a PENDING or
// COUNTERED offer for the listing
func (s *Store) HasActiveOffer(ctx context.Context, threadID, listingID string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM offers WHERE thread_id = ? AND listing_id = ? AND status IN (?, ?))",
		threadID, listingID, string(model.OfferPending), string(model.OfferCountered),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active offer: %w", err)
	}
	return exists, nil
}

// UpdateOffer persists the mutable fields of o
func (s *Store) UpdateOffer(ctx context.Context, o *model.Offer) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE offers SET status = ?, counter_price = ?, counter_message = ?, order_id = ?, token_amount = ?,
		token_paid = ?, updated_at = ? WHERE id = ?`,
		string(o.Status), nullInt64(o.CounterPrice), o.CounterMessage, nullString(o.OrderID), nullInt64(o.TokenAmount),
		o.TokenPaid, o.UpdatedAt.UTC(), o.ID)
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
