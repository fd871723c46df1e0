package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"eventhub/internal/model"
)

// UpsertListing inserts or replaces a listing
func (s *Store) UpsertListing(ctx context.Context, l model.Listing) error {
	_, err := s.GetListing(ctx, l.ID)
	if err == nil {
		_, err = s.q.ExecContext(ctx,
			"UPDATE listings SET vendor_id = ?, name = ?, price = ?, minimum_quantity = ?, unit = ?, active = ? WHERE id = ?",
			l.VendorID, l.Name, l.Price, l.MinimumQuantity, l.Unit, l.Active, l.ID)
		if err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		"INSERT INTO listings (id, vendor_id, name, price, minimum_quantity, unit, active) VALUES (?, ?, ?, ?, ?, ?, ?)",
		l.ID, l.VendorID, l.Name, l.Price, l.MinimumQuantity, l.Unit, l.Active)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetListing loads a listing by id
func (s *Store) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	var l model.Listing
	err := s.q.QueryRowContext(ctx,
		"SELECT id, vendor_id, name, price, minimum_quantity, unit, active FROM listings WHERE id = ?", id,
	).Scan(&l.ID, &l.VendorID, &l.Name, &l.Price, &l.MinimumQuantity, &l.Unit, &l.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return &l, nil
}

// GetOrCreateThread returns the thread between customer and vendor, creating
// it on first use. created reports whether this call inserted it.
func (s *Store) GetOrCreateThread(ctx context.Context, customerID, vendorID string) (*model.Thread, bool, error) {
	t, err := s.findThread(ctx, customerID, vendorID)
	if err == nil {
		return t, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	t = &model.Thread{
		ID:         NewID(),
		CustomerID: customerID,
		VendorID:   vendorID,
		CreatedAt:  now(),
	}
	_, err = s.q.ExecContext(ctx,
		"INSERT INTO threads (id, customer_id, vendor_id, created_at) VALUES (?, ?, ?, ?)",
		t.ID, t.CustomerID, t.VendorID, t.CreatedAt)
	if err != nil {
		// lost a race against a concurrent create: the unique key holds the winner
		if existing, findErr := s.findThread(ctx, customerID, vendorID); findErr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("insert thread: %w", err)
	}
	return t, true, nil
}

func (s *Store) findThread(ctx context.Context, customerID, vendorID string) (*model.Thread, error) {
	var t model.Thread
	err := s.q.QueryRowContext(ctx,
		"SELECT id, customer_id, vendor_id, created_at FROM threads WHERE customer_id = ? AND vendor_id = ?",
		customerID, vendorID,
	).Scan(&t.ID, &t.CustomerID, &t.VendorID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find thread: %w", err)
	}
	return &t, nil
}

// GetThread loads a thread by id
func (s *Store) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	var t model.Thread
	err := s.q.QueryRowContext(ctx,
		"SELECT id, customer_id, vendor_id, created_at FROM threads WHERE id = ?", id,
	).Scan(&t.ID, &t.CustomerID, &t.VendorID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return &t, nil
}

// ListThreads returns the threads userID takes part in on side, most recently
// active first, each with its last message and the number of messages from
// the other side that are still unread.
func (s *Store) ListThreads(ctx context.Context, userID string, side model.SenderType, limit int) ([]model.ThreadSummary, error) {
	column := "customer_id"
	if side == model.SenderVendor {
		column = "vendor_id"
	}
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, customer_id, vendor_id, created_at FROM threads WHERE "+column+" = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	var threads []model.Thread
	for rows.Next() {
		var t model.Thread
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.VendorID, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// ids are ULIDs from one monotonic source, so the newest id marks the
	// latest activity
	type entry struct {
		summary  model.ThreadSummary
		activity string
	}
	entries := make([]entry, 0, len(threads))
	for _, t := range threads {
		e := entry{summary: model.ThreadSummary{Thread: t}, activity: t.ID}

		last, err := s.ListMessages(ctx, t.ID, 0, 1)
		if err != nil {
			return nil, err
		}
		if len(last.Content) > 0 {
			m := last.Content[0]
			e.summary.LastMessage = m.Content
			e.summary.LastMessageAt = &m.CreatedAt
			e.activity = m.ID
		}

		err = s.q.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM messages WHERE thread_id = ? AND sender_type <> ? AND is_read = ?",
			t.ID, string(side), false,
		).Scan(&e.summary.UnreadCount)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].activity > entries[j].activity })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]model.ThreadSummary, len(entries))
	for i, e := range entries {
		out[i] = e.summary
	}
	return out, nil
}

// CreateMessage stores m, assigning its id and timestamp
func (s *Store) CreateMessage(ctx context.Context, m *model.Message) error {
	m.ID = NewID()
	m.CreatedAt = now()
	m.IsRead = false
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO messages (id, thread_id, sender_id, sender_type, content, client_id, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.ThreadID, m.SenderID, string(m.SenderType), m.Content, m.ClientID, m.IsRead, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns one page of a thread's messages, newest first
func (s *Store) ListMessages(ctx context.Context, threadID string, page, size int) (model.MessagePage, error) {
	out := model.MessagePage{Page: page, Size: size, Content: []model.Message{}}

	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE thread_id = ?", threadID).Scan(&out.Total); err != nil {
		return out, fmt.Errorf("count messages: %w", err)
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT id, thread_id, sender_id, sender_type, content, client_id, is_read, created_at
		FROM messages WHERE thread_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		threadID, size, page*size)
	if err != nil {
		return out, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.Message
		var senderType string
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &senderType, &m.Content, &m.ClientID, &m.IsRead, &m.CreatedAt); err != nil {
			return out, fmt.Errorf("scan message: %w", err)
		}
		m.SenderType = model.SenderType(senderType)
		out.Content = append(out.Content, m)
	}
	return out, rows.Err()
}

// MarkRead marks every message in the thread written by the other side as
// read by reader. It returns the number of messages that changed.
func (s *Store) MarkRead(ctx context.Context, threadID string, reader model.SenderType) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		"UPDATE messages SET is_read = ? WHERE thread_id = ? AND sender_type <> ? AND is_read = ?",
		true, threadID, string(reader), false)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.RowsAffected()
}
