package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventhub/internal/model"
)

// CreateOrder stores ord, assigning its id and timestamp
func (s *Store) CreateOrder(ctx context.Context, ord *model.Order) error {
	ord.ID = NewID()
	ord.CreatedAt = now()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO orders (id, offer_id, thread_id, customer_id, vendor_id, total_amount, token_amount, token_paid, payment_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ord.ID, ord.OfferID, ord.ThreadID, ord.CustomerID, ord.VendorID, ord.TotalAmount, ord.TokenAmount,
		ord.TokenPaid, ord.PaymentID, string(ord.Status), ord.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetOrder loads an order by id
func (s *Store) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var ord model.Order
	var status string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, offer_id, thread_id, customer_id, vendor_id, total_amount, token_amount, token_paid, payment_id, status, created_at
		FROM orders WHERE id = ?`, id,
	).Scan(&ord.ID, &ord.OfferID, &ord.ThreadID, &ord.CustomerID, &ord.VendorID, &ord.TotalAmount, &ord.TokenAmount,
		&ord.TokenPaid, &ord.PaymentID, &status, &ord.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	ord.Status = model.OrderStatus(status)
	return &ord, nil
}

// MarkOrderPaid records the token payment and confirms the order
func (s *Store) MarkOrderPaid(ctx context.Context, orderID, paymentID string) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE orders SET token_paid = ?, payment_id = ?, status = ? WHERE id = ? AND token_paid = ?",
		true, paymentID, string(model.OrderConfirmed), orderID, false)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
