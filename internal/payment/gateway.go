package payment

import (
	"context"

	"eventhub/internal/model"
)

// TokenPayer is the backend call behind HTTPGateway
type TokenPayer interface {
	InitiateTokenPayment(ctx context.Context, orderID string, req model.TokenPaymentRequest) (*model.TokenPaymentResponse, error)
}

// HTTPGateway pays through the backend's token payment endpoint
type HTTPGateway struct {
	client TokenPayer
}

// NewHTTPGateway creates a gateway over client
func NewHTTPGateway(client TokenPayer) *HTTPGateway {
	return &HTTPGateway{client: client}
}

// Pay implements Gateway
func (g *HTTPGateway) Pay(ctx context.Context, req Request) (Receipt, error) {
	resp, err := g.client.InitiateTokenPayment(ctx, req.OrderID, model.TokenPaymentRequest{
		PaymentMethod: req.Method,
		Amount:        req.TokenAmount,
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{PaymentID: resp.PaymentID, Status: resp.Status}, nil
}
