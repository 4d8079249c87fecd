package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
)

// ErrPaymentNotSettled is returned when the provider has not settled
// the referenced payment yet.
var ErrPaymentNotSettled = fmt.Errorf("payment is not settled")

// Gateway verifies settled payments and issues refunds with an
// external provider. Amounts are in major currency units.
type Gateway interface {
	// VerifyPayment checks that the provider settled at least amount
	// under the given reference.
	VerifyPayment(ctx context.Context, reference string, amount decimal.Decimal) error

	// Refund returns amount to the customer under the given reference.
	Refund(ctx context.Context, reference string, amount decimal.Decimal) error
}

// StripeGatewayConfig holds configuration for StripeGateway.
type StripeGatewayConfig struct {
	SecretKey string
	Currency  string
}

// StripeGateway implements Gateway against Stripe PaymentIntents.
type StripeGateway struct {
	currency string
}

// NewStripeGateway creates a new StripeGateway.
func NewStripeGateway(cfg *StripeGatewayConfig) (*StripeGateway, error) {
	if cfg == nil || cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "eur"
	}

	// Set Stripe API key globally
	stripe.Key = cfg.SecretKey

	return &StripeGateway{currency: currency}, nil
}

// VerifyPayment fetches the payment intent and checks it succeeded
// for at least the expected amount.
func (g *StripeGateway) VerifyPayment(ctx context.Context, reference string, amount decimal.Decimal) error {
	if reference == "" {
		return fmt.Errorf("payment reference is required")
	}

	pi, err := paymentintent.Get(reference, nil)
	if err != nil {
		return fmt.Errorf("failed to get payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("%w: status %s", ErrPaymentNotSettled, pi.Status)
	}

	// Stripe reports the smallest currency unit
	settled := decimal.NewFromInt(pi.Amount).Div(decimal.NewFromInt(100))
	if settled.LessThan(amount) {
		return fmt.Errorf("%w: settled %s, expected %s", ErrPaymentNotSettled, settled, amount)
	}
	return nil
}

// Refund returns amount to the customer on the original payment.
func (g *StripeGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal) error {
	if reference == "" {
		return fmt.Errorf("payment reference is required")
	}

	cents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(reference),
		Amount:        stripe.Int64(cents),
	}
	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}

// NoOpGateway accepts every payment. Used when bookings are settled
// out of band (cash desk, invoice) and in tests.
type NoOpGateway struct{}

func (NoOpGateway) VerifyPayment(ctx context.Context, reference string, amount decimal.Decimal) error {
	return nil
}

func (NoOpGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal) error {
	return nil
}
