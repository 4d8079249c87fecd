package access

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/intercity-tours/booking/internal/domain"
)

// Scopes a ticket token may carry. View allows reading the ticket,
// Modify additionally allows reschedule, baggage and cancel calls.
const (
	ScopeView   = "ticket:view"
	ScopeModify = "ticket:modify"
)

// TicketClaims represents the claims of a ticket access token.
type TicketClaims struct {
	TicketID   string   `json:"ticket_id"`
	PurchaseID string   `json:"purchase_id"`
	Scopes     []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Grant is the authorization a verified token confers.
type Grant struct {
	TicketID   string
	PurchaseID string
	Scopes     []string
}

// Allows reports whether the grant carries the scope.
func (g Grant) Allows(scope string) bool {
	for _, s := range g.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// TokenIssuerConfig holds configuration for TokenIssuer.
type TokenIssuerConfig struct {
	Secret      string
	TTL         time.Duration
	DeepLinkURL string
}

// TokenIssuer signs and verifies ticket access tokens (HS256). Tokens
// are embedded in deep links so a customer can open a ticket without
// an account.
type TokenIssuer struct {
	secret      []byte
	ttl         time.Duration
	deepLinkURL string
}

// NewTokenIssuer creates a new TokenIssuer.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenIssuer{
		secret:      []byte(cfg.Secret),
		ttl:         ttl,
		deepLinkURL: cfg.DeepLinkURL,
	}, nil
}

// Issue signs a token granting the scopes on one ticket.
func (i *TokenIssuer) Issue(ticketID, purchaseID string, scopes []string) (string, error) {
	now := time.Now()
	claims := TicketClaims{
		TicketID:   ticketID,
		PurchaseID: purchaseID,
		Scopes:     scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "intercity-booking",
			Subject:   ticketID,
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket token: %w", err)
	}
	return signed, nil
}

// DeepLink builds the customer-facing URL for a freshly issued token.
func (i *TokenIssuer) DeepLink(token string) string {
	if i.deepLinkURL == "" {
		return ""
	}
	return fmt.Sprintf("%s?t=%s", i.deepLinkURL, url.QueryEscape(token))
}

// Verify parses a token and returns its grant. Any parse or signature
// failure maps to domain.ErrForbidden.
func (i *TokenIssuer) Verify(tokenString string) (Grant, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TicketClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return Grant{}, domain.ErrForbidden
	}

	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid {
		return Grant{}, domain.ErrForbidden
	}

	return Grant{
		TicketID:   claims.TicketID,
		PurchaseID: claims.PurchaseID,
		Scopes:     claims.Scopes,
	}, nil
}

// Authorize checks that the grant covers the ticket and scope.
func Authorize(g Grant, ticketID, scope string) error {
	if g.TicketID != ticketID || !g.Allows(scope) {
		return domain.ErrForbidden
	}
	return nil
}
