package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intercity-tours/booking/internal/domain"
)

func testIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		Secret:      "test-secret",
		TTL:         time.Hour,
		DeepLinkURL: "https://tickets.example.com/t",
	})
	require.NoError(t, err)
	return issuer
}

func TestNewTokenIssuer_RequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer(TokenIssuerConfig{})
	assert.Error(t, err)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := testIssuer(t)

	token, err := issuer.Issue("ticket-1", "purchase-1", []string{ScopeView, ScopeModify})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	grant, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ticket-1", grant.TicketID)
	assert.Equal(t, "purchase-1", grant.PurchaseID)
	assert.True(t, grant.Allows(ScopeView))
	assert.True(t, grant.Allows(ScopeModify))
}

func TestTokenIssuer_VerifyRejectsWrongSecret(t *testing.T) {
	issuer := testIssuer(t)
	token, err := issuer.Issue("ticket-1", "purchase-1", []string{ScopeView})
	require.NoError(t, err)

	other, err := NewTokenIssuer(TokenIssuerConfig{Secret: "other-secret"})
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTokenIssuer_VerifyRejectsGarbage(t *testing.T) {
	issuer := testIssuer(t)

	_, err := issuer.Verify("not.a.token")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = issuer.Verify("")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTokenIssuer_VerifyRejectsExpired(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		Secret: "test-secret",
		TTL:    -time.Minute,
	})
	require.NoError(t, err)

	token, err := issuer.Issue("ticket-1", "purchase-1", []string{ScopeView})
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTokenIssuer_VerifyRejectsTampering(t *testing.T) {
	issuer := testIssuer(t)
	token, err := issuer.Issue("ticket-1", "purchase-1", []string{ScopeView})
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = issuer.Verify(tampered)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTokenIssuer_DeepLink(t *testing.T) {
	issuer := testIssuer(t)
	assert.Equal(t, "https://tickets.example.com/t?t=abc", issuer.DeepLink("abc"))

	bare, err := NewTokenIssuer(TokenIssuerConfig{Secret: "s"})
	require.NoError(t, err)
	assert.Empty(t, bare.DeepLink("abc"))
}

func TestAuthorize(t *testing.T) {
	grant := Grant{TicketID: "ticket-1", Scopes: []string{ScopeView}}

	assert.NoError(t, Authorize(grant, "ticket-1", ScopeView))
	assert.ErrorIs(t, Authorize(grant, "ticket-1", ScopeModify), domain.ErrForbidden)
	assert.ErrorIs(t, Authorize(grant, "ticket-2", ScopeView), domain.ErrForbidden)
}
