package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_IssueAndVerify_RoundTrips(t *testing.T) {
	signer := NewSigner("test-signing-key")
	tok, err := signer.Issue(42, "commerce-core", []string{PermCanCreateCharge}, []Quota{{Code: QuotaNumChargesPerOrder, Limit: 5}}, time.Hour)
	require.NoError(t, err)

	claims, err := signer.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.Profile)
	assert.True(t, claims.HasPerm(PermCanCreateCharge))
	assert.False(t, claims.HasPerm(PermCanOnboardMerchant))

	limit, ok := claims.QuotaFor(QuotaNumChargesPerOrder)
	require.True(t, ok)
	assert.Equal(t, int32(5), limit)
}

func TestSigner_Verify_RejectsExpiredToken(t *testing.T) {
	signer := NewSigner("test-signing-key")
	tok, err := signer.Issue(1, "commerce-core", nil, nil, -time.Minute)
	require.NoError(t, err)

	_, err = signer.Verify(tok)
	assert.Error(t, err)
}

func TestSigner_Verify_RejectsWrongKey(t *testing.T) {
	signer := NewSigner("key-a")
	other := NewSigner("key-b")
	tok, err := signer.Issue(1, "commerce-core", nil, nil, time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(tok)
	assert.Error(t, err)
}
