package confirmtoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_IssueThenVerify_RoundTrips(t *testing.T) {
	signer := NewSigner("test-secret")
	bookingID := uuid.New()
	actorID := uuid.New()

	token, err := signer.Issue("resolve_dispute", bookingID, actorID, time.Minute)
	require.NoError(t, err)

	verifiedActor, err := signer.Verify(token, "resolve_dispute", bookingID)
	require.NoError(t, err)
	assert.Equal(t, actorID, verifiedActor)
}

func TestSigner_Verify_RejectsWrongResource(t *testing.T) {
	signer := NewSigner("test-secret")
	token, err := signer.Issue("resolve_dispute", uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)

	_, err = signer.Verify(token, "resolve_dispute", uuid.New())
	assert.ErrorIs(t, err, ErrActionMismatch)
}

func TestSigner_Verify_RejectsWrongAction(t *testing.T) {
	signer := NewSigner("test-secret")
	bookingID := uuid.New()
	token, err := signer.Issue("resolve_dispute", bookingID, uuid.New(), time.Minute)
	require.NoError(t, err)

	_, err = signer.Verify(token, "cancel_booking", bookingID)
	assert.ErrorIs(t, err, ErrActionMismatch)
}

func TestSigner_Verify_RejectsExpiredToken(t *testing.T) {
	signer := NewSigner("test-secret")
	bookingID := uuid.New()
	token, err := signer.Issue("resolve_dispute", bookingID, uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = signer.Verify(token, "resolve_dispute", bookingID)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSigner_Verify_RejectsTamperedSignature(t *testing.T) {
	signer := NewSigner("test-secret")
	bookingID := uuid.New()
	token, err := signer.Issue("resolve_dispute", bookingID, uuid.New(), time.Minute)
	require.NoError(t, err)

	_, err = signer.Verify(token+"x", "resolve_dispute", bookingID)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_Verify_RejectsTokenSignedWithDifferentSecret(t *testing.T) {
	bookingID := uuid.New()
	token, err := NewSigner("secret-a").Issue("resolve_dispute", bookingID, uuid.New(), time.Minute)
	require.NoError(t, err)

	_, err = NewSigner("secret-b").Verify(token, "resolve_dispute", bookingID)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_Verify_RejectsMalformedToken(t *testing.T) {
	signer := NewSigner("test-secret")
	_, err := signer.Verify("not-a-valid-token", "resolve_dispute", uuid.New())
	assert.ErrorIs(t, err, ErrInvalidToken)
}
