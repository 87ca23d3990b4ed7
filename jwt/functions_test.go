package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func validClaims() Claims {
	now := time.Now()
	return Claims{
		Issuer:         "healthvault",
		Subject:        "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Role:           "patient",
		IssuedAt:       now.Unix(),
		ExpirationTime: now.Add(time.Hour).Unix(),
	}
}

func TestCreateValidate(t *testing.T) {
	claims := validClaims()

	token, err := Create(claims, secret)
	require.NoError(t, err)

	header, got, err := Validate(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "HS256", header.Algorithm)
	if diff := cmp.Diff(claims, *got); diff != "" {
		t.Fatalf("claims mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := Create(validClaims(), secret)
	require.NoError(t, err)

	_, _, err = Validate(token, "other-secret")
	assert.ErrorContains(t, err, "signature")
}

func TestValidateExpired(t *testing.T) {
	claims := validClaims()
	claims.ExpirationTime = time.Now().Add(-time.Minute).Unix()

	token, err := Create(claims, secret)
	require.NoError(t, err)

	_, _, err = Validate(token, secret)
	assert.ErrorContains(t, err, "expired")
}

func TestValidateRequiresExpiry(t *testing.T) {
	claims := validClaims()
	claims.ExpirationTime = 0

	token, err := Create(claims, secret)
	require.NoError(t, err)

	_, _, err = Validate(token, secret)
	assert.Error(t, err)
}

func TestValidateTamperedPayload(t *testing.T) {
	token, err := Create(validClaims(), secret)
	require.NoError(t, err)

	other := validClaims()
	other.Subject = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	forged, err := Create(other, "attacker")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	forgedParts := strings.Split(forged, ".")
	_, _, err = Validate(parts[0]+"."+forgedParts[1]+"."+parts[2], secret)
	assert.Error(t, err)
}

func TestValidateMalformed(t *testing.T) {
	_, _, err := Validate("not-a-token", secret)
	assert.Error(t, err)
}
