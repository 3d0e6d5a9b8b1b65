package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService() *jwtService {
	return NewJWTService(Config{
		Secret:     testSecret,
		Issuer:     "practice-api",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}).(*jwtService)
}

func TestGenerateAndValidate(t *testing.T) {
	svc := newTestService()
	subject := Subject{UserID: uuid.New(), Email: "doc@example.com", Role: "DOCTOR", ProfileID: uuid.New()}

	token, issued, err := svc.Generate(subject, TokenTypeAccess)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := svc.Validate(token, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, subject.UserID, claims.UserID)
	assert.Equal(t, subject.ProfileID, claims.ProfileID)
	assert.Equal(t, "DOCTOR", claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
	assert.InDelta(t, (15 * time.Minute).Seconds(), claims.TTL(time.Now()).Seconds(), 5)
}

func TestValidateRejectsWrongType(t *testing.T) {
	svc := newTestService()
	token, _, err := svc.Generate(Subject{UserID: uuid.New()}, TokenTypeRefresh)
	require.NoError(t, err)

	_, err = svc.Validate(token, TokenTypeAccess)
	assert.True(t, errors.Is(err, ErrWrongTokenType))
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := newTestService()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.Generate(Subject{UserID: uuid.New()}, TokenTypeAccess)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Validate(token, TokenTypeAccess)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	svc := newTestService()
	other := NewJWTService(Config{Secret: "another-secret-another-secret-xx", Issuer: "practice-api", AccessTTL: time.Minute})
	token, _, err := other.Generate(Subject{UserID: uuid.New()}, TokenTypeAccess)
	require.NoError(t, err)

	_, err = svc.Validate(token, TokenTypeAccess)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	svc := newTestService()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    "practice-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID:    uuid.New(),
		TokenType: TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Validate(token, TokenTypeAccess)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}
