package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chillserv/fieldops/internal/config"
	"github.com/chillserv/fieldops/internal/identity"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewManager(config.Config{AuthJWTSecret: "test-secret"})

	actor := identity.Actor{ID: 42, Name: "Budi", Email: "budi@fieldops.test", Role: identity.RoleTechnician}
	token, err := m.CreateAccessToken(actor)
	require.NoError(t, err)

	parsed, err := m.ParseValidate(token)
	require.NoError(t, err)
	assert.Equal(t, actor, parsed)
}

func TestParseValidateRejectsWrongSecret(t *testing.T) {
	signer := NewManager(config.Config{AuthJWTSecret: "secret-a"})
	verifier := NewManager(config.Config{AuthJWTSecret: "secret-b"})

	token, err := signer.CreateAccessToken(identity.Actor{ID: 1, Role: identity.RoleCustomer})
	require.NoError(t, err)

	_, err = verifier.ParseValidate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseValidateRejectsExpiredToken(t *testing.T) {
	m := NewManager(config.Config{AuthJWTSecret: "test-secret"})
	m.ttl = -time.Minute

	token, err := m.CreateAccessToken(identity.Actor{ID: 1, Role: identity.RoleCustomer})
	require.NoError(t, err)

	_, err = m.ParseValidate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseValidateGarbage(t *testing.T) {
	m := NewManager(config.Config{AuthJWTSecret: "test-secret"})
	_, err := m.ParseValidate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
