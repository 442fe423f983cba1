package devauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeHak0/Neuro-Triage/internal/ports"
)

func TestProvider_SignInAndIdentify(t *testing.T) {
	prov, err := NewProvider(Config{
		UserID: "dev-user",
		Email:  "dev@example.com",
		Groups: []string{"memory-clinic"},
	})
	require.NoError(t, err)

	redirect, err := prov.SignIn(context.Background())
	require.NoError(t, err)
	assert.Contains(t, redirect.URL, "/auth/callback?")
	assert.Contains(t, redirect.URL, "state="+redirect.State)
	assert.NotEmpty(t, redirect.Nonce)

	identity, err := prov.Identify(context.Background(), ports.Callback{
		Code: "dev", State: redirect.State, Nonce: redirect.Nonce,
	})
	require.NoError(t, err)
	assert.Equal(t, "dev-user", identity.UserID)
	assert.Equal(t, "dev@example.com", identity.Email)
	assert.Equal(t, []string{"memory-clinic"}, identity.Groups)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), identity.ExpiresAt, time.Minute)
}

func TestNewProvider_RequiresUserAndEmail(t *testing.T) {
	_, err := NewProvider(Config{Email: "dev@example.com"})
	assert.Error(t, err)

	_, err = NewProvider(Config{UserID: "dev-user"})
	assert.Error(t, err)
}
