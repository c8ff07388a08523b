package devauth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/jobmatch/internal/ports"
)

func TestProvider_BeginAndExchange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prov, err := NewProvider(Config{
		Subject:   "dev-user",
		Email:     "dev@example.com",
		FirstName: "Dev",
		Groups:    []string{"users"},
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)

	ch, err := prov.Begin(context.Background(), ports.BeginInput{RedirectURL: "/"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ch.AuthURL, "/auth/callback?code=dev&state="+ch.State))
	assert.Len(t, ch.State, 32)
	assert.Len(t, ch.Nonce, 32)

	id, err := prov.Exchange(context.Background(), ports.ExchangeInput{Code: "dev", State: ch.State, Nonce: ch.Nonce})
	require.NoError(t, err)
	assert.Equal(t, "dev-user", id.Subject)
	assert.Equal(t, "dev@example.com", id.Email)
	assert.Equal(t, "Dev", id.DisplayName())
	assert.Equal(t, now.Add(8*time.Hour), id.ExpiresAt)
}

func TestProvider_ExchangeCopiesGroups(t *testing.T) {
	prov, err := NewProvider(Config{Subject: "s", Email: "e@x.io", Groups: []string{"a"}})
	require.NoError(t, err)

	id, err := prov.Exchange(context.Background(), ports.ExchangeInput{})
	require.NoError(t, err)
	id.Groups[0] = "mutated"

	again, err := prov.Exchange(context.Background(), ports.ExchangeInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.Groups)
}

func TestNewProvider_Validation(t *testing.T) {
	_, err := NewProvider(Config{Email: "e@x.io"})
	require.ErrorContains(t, err, "Subject is required")

	_, err = NewProvider(Config{Subject: "s"})
	require.ErrorContains(t, err, "Email is required")
}
