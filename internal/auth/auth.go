// Package auth manages the Prima+ access token: a file-backed cache slot
// plus lazy re-authentication against the session endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pstastny/prima2g/internal/log"
	"github.com/pstastny/prima2g/internal/metrics"
	"github.com/pstastny/prima2g/internal/prima"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingCredentials means no account is configured; no network call
	// was made.
	ErrMissingCredentials = errors.New("auth: no credentials configured")
	// ErrLoginFailed wraps any session-create failure (bad credentials,
	// upstream error, malformed response, timeout).
	ErrLoginFailed = errors.New("auth: login failed")
)

// Credentials is a Prima+ account login pair.
type Credentials struct {
	Email    string
	Password string
}

// CredentialsProvider supplies the account credentials at call time, so a
// reconfigured account is picked up without restarting in-flight callers.
type CredentialsProvider interface {
	Credentials() Credentials
}

// CredentialsFunc adapts a plain function to a CredentialsProvider.
type CredentialsFunc func() Credentials

func (f CredentialsFunc) Credentials() Credentials { return f() }

// Static returns a provider for fixed credentials.
func Static(email, password string) CredentialsProvider {
	return CredentialsFunc(func() Credentials {
		return Credentials{Email: email, Password: password}
	})
}

// Client hands out valid tokens, hitting the network only when the cached
// one is missing or expired. It performs no retries; a failed login is
// terminal for the request.
type Client struct {
	prima *prima.Client
	store Store
	creds CredentialsProvider
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// New returns an auth client. ttl is the local validity window assigned to
// freshly obtained tokens.
func New(client *prima.Client, store Store, creds CredentialsProvider, ttl time.Duration) *Client {
	return &Client{
		prima: client,
		store: store,
		creds: creds,
		ttl:   ttl,
		now:   time.Now,
		log:   log.WithComponent("auth"),
	}
}

// ValidToken returns a usable token, preferring the cached one. An expired
// cached token is discarded, never returned.
func (a *Client) ValidToken(ctx context.Context) (Token, error) {
	if t, ok := a.store.Load(); ok {
		if t.Valid(a.now()) {
			metrics.RecordTokenCache("hit")
			return t, nil
		}
		metrics.RecordTokenCache("expired")
		a.log.Debug().Time("valid_to", t.ExpiresAt).Msg("cached token expired")
	} else {
		metrics.RecordTokenCache("miss")
	}

	creds := a.creds.Credentials()
	if creds.Email == "" || creds.Password == "" {
		return Token{}, ErrMissingCredentials
	}

	value, err := a.prima.SessionCreate(ctx, creds.Email, creds.Password)
	if err != nil {
		metrics.RecordLogin("failure")
		a.log.Warn().Err(err).Msg("provider login failed")
		return Token{}, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	metrics.RecordLogin("success")

	t := Token{Value: value, ExpiresAt: a.now().Add(a.ttl)}
	a.store.Save(t)
	a.log.Info().Time("valid_to", t.ExpiresAt).Msg("provider login succeeded")
	return t, nil
}
