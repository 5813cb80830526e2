package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/pstastny/prima2g/internal/auth"
	"github.com/pstastny/prima2g/internal/epg"
	"github.com/pstastny/prima2g/internal/prima"
	"github.com/pstastny/prima2g/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	token auth.Token
	ok    bool
}

func (m *memStore) Load() (auth.Token, bool) { return m.token, m.ok }
func (m *memStore) Save(t auth.Token)        { m.token, m.ok = t, true }

// providerCounters tracks how often each backend surface was hit.
type providerCounters struct {
	logins  atomic.Int32
	rpcs    atomic.Int32
	plays   atomic.Int32
	overall atomic.Int32
}

// fakeProvider serves the whole upstream surface from one server: session
// create, both JSON-RPC methods and the play endpoint.
func fakeProvider(t *testing.T, counters *providerCounters) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counters.overall.Add(1)
		switch r.URL.Path {
		case "/api/session/create":
			counters.logins.Add(1)
			_, _ = w.Write([]byte(`{"accessToken":{"value":"fresh-token"}}`))

		case "/json-rpc/":
			counters.rpcs.Add(1)
			var req struct {
				Method string `json:"method"`
				Params struct {
					Date struct {
						Date string `json:"date"`
					} `json:"date"`
				} `json:"params"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			switch req.Method {
			case "epg.channel.list":
				_, _ = w.Write([]byte(`{"result":{"data":[{"id":"ch-love","title":"Prima Love"},{"id":"ch-main","title":"Prima"}]}}`))
			case "epg.program.bulk.list":
				if req.Params.Date.Date == "2026-03-10" {
					_, _ = w.Write([]byte(`{"result":{"data":[{"items":[
						{"title":"Talk","programStartTime":"2026-03-10T14:00:00","programEndTime":"2026-03-10T14:30:00","isPlayable":true,"playId":"p42"}
					]}]}}`))
					return
				}
				_, _ = w.Write([]byte(`{"result":{"data":[{"items":[]}]}}`))
			default:
				t.Errorf("unexpected rpc method %q", req.Method)
			}

		case "/api/v1/products/id-p42/play":
			counters.plays.Add(1)
			require.Equal(t, "Bearer fresh-token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"streamInfos":[{"type":"HLS","url":"https://cdn.example/talk_lq.m3u8"}]}`))

		default:
			t.Errorf("unexpected request path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func newResolver(t *testing.T, srv *httptest.Server, store auth.Store, creds auth.CredentialsProvider) *Resolver {
	t.Helper()
	client := prima.New(prima.Options{AuthBase: srv.URL, APIBase: srv.URL, PlayBase: srv.URL})
	a := auth.New(client, store, creds, 7*time.Hour)
	search, err := epg.NewSearch(a, client, epg.SearchOptions{Timezone: "Europe/Prague", Days: 7, Pace: time.Millisecond})
	require.NoError(t, err)
	return New(a, epg.NewDirectory(a, client), search, stream.NewNegotiator(client, a, "http://relay.example"))
}

func TestResolveCatchupEndToEnd(t *testing.T) {
	var counters providerCounters
	srv := fakeProvider(t, &counters)
	defer srv.Close()

	// The stored token is stale, forcing exactly one login up front; the
	// pipeline then reuses the fresh token for every subsequent call.
	store := &memStore{token: auth.Token{Value: "stale", ExpiresAt: time.Now().Add(-time.Minute)}, ok: true}
	r := newResolver(t, srv, store, auth.Static("u@example.com", "pw"))

	// 13:00Z is 14:00 in Prague during winter time, the exact start of the
	// guide slot.
	desc, err := r.ResolveCatchup(context.Background(), "primalove",
		time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example/talk.m3u8", desc.URL, "low-quality marker must be stripped")
	assert.Equal(t, stream.ManifestHLS, desc.ManifestType)
	assert.Equal(t, prima.DefaultUserAgent, desc.Headers["User-Agent"])

	assert.Equal(t, int32(1), counters.logins.Load(), "one login for the whole pipeline")
	assert.Equal(t, int32(2), counters.rpcs.Load(), "channel list plus a single guide day")
	assert.Equal(t, int32(1), counters.plays.Load())
	assert.Equal(t, "fresh-token", store.token.Value, "fresh token must be persisted")
}

func TestResolveCatchupMissingCredentials(t *testing.T) {
	var counters providerCounters
	srv := fakeProvider(t, &counters)
	defer srv.Close()

	r := newResolver(t, srv, &memStore{}, auth.Static("", ""))

	_, err := r.ResolveCatchup(context.Background(), "primalove", time.Now())
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindMissingCredentials, rerr.Kind)
	assert.Contains(t, rerr.Message, "Prima+")
	assert.Equal(t, int32(0), counters.overall.Load(), "no upstream traffic without credentials")
}

func TestResolveCatchupUnknownChannel(t *testing.T) {
	var counters providerCounters
	srv := fakeProvider(t, &counters)
	defer srv.Close()

	store := &memStore{token: auth.Token{Value: "fresh-token", ExpiresAt: time.Now().Add(time.Hour)}, ok: true}
	r := newResolver(t, srv, store, auth.Static("u@example.com", "pw"))

	_, err := r.ResolveCatchup(context.Background(), "neexistuje", time.Now())
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindChannelNotFound, rerr.Kind)
	assert.Contains(t, rerr.Message, "neexistuje")
}

func TestResolveLiveRelay(t *testing.T) {
	var counters providerCounters
	srv := fakeProvider(t, &counters)
	defer srv.Close()

	store := &memStore{token: auth.Token{Value: "fresh-token", ExpiresAt: time.Now().Add(time.Hour)}, ok: true}
	r := newResolver(t, srv, store, auth.Static("u@example.com", "pw"))

	desc, err := r.ResolveLive(context.Background(), "primamax")
	require.NoError(t, err)
	assert.Equal(t, "http://relay.example/iprima.php?ch=max", desc.URL)
	assert.Equal(t, int32(0), counters.overall.Load(), "relay channels need no upstream calls")
}

func TestResolveLiveUnknownChannel(t *testing.T) {
	var counters providerCounters
	srv := fakeProvider(t, &counters)
	defer srv.Close()

	r := newResolver(t, srv, &memStore{}, auth.Static("u@example.com", "pw"))

	_, err := r.ResolveLive(context.Background(), "hbo")
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindChannelNotFound, rerr.Kind)
}

func TestClassifyKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"missing credentials", auth.ErrMissingCredentials, KindMissingCredentials},
		{"login failed", auth.ErrLoginFailed, KindLoginFailed},
		{"timeout", prima.ErrTimeout, KindNetworkTimeout},
		{"deadline", context.DeadlineExceeded, KindNetworkTimeout},
		{"channel not found", epg.ErrChannelNotFound, KindChannelNotFound},
		{"unknown live channel", stream.ErrUnknownChannel, KindChannelNotFound},
		{"directory unavailable", epg.ErrDirectoryUnavailable, KindDirectoryUnavailable},
		{"not playable", epg.ErrProgramNotPlayable, KindProgramNotPlayable},
		{"not found", epg.ErrProgramNotFound, KindProgramNotFound},
		{"provider payload", &stream.ProviderError{Payload: "GEO"}, KindProviderError},
		{"stream unavailable", stream.ErrStreamUnavailable, KindStreamUnavailable},
		{"anything else", errors.New("weird"), KindProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, "prima")
			assert.Equal(t, tt.want, got.Kind)
			assert.NotEmpty(t, got.Message)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyLoginFailedBeatsTimeoutOrder(t *testing.T) {
	// A login that timed out is reported as login_failed; the credential
	// boundary owns the message even when the cause is transport-level.
	err := classify(errors.Join(auth.ErrLoginFailed, prima.ErrTimeout), "prima")
	assert.Equal(t, KindLoginFailed, err.Kind)
}
