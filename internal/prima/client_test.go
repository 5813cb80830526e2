package prima

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return New(Options{
		AuthBase:   srv.URL,
		APIBase:    srv.URL,
		PlayBase:   srv.URL,
		DeviceName: "prima2g test",
	})
}

func TestSessionCreate(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/session/create", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"accessToken":{"value":"tok-123"}}`))
	}))
	defer srv.Close()

	token, err := newTestClient(srv).SessionCreate(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, "user@example.com", gotBody["email"])
	assert.Equal(t, "pw", gotBody["password"])
	assert.Equal(t, "prima2g test", gotBody["deviceName"])
}

func TestSessionCreateMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errorCode":"BAD_CREDENTIALS"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).SessionCreate(context.Background(), "user@example.com", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestSessionCreateUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).SessionCreate(context.Background(), "user@example.com", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestChannelList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/json-rpc/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "tok", r.Header.Get("X-OTT-Access-Token"))
		assert.Equal(t, "WEB", r.Header.Get("X-OTT-CDN-Url-Type"))

		var req struct {
			JSONRPC string `json:"jsonrpc"`
			Method  string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "epg.channel.list", req.Method)

		_, _ = w.Write([]byte(`{"result":{"data":[{"id":"ch1","title":"Prima Cool"},{"id":"ch2","title":"Prima"}]}}`))
	}))
	defer srv.Close()

	channels, err := newTestClient(srv).ChannelList(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, channels, 2)
	// Provider order must be preserved; resolution is first-match-wins.
	assert.Equal(t, "ch1", channels[0].ID)
	assert.Equal(t, "Prima Cool", channels[0].Title)
	assert.Equal(t, "ch2", channels[1].ID)
}

func TestProgramList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params struct {
				Date struct {
					Date string `json:"date"`
				} `json:"date"`
				ChannelIDs []string `json:"channelIds"`
			} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "epg.program.bulk.list", req.Method)
		assert.Equal(t, "2026-03-01", req.Params.Date.Date)
		assert.Equal(t, []string{"ch1"}, req.Params.ChannelIDs)

		_, _ = w.Write([]byte(`{"result":{"data":[{"items":[
			{"title":"News","programStartTime":"2026-03-01T19:00:00+01:00","programEndTime":"2026-03-01T19:30:00+01:00","isPlayable":true,"playId":"p1"},
			{"title":"Movie","startTime":"2026-03-01T19:30:00","endTime":"2026-03-01T21:00:00","isPlayable":false,"id":"p2"}
		]}]}}`))
	}))
	defer srv.Close()

	programs, err := newTestClient(srv).ProgramList(context.Background(), "tok", "ch1", "2026-03-01")
	require.NoError(t, err)
	require.Len(t, programs, 2)

	assert.Equal(t, "2026-03-01T19:00:00+01:00", programs[0].Start())
	assert.Equal(t, "p1", programs[0].PlayRef())
	assert.True(t, programs[0].IsPlayable)

	// Legacy field names are picked up by the accessors.
	assert.Equal(t, "2026-03-01T19:30:00", programs[1].Start())
	assert.Equal(t, "2026-03-01T21:00:00", programs[1].End())
	assert.Equal(t, "p2", programs[1].PlayRef())
}

func TestProgramListEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"data":[]}}`))
	}))
	defer srv.Close()

	programs, err := newTestClient(srv).ProgramList(context.Background(), "tok", "ch1", "2026-03-01")
	require.NoError(t, err)
	assert.Empty(t, programs)
}

func TestRPCErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":-32600,"message":"invalid request"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ChannelList(context.Background(), "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.Contains(t, err.Error(), "invalid request")
}

func TestRPCMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ChannelList(context.Background(), "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestPlayInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/products/id-p777/play", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"streamInfos":[{"type":"HLS","url":"https://cdn.example/master.m3u8"}]}`))
	}))
	defer srv.Close()

	info, err := newTestClient(srv).PlayInfo(context.Background(), "tok", "p777")
	require.NoError(t, err)
	require.Len(t, info.StreamInfos, 1)
	assert.Equal(t, "HLS", info.StreamInfos[0].Type)
}

func TestFreePlayInfoSendsNoAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/products/id-p650443/play", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("X-OTT-Access-Token"))
		_, _ = w.Write([]byte(`{"streamInfos":[{"type":"HLS","url":"https://cdn.example/live.m3u8"}]}`))
	}))
	defer srv.Close()

	info, err := newTestClient(srv).FreePlayInfo(context.Background(), "p650443")
	require.NoError(t, err)
	require.Len(t, info.StreamInfos, 1)
}

func TestPlayInfoProviderErrorPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string payload", `{"error":"PLAYBACK_DENIED"}`, "PLAYBACK_DENIED"},
		{"object payload", `{"error":{"code":"GEO_BLOCKED"}}`, `{"code":"GEO_BLOCKED"}`},
		{"no payload", `{"streamInfos":[]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			info, err := newTestClient(srv).PlayInfo(context.Background(), "tok", "p1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.ErrorPayload())
		})
	}
}
