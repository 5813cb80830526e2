// Package prima implements the HTTP transport client for the Prima+ web
// API: session creation, the JSON-RPC gateway (channel list, per-day
// programme listings) and the play-backend (stream info).
package prima

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pstastny/prima2g/internal/metrics"
)

// DefaultUserAgent mimics a desktop browser; the provider rejects obviously
// non-browser agents on some endpoints.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/77.0.3865.90 Safari/537.36"

const (
	defaultTimeout  = 15 * time.Second
	maxBodyBytes    = 4 << 20
	bodySnippetSize = 512
)

// Options configures a Client. Zero values fall back to the production
// endpoints and defaults.
type Options struct {
	AuthBase   string // session-create host
	APIBase    string // JSON-RPC gateway host
	PlayBase   string // play-backend host
	Timeout    time.Duration
	UserAgent  string
	DeviceName string // sent with login requests
}

// Client is a synchronous Prima+ API client. All calls carry the configured
// timeout and are safe for concurrent use.
type Client struct {
	authBase   string
	apiBase    string
	playBase   string
	http       *http.Client
	userAgent  string
	deviceName string
}

// New returns a Client for the given endpoints.
func New(opts Options) *Client {
	if opts.AuthBase == "" {
		opts.AuthBase = "https://ucet.iprima.cz"
	}
	if opts.APIBase == "" {
		opts.APIBase = "https://gateway-api.prod.iprima.cz"
	}
	if opts.PlayBase == "" {
		opts.PlayBase = "https://api.play-backend.iprima.cz"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.DeviceName == "" {
		opts.DeviceName = "prima2g"
	}
	return &Client{
		authBase:   strings.TrimRight(opts.AuthBase, "/"),
		apiBase:    strings.TrimRight(opts.APIBase, "/"),
		playBase:   strings.TrimRight(opts.PlayBase, "/"),
		http:       &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		deviceName: opts.DeviceName,
	}
}

// UserAgent returns the agent string the client sends; stream descriptors
// carry the same value so the player matches the negotiation requests.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// SessionCreate logs in and returns the raw access-token value. The caller
// owns expiry bookkeeping; the provider does not announce a TTL.
func (c *Client) SessionCreate(ctx context.Context, email, password string) (string, error) {
	const op = "session.create"
	payload := map[string]string{
		"email":      email,
		"password":   password,
		"deviceName": c.deviceName,
	}
	var out struct {
		AccessToken struct {
			Value string `json:"value"`
		} `json:"accessToken"`
	}
	if err := c.postJSON(ctx, op, c.authBase+"/api/session/create", "", payload, &out); err != nil {
		return "", err
	}
	if out.AccessToken.Value == "" {
		return "", &APIError{Sentinel: ErrBadResponse, Operation: op, Body: "response carries no accessToken"}
	}
	return out.AccessToken.Value, nil
}

// ChannelList fetches the authoritative channel list in provider order.
func (c *Client) ChannelList(ctx context.Context, token string) ([]Channel, error) {
	const op = "epg.channel.list"
	var data []Channel
	if err := c.rpc(ctx, token, op, struct{}{}, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// ProgramList fetches one channel's guide for a single calendar day
// (date formatted YYYY-MM-DD in the provider's civil time zone).
func (c *Client) ProgramList(ctx context.Context, token, channelID, date string) ([]Program, error) {
	const op = "epg.program.bulk.list"
	params := struct {
		Date struct {
			Date string `json:"date"`
		} `json:"date"`
		ChannelIDs []string `json:"channelIds"`
	}{ChannelIDs: []string{channelID}}
	params.Date.Date = date

	var data []struct {
		Items []Program `json:"items"`
	}
	if err := c.rpc(ctx, token, op, params, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data[0].Items, nil
}

// PlayInfo fetches the stream-info collection for an archived programme.
func (c *Client) PlayInfo(ctx context.Context, token, playID string) (*PlayInfo, error) {
	return c.playInfo(ctx, "play.archive", token, playID)
}

// FreePlayInfo fetches stream info for an unrestricted product. No token is
// required.
func (c *Client) FreePlayInfo(ctx context.Context, productID string) (*PlayInfo, error) {
	return c.playInfo(ctx, "play.free", "", productID)
}

func (c *Client) playInfo(ctx context.Context, op, token, productID string) (*PlayInfo, error) {
	u := c.playBase + "/api/v1/products/id-" + url.PathEscape(productID) + "/play"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}
	c.setHeaders(req, token)
	var out PlayInfo
	if err := c.do(op, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// rpc issues one JSON-RPC call against the gateway and decodes result.data
// into data.
func (c *Client) rpc(ctx context.Context, token, method string, params, data any) error {
	payload := struct {
		ID      string `json:"id"`
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params"`
	}{ID: "prima2g-1", JSONRPC: "2.0", Method: method, Params: params}

	var envelope struct {
		Result struct {
			Data json.RawMessage `json:"data"`
		} `json:"result"`
		Error json.RawMessage `json:"error"`
	}
	if err := c.postJSON(ctx, method, c.apiBase+"/json-rpc/", token, payload, &envelope); err != nil {
		return err
	}
	if len(envelope.Error) > 0 {
		return &APIError{Sentinel: ErrBadResponse, Operation: method, Body: snippet(envelope.Error)}
	}
	if len(envelope.Result.Data) == 0 {
		return &APIError{Sentinel: ErrBadResponse, Operation: method, Body: "response carries no result.data"}
	}
	if err := json.Unmarshal(envelope.Result.Data, data); err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: method, Err: err}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, op, u, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}
	c.setHeaders(req, token)
	return c.do(op, req, out)
}

// setHeaders applies the browser agent plus, when a token is present, the
// OTT auth headers the gateway expects.
func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json; charset=utf-8")
	if req.Method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-OTT-Access-Token", token)
		req.Header.Set("X-OTT-CDN-Url-Type", "WEB")
	}
}

// do executes the request, normalizes transport failures into the package
// sentinels and decodes a 2xx JSON body into out.
func (c *Client) do(op string, req *http.Request, out any) error {
	start := time.Now()
	res, err := c.http.Do(req)
	metrics.ObserveUpstream(op, time.Since(start))
	if err != nil {
		return classifyTransport(op, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return classifyTransport(op, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{Sentinel: ErrStatus, Operation: op, Status: res.StatusCode, Body: snippet(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Body: snippet(body), Err: err}
	}
	return nil
}

func classifyTransport(op string, err error) error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &APIError{Sentinel: ErrTimeout, Operation: op, Err: err}
	}
	return &APIError{Sentinel: ErrUnavailable, Operation: op, Err: err}
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > bodySnippetSize {
		return fmt.Sprintf("%s... (%d bytes)", s[:bodySnippetSize], len(s))
	}
	return s
}
