// Package stream negotiates concrete playable stream descriptors for live
// channels and archived programmes.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/pstastny/prima2g/internal/auth"
	"github.com/pstastny/prima2g/internal/log"
	"github.com/pstastny/prima2g/internal/prima"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownChannel means the live channel key maps to no relay code.
	ErrUnknownChannel = errors.New("stream: unknown live channel")
	// ErrStreamUnavailable means the provider returned no usable stream
	// entry for the programme.
	ErrStreamUnavailable = errors.New("stream: no stream available")
)

// ProviderError carries an error payload embedded in an otherwise valid
// provider response.
type ProviderError struct {
	Payload string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("stream: provider error: %s", e.Payload)
}

// ManifestHLS is the only manifest type the provider hands out.
const ManifestHLS = "hls"

// Descriptor is the terminal output of the resolution pipeline: a playable
// URL plus the headers the player must send. Immutable once constructed.
type Descriptor struct {
	URL          string            `json:"url"`
	ManifestType string            `json:"manifest_type"`
	Headers      map[string]string `json:"headers"`
}

// lqMarker is the low-quality variant token some stream URLs carry; it is
// stripped so players always receive the full-quality manifest.
const lqMarker = "_lq"

// freeProductID is the play product of the one channel streamable without
// an account (CNN Prima News).
const freeProductID = "p650443"

// relayCodes maps caller channel keys to the short codes the live relay
// expects. Distinct from the directory aliases: the relay predates the
// catchup API and keeps its own naming.
var relayCodes = map[string]string{
	"prima":      "prima",
	"primalove":  "love",
	"primakrimi": "krimi",
	"primamax":   "max",
	"primacool":  "cool",
	"primazoom":  "zoom",
	"primastar":  "star",
	"primashow":  "show",
}

// freeChannel reports whether the key names the login-free channel.
func freeChannel(key string) bool {
	return key == "cnn" || key == "cnnprimanews"
}

// Negotiator produces stream descriptors. Live relay URLs need no
// negotiation; archive streams require a valid token.
type Negotiator struct {
	prima     *prima.Client
	auth      *auth.Client
	relayBase string
	log       zerolog.Logger
}

// NewNegotiator returns a negotiator relaying generic live channels through
// relayBase.
func NewNegotiator(c *prima.Client, a *auth.Client, relayBase string) *Negotiator {
	return &Negotiator{
		prima:     c,
		auth:      a,
		relayBase: strings.TrimRight(relayBase, "/"),
		log:       log.WithComponent("stream"),
	}
}

// Live returns the stream descriptor for a live channel. The free channel
// is negotiated directly against the play backend without a token; every
// other known channel gets a deterministic relay pass-through URL, and the
// relay owns format selection for those.
func (n *Negotiator) Live(ctx context.Context, channelKey string) (Descriptor, error) {
	if freeChannel(channelKey) {
		info, err := n.prima.FreePlayInfo(ctx, freeProductID)
		if err != nil {
			return Descriptor{}, n.wrapPlayErr(err)
		}
		return n.describe(info)
	}

	code, ok := relayCodes[channelKey]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownChannel, channelKey)
	}
	return Descriptor{
		URL:          n.relayBase + "/iprima.php?ch=" + url.QueryEscape(code),
		ManifestType: ManifestHLS,
		Headers:      n.headers(),
	}, nil
}

// Archive returns the stream descriptor for an archived programme.
func (n *Negotiator) Archive(ctx context.Context, playID string) (Descriptor, error) {
	token, err := n.auth.ValidToken(ctx)
	if err != nil {
		return Descriptor{}, err
	}
	info, err := n.prima.PlayInfo(ctx, token.Value, playID)
	if err != nil {
		return Descriptor{}, n.wrapPlayErr(err)
	}
	return n.describe(info)
}

// describe selects the preferred stream entry and normalizes its URL:
// an explicit HLS entry wins, otherwise the first entry in provider order.
func (n *Negotiator) describe(info *prima.PlayInfo) (Descriptor, error) {
	if payload := info.ErrorPayload(); payload != "" {
		return Descriptor{}, &ProviderError{Payload: payload}
	}

	var chosen string
	for _, s := range info.StreamInfos {
		if strings.EqualFold(s.Type, "HLS") && s.URL != "" {
			chosen = s.URL
			break
		}
	}
	if chosen == "" {
		for _, s := range info.StreamInfos {
			if s.URL != "" {
				chosen = s.URL
				break
			}
		}
	}
	if chosen == "" {
		return Descriptor{}, ErrStreamUnavailable
	}

	return Descriptor{
		URL:          normalizeURL(chosen),
		ManifestType: ManifestHLS,
		Headers:      n.headers(),
	}, nil
}

func (n *Negotiator) headers() map[string]string {
	return map[string]string{"User-Agent": n.prima.UserAgent()}
}

// wrapPlayErr normalizes a failed play-info fetch: timeouts keep their
// identity, everything else counts as an unavailable stream.
func (n *Negotiator) wrapPlayErr(err error) error {
	if errors.Is(err, prima.ErrTimeout) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStreamUnavailable, err)
}

// normalizeURL strips the low-quality marker so the player receives the
// full-quality manifest reference.
func normalizeURL(u string) string {
	return strings.ReplaceAll(u, lqMarker, "")
}
