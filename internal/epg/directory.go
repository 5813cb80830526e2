// Package epg resolves caller channel keys against the provider's channel
// directory and locates archived programmes in the multi-day guide.
package epg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pstastny/prima2g/internal/auth"
	"github.com/pstastny/prima2g/internal/log"
	"github.com/pstastny/prima2g/internal/prima"
	"github.com/rs/zerolog"
)

var (
	// ErrChannelNotFound means no directory entry matched the channel key.
	ErrChannelNotFound = errors.New("epg: channel not found")
	// ErrDirectoryUnavailable wraps a failed channel list fetch.
	ErrDirectoryUnavailable = errors.New("epg: channel directory unavailable")
)

// aliases maps caller channel keys to candidate display-title fragments,
// matched case-insensitively against the directory. Keys without an alias
// fall back to the raw key.
var aliases = map[string][]string{
	"prima":        {"prima", "tv prima"},
	"primacool":    {"cool", "prima cool"},
	"primamax":     {"max", "prima max"},
	"primakrimi":   {"krimi", "prima krimi"},
	"primalove":    {"love", "prima love"},
	"primazoom":    {"zoom", "prima zoom"},
	"primastar":    {"star", "prima star"},
	"primashow":    {"show", "prima show"},
	"cnnprimanews": {"cnn", "cnn prima"},
}

// ResolvedChannel is a directory match: the provider's internal channel ID
// for a caller-facing key. It is request-scoped and never persisted.
type ResolvedChannel struct {
	ExternalKey  string
	ProviderID   string
	DisplayTitle string
}

// Directory resolves channel keys against a freshly fetched provider
// channel list.
type Directory struct {
	auth  *auth.Client
	prima *prima.Client
	log   zerolog.Logger
}

// NewDirectory returns a channel directory backed by the given clients.
func NewDirectory(a *auth.Client, c *prima.Client) *Directory {
	return &Directory{auth: a, prima: c, log: log.WithComponent("directory")}
}

// Resolve maps a caller channel key to the provider channel ID. The fetched
// list is scanned in provider order and the first title containing any
// candidate fragment wins; ties resolve by list position, not alphabet.
func (d *Directory) Resolve(ctx context.Context, channelKey string) (ResolvedChannel, error) {
	token, err := d.auth.ValidToken(ctx)
	if err != nil {
		return ResolvedChannel{}, err
	}

	channels, err := d.prima.ChannelList(ctx, token.Value)
	if err != nil {
		if errors.Is(err, prima.ErrTimeout) {
			return ResolvedChannel{}, err
		}
		return ResolvedChannel{}, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}

	fragments, ok := aliases[channelKey]
	if !ok {
		fragments = []string{channelKey}
	}

	for _, ch := range channels {
		title := strings.ToLower(ch.Title)
		for _, fragment := range fragments {
			if strings.Contains(title, strings.ToLower(fragment)) {
				d.log.Debug().
					Str("channel_key", channelKey).
					Str("provider_id", ch.ID).
					Str("title", ch.Title).
					Msg("channel resolved")
				return ResolvedChannel{
					ExternalKey:  channelKey,
					ProviderID:   ch.ID,
					DisplayTitle: ch.Title,
				}, nil
			}
		}
	}

	d.log.Debug().Str("channel_key", channelKey).Int("directory_size", len(channels)).Msg("no channel matched")
	return ResolvedChannel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, channelKey)
}
