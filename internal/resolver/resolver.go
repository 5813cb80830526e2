// Package resolver orchestrates the catchup pipeline: token, channel
// directory, guide search and stream negotiation. It is the only entry
// point the HTTP surface calls.
package resolver

import (
	"context"
	"time"

	"github.com/pstastny/prima2g/internal/auth"
	"github.com/pstastny/prima2g/internal/epg"
	"github.com/pstastny/prima2g/internal/log"
	"github.com/pstastny/prima2g/internal/metrics"
	"github.com/pstastny/prima2g/internal/stream"
	"github.com/rs/zerolog"
)

// Resolver runs the end-to-end resolution. Each call is synchronous and
// request-scoped; the cached token is the only state shared across calls.
type Resolver struct {
	auth    *auth.Client
	dir     *epg.Directory
	search  *epg.Search
	streams *stream.Negotiator
}

// New wires the pipeline components together.
func New(a *auth.Client, dir *epg.Directory, search *epg.Search, streams *stream.Negotiator) *Resolver {
	return &Resolver{
		auth:    a,
		dir:     dir,
		search:  search,
		streams: streams,
	}
}

// ResolveCatchup resolves a past programme on a channel into a playable
// stream descriptor. It short-circuits on the first failing step and never
// returns partial results.
func (r *Resolver) ResolveCatchup(ctx context.Context, channelKey string, targetUTC time.Time) (stream.Descriptor, error) {
	logger := log.FromContext(ctx).With().
		Str("component", "resolver").
		Str("channel_key", channelKey).
		Time("target_utc", targetUTC).
		Logger()

	if _, err := r.auth.ValidToken(ctx); err != nil {
		return r.fail(logger, "catchup", err, channelKey)
	}

	ch, err := r.dir.Resolve(ctx, channelKey)
	if err != nil {
		return r.fail(logger, "catchup", err, channelKey)
	}

	playID, err := r.search.FindProgramAt(ctx, ch.ProviderID, targetUTC)
	if err != nil {
		return r.fail(logger, "catchup", err, channelKey)
	}

	desc, err := r.streams.Archive(ctx, playID)
	if err != nil {
		return r.fail(logger, "catchup", err, channelKey)
	}

	metrics.RecordResolution("catchup", "success")
	logger.Info().Str("provider_id", ch.ProviderID).Str("play_id", playID).Msg("catchup resolved")
	return desc, nil
}

// ResolveLive resolves a live channel into a playable stream descriptor.
func (r *Resolver) ResolveLive(ctx context.Context, channelKey string) (stream.Descriptor, error) {
	logger := log.FromContext(ctx).With().
		Str("component", "resolver").
		Str("channel_key", channelKey).
		Logger()

	desc, err := r.streams.Live(ctx, channelKey)
	if err != nil {
		return r.fail(logger, "live", err, channelKey)
	}

	metrics.RecordResolution("live", "success")
	logger.Info().Str("url", desc.URL).Msg("live resolved")
	return desc, nil
}

func (r *Resolver) fail(logger zerolog.Logger, operation string, err error, channelKey string) (stream.Descriptor, error) {
	rerr := classify(err, channelKey)
	metrics.RecordResolution(operation, string(rerr.Kind))
	logger.Warn().Err(err).Str("kind", string(rerr.Kind)).Msg("resolution failed")
	return stream.Descriptor{}, rerr
}
