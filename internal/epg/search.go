package epg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pstastny/prima2g/internal/auth"
	"github.com/pstastny/prima2g/internal/log"
	"github.com/pstastny/prima2g/internal/metrics"
	"github.com/pstastny/prima2g/internal/prima"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	// ErrProgramNotFound means no guide entry covered the target instant
	// within the scanned window.
	ErrProgramNotFound = errors.New("epg: program not found in archive")
	// ErrProgramNotPlayable means the covering programme exists but is not
	// offered for replay.
	ErrProgramNotPlayable = errors.New("epg: program not available for replay")
)

// Guide times arrive as local civil timestamps; only the first 19
// characters (YYYY-MM-DDTHH:MM:SS) are significant.
const guideTimeLayout = "2006-01-02T15:04:05"

// SearchOptions tunes the backward guide scan.
type SearchOptions struct {
	// Timezone is the provider's civil time zone name.
	Timezone string
	// Days is how many days back to scan beyond today (7 means offsets
	// 0..-7, eight guide days total).
	Days int
	// Pace is the minimum spacing between per-day guide fetches.
	Pace time.Duration
}

// Search locates the programme airing at a given instant by scanning the
// per-day guide backward from the target's local date.
type Search struct {
	auth    *auth.Client
	prima   *prima.Client
	loc     *time.Location
	days    int
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewSearch returns a guide search. It fails only when the timezone is
// unknown to the host's zone database.
func NewSearch(a *auth.Client, c *prima.Client, opts SearchOptions) (*Search, error) {
	if opts.Timezone == "" {
		opts.Timezone = "Europe/Prague"
	}
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return nil, fmt.Errorf("epg: load timezone %q: %w", opts.Timezone, err)
	}
	if opts.Days < 0 {
		opts.Days = 0
	}
	if opts.Pace <= 0 {
		opts.Pace = 200 * time.Millisecond
	}
	return &Search{
		auth:    a,
		prima:   c,
		loc:     loc,
		days:    opts.Days,
		limiter: rate.NewLimiter(rate.Every(opts.Pace), 1),
		log:     log.WithComponent("epgsearch"),
	}, nil
}

// FindProgramAt returns the play identifier of the programme airing on the
// given channel at targetUTC.
//
// The target is converted into the provider's zone with full DST rules for
// the date in question, then matched against guide intervals inclusively at
// both ends. Days are scanned backward from the local target date; a failed
// or empty day is skipped, but a covering-yet-unplayable programme stops
// the scan immediately.
func (s *Search) FindProgramAt(ctx context.Context, providerID string, targetUTC time.Time) (string, error) {
	token, err := s.auth.ValidToken(ctx)
	if err != nil {
		return "", err
	}

	local := targetUTC.In(s.loc)
	for offset := 0; offset <= s.days; offset++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
		date := local.AddDate(0, 0, -offset).Format("2006-01-02")

		programs, err := s.prima.ProgramList(ctx, token.Value, providerID, date)
		if err != nil {
			metrics.RecordEPGDayFetch("error")
			s.log.Debug().Err(err).Str("date", date).Str("provider_id", providerID).Msg("guide day fetch failed")
			continue
		}
		if len(programs) == 0 {
			metrics.RecordEPGDayFetch("empty")
			continue
		}
		metrics.RecordEPGDayFetch("success")

		for _, p := range programs {
			start, err := parseGuideTime(p.Start(), s.loc)
			if err != nil {
				continue
			}
			end, err := parseGuideTime(p.End(), s.loc)
			if err != nil {
				continue
			}
			if local.Before(start) || local.After(end) {
				continue
			}
			if p.IsPlayable && p.PlayRef() != "" {
				s.log.Debug().
					Str("title", p.Title).
					Str("play_id", p.PlayRef()).
					Str("date", date).
					Msg("covering programme found")
				return p.PlayRef(), nil
			}
			// The airing is identified but not replayable; earlier guide
			// days cannot contain this airing, so stop here.
			s.log.Debug().Str("title", p.Title).Str("date", date).Msg("covering programme not playable")
			return "", fmt.Errorf("%w: %s", ErrProgramNotPlayable, p.Title)
		}
	}

	return "", ErrProgramNotFound
}

// parseGuideTime interprets a guide timestamp as civil time in loc. Trailing
// fractions or offsets past the first 19 characters are ignored.
func parseGuideTime(s string, loc *time.Location) (time.Time, error) {
	if len(s) < len(guideTimeLayout) {
		return time.Time{}, fmt.Errorf("epg: timestamp %q too short", s)
	}
	return time.ParseInLocation(guideTimeLayout, s[:len(guideTimeLayout)], loc)
}
