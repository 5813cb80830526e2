package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/pstastny/prima2g/internal/auth"
	"github.com/pstastny/prima2g/internal/epg"
	"github.com/pstastny/prima2g/internal/prima"
	"github.com/pstastny/prima2g/internal/stream"
)

// Kind is the stable machine-readable failure classification of a
// resolution attempt. Every transport-level failure is normalized into one
// of these at the component boundaries; callers never see raw transport
// errors.
type Kind string

const (
	KindMissingCredentials   Kind = "missing_credentials"
	KindLoginFailed          Kind = "login_failed"
	KindDirectoryUnavailable Kind = "channel_directory_unavailable"
	KindChannelNotFound      Kind = "channel_not_found"
	KindProgramNotFound      Kind = "program_not_found"
	KindProgramNotPlayable   Kind = "program_not_playable"
	KindStreamUnavailable    Kind = "stream_unavailable"
	KindProviderError        Kind = "provider_error"
	KindNetworkTimeout       Kind = "network_timeout"
)

// Error is the terminal failure of one resolution attempt. Message is the
// short user-facing text (Czech, matching the provider's audience); the
// wrapped error keeps the diagnostic detail for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolver: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("resolver: %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify normalizes a pipeline failure into an *Error. channelKey is used
// only to build user messages.
func classify(err error, channelKey string) *Error {
	var perr *stream.ProviderError
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return &Error{
			Kind:    KindMissingCredentials,
			Message: "Prima+ vyžaduje přihlášení. Nastavte email a heslo účtu.",
			Err:     err,
		}
	case errors.Is(err, auth.ErrLoginFailed):
		return &Error{
			Kind:    KindLoginFailed,
			Message: "Přihlášení k Prima+ se nezdařilo. Zkontrolujte email a heslo.",
			Err:     err,
		}
	case errors.Is(err, prima.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &Error{
			Kind:    KindNetworkTimeout,
			Message: "Vypršel časový limit požadavku na Prima+.",
			Err:     err,
		}
	case errors.Is(err, epg.ErrChannelNotFound), errors.Is(err, stream.ErrUnknownChannel):
		return &Error{
			Kind:    KindChannelNotFound,
			Message: fmt.Sprintf("Kanál nenalezen: %s", channelKey),
			Err:     err,
		}
	case errors.Is(err, epg.ErrDirectoryUnavailable):
		return &Error{
			Kind:    KindDirectoryUnavailable,
			Message: "Nelze získat seznam kanálů Prima.",
			Err:     err,
		}
	case errors.Is(err, epg.ErrProgramNotPlayable):
		return &Error{
			Kind:    KindProgramNotPlayable,
			Message: "Program není dostupný pro přehrání ze záznamu.",
			Err:     err,
		}
	case errors.Is(err, epg.ErrProgramNotFound):
		return &Error{
			Kind:    KindProgramNotFound,
			Message: "Program nebyl nalezen v archivu Prima+.",
			Err:     err,
		}
	case errors.As(err, &perr):
		return &Error{
			Kind:    KindProviderError,
			Message: fmt.Sprintf("Prima+ chyba: %s", perr.Payload),
			Err:     err,
		}
	case errors.Is(err, stream.ErrStreamUnavailable):
		return &Error{
			Kind:    KindStreamUnavailable,
			Message: "Stream nenalezen.",
			Err:     err,
		}
	default:
		return &Error{
			Kind:    KindProviderError,
			Message: "Chyba při získávání streamu.",
			Err:     err,
		}
	}
}
