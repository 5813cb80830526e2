package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pstastny/prima2g/internal/log"
	"github.com/rs/zerolog"
)

// Token is a provider access token with a locally assigned expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be used at the given instant.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && t.ExpiresAt.After(now)
}

// Store persists a single cached token. Load reports ok=false for a missing
// or unreadable slot; Save must never fail the caller.
type Store interface {
	Load() (Token, bool)
	Save(Token)
}

const tokenFileName = "prima_token.json"

// tokenRecord is the on-disk format: {"token": ..., "valid_to": epoch}.
// The field names are shared with other consumers of the token file, so
// they must not change.
type tokenRecord struct {
	Token   string `json:"token"`
	ValidTo int64  `json:"valid_to"`
}

// FileStore keeps the token in a single JSON file inside the data
// directory. Writes are atomic (temp file + rename) so a crashed write can
// never leave a truncated slot behind; concurrent writers race benignly,
// last writer wins.
type FileStore struct {
	path string
	log  zerolog.Logger
}

// NewFileStore returns a store backed by <dir>/prima_token.json.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		path: filepath.Join(dir, tokenFileName),
		log:  log.WithComponent("tokenstore"),
	}
}

// Load reads the cached token. Any I/O or decode error degrades to a cache
// miss; the caller will simply re-authenticate.
func (s *FileStore) Load() (Token, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Debug().Err(err).Str("path", s.path).Msg("token file unreadable")
		}
		return Token{}, false
	}
	var rec tokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Debug().Err(err).Str("path", s.path).Msg("token file malformed")
		return Token{}, false
	}
	if rec.Token == "" {
		return Token{}, false
	}
	return Token{Value: rec.Token, ExpiresAt: time.Unix(rec.ValidTo, 0)}, true
}

// Save persists the token. Failures are logged and dropped: a missed save
// only costs an extra login later, never the current request.
func (s *FileStore) Save(t Token) {
	data, err := json.Marshal(tokenRecord{Token: t.Value, ValidTo: t.ExpiresAt.Unix()})
	if err != nil {
		s.log.Warn().Err(err).Msg("token encode failed")
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("token dir create failed")
		return
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("token save failed")
		return
	}
	s.log.Debug().Time("valid_to", t.ExpiresAt).Msg("token saved")
}
