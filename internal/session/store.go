package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tphakala/avatar-gateway/internal/errors"
	"github.com/tphakala/avatar-gateway/internal/logging"
	"github.com/tphakala/avatar-gateway/internal/observability/metrics"
)

// idLength is the hex encoded length of a 128-bit session identifier.
const idLength = 32

// Store persists one JSON file per session identifier in a single directory.
type Store struct {
	dir     string
	log     *slog.Logger
	metrics *metrics.SessionMetrics
}

// SetMetrics attaches session metrics to the store. Safe to leave unset;
// all recording is nil-checked.
func (s *Store) SetMetrics(m *metrics.SessionMetrics) {
	s.metrics = m
}

// NewStore creates a session store rooted at dir, creating the directory if
// needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.NewStd("session directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("session").
			Category(errors.CategoryFileIO).
			Context("operation", "create-session-dir").
			Build()
	}
	return &Store{
		dir: dir,
		log: logging.ForService("session"),
	}, nil
}

// NewID mints a cryptographically random session identifier: 128 bits,
// hex encoded.
func NewID() (string, error) {
	buf := make([]byte, idLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.New(err).
			Component("session").
			Category(errors.CategorySession).
			Context("operation", "mint-session-id").
			Build()
	}
	return hex.EncodeToString(buf), nil
}

// ValidID reports whether id has the shape of a store minted identifier.
// Anything else is treated as no session; this also keeps attacker supplied
// cookie values out of file paths.
func ValidID(id string) bool {
	if len(id) != idLength {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

// Load reads the record for id. A missing file yields an empty record; a
// corrupt file is logged and degrades to an empty record, never an error.
func (s *Store) Load(id string) *Data {
	data := &Data{}

	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error("Failed to read session file", "session_id", id, "error", err)
		}
		s.recordLoad(metrics.LabelMiss)
		return data
	}

	if err := json.Unmarshal(raw, data); err != nil {
		s.log.Error("Error decoding session file, starting with empty session", "session_id", id, "error", err)
		s.recordLoad(metrics.LabelCorrupt)
		return &Data{}
	}

	s.recordLoad(metrics.LabelHit)
	return data
}

func (s *Store) recordLoad(status string) {
	if s.metrics != nil {
		s.metrics.RecordSessionLoad(status)
	}
}

func (s *Store) recordSave(status string) {
	if s.metrics != nil {
		s.metrics.RecordSessionSave(status)
	}
}

// Save writes the record for id. The write is atomic (temp file plus rename)
// so a concurrent reader never observes a partial record. Failures are
// returned to the caller; there is no offline buffering.
func (s *Store) Save(id string, data *Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		s.recordSave(metrics.LabelError)
		return errors.New(err).
			Component("session").
			Category(errors.CategorySession).
			Context("operation", "marshal-session").
			Build()
	}

	finalPath := s.path(id)
	tempFile := finalPath + ".tmp"
	if err := os.WriteFile(tempFile, raw, 0o600); err != nil {
		s.recordSave(metrics.LabelError)
		return errors.New(err).
			Component("session").
			Category(errors.CategoryFileIO).
			Context("operation", "write-session-temp").
			Build()
	}

	if err := os.Rename(tempFile, finalPath); err != nil {
		_ = os.Remove(tempFile)
		s.recordSave(metrics.LabelError)
		return errors.New(err).
			Component("session").
			Category(errors.CategoryFileIO).
			Context("operation", "rename-session-file").
			Build()
	}

	s.recordSave(metrics.LabelSuccess)
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
