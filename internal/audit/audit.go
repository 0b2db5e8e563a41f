// Package audit persists every generated SQL statement before it runs. A
// statement that cannot be audited is never executed.
package audit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sink records a generated statement keyed by the destination table.
type Sink interface {
	// Record persists stmt and returns the location it was written to.
	Record(destination, stmt string) (string, error)
}

// FileSink writes one timestamped .sql file per recorded statement under a
// base directory.
type FileSink struct {
	dir    string
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewFileSink creates the base directory if needed.
func NewFileSink(dir string, logger *slog.Logger) (*FileSink, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	return &FileSink{dir: dir, logger: logger, now: time.Now}, nil
}

func (s *FileSink) Record(destination, stmt string) (string, error) {
	name := fmt.Sprintf("%s_%s.sql", sanitize(destination), s.now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(stmt+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("writing audit file: %w", err)
	}
	s.logger.Info("recorded generated statement", "destination", destination, "path", path)
	return path, nil
}

// sanitize maps a qualified table name onto a safe file name.
func sanitize(destination string) string {
	replace := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}
	return strings.Map(replace, destination)
}
