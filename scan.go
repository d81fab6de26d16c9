package defscan

import (
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/spf13/afero"
)

// Scanner parses a mod's defs files and aggregates definition counts.
// A single bad file never aborts a scan: malformed XML is logged at debug
// level and skipped, and documents whose root is not a Defs container are
// skipped without counting as scanned.
type Scanner struct {
	fs     afero.Fs
	logger *slog.Logger

	parses atomic.Uint64
}

// NewScanner creates a Scanner. A nil fs binds the OS filesystem; a nil
// logger gets a default text handler on stdout.
func NewScanner(logger *slog.Logger, fs afero.Fs) *Scanner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Scanner{
		fs:     fs,
		logger: ensureLogger(logger),
	}
}

// ensureLogger creates a default logger if none is provided
func ensureLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return logger
}

// ParseCount reports how many file parses this scanner has attempted.
// Callers use it to confirm that cached queries do no parsing work.
func (s *Scanner) ParseCount() uint64 {
	return s.parses.Load()
}

// Scan aggregates a DefsSummary over every defs file of the mod at modRoot.
// TotalDefs always equals the sum of TypeCounts, and FilesScanned counts
// only files that parsed cleanly as Defs containers.
func (s *Scanner) Scan(modRoot string) DefsSummary {
	counts := make(map[string]int)
	total := 0
	scanned := 0

	for _, path := range DefsFiles(s.fs, modRoot) {
		fileCounts, ok := s.scanFile(path)
		if !ok {
			continue
		}
		scanned++
		for tag, n := range fileCounts {
			counts[tag] += n
			total += n
		}
	}

	return DefsSummary{
		TotalDefs:    total,
		TypeCounts:   counts,
		FilesScanned: scanned,
	}
}

// scanFile parses one XML file and tallies the immediate children of its
// Defs root by normalized tag name. The whole document must parse; a file
// truncated after a valid root still does not count as scanned.
func (s *Scanner) scanFile(path string) (map[string]int, bool) {
	s.parses.Add(1)

	f, err := s.fs.Open(path)
	if err != nil {
		s.logger.Debug("defs scan skipped unreadable file", "path", path, "error", err)
		return nil, false
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	var (
		counts  map[string]int
		depth   int
		sawRoot bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			s.logger.Debug("defs scan skipped file due to parse error", "path", path, "error", err)
			return nil, false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				sawRoot = true
				if strings.ToLower(StripNamespace(t.Name.Local)) != "defs" {
					// not a definitions container
					return nil, false
				}
				counts = make(map[string]int)
			case 2:
				// degenerate empty tags are ignored
				if tag := StripNamespace(t.Name.Local); tag != "" {
					counts[tag]++
				}
			}
		case xml.EndElement:
			depth--
		}
	}
	if !sawRoot {
		s.logger.Debug("defs scan skipped file with no root element", "path", path)
		return nil, false
	}
	return counts, true
}
