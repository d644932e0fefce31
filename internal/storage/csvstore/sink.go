// Package csvstore persists accepted business records to an append-only CSV
// file, the crawl's primary output.
package csvstore

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
)

// Config locates the output file.
type Config struct {
	// Path is the CSV output file, e.g. roofing_businesses.csv.
	Path string `mapstructure:"path" yaml:"path"`
}

// Sink appends accepted records to the output CSV, writing the header
// exactly once (when the file is missing or empty). The file is opened on
// first append so a reset can archive the previous output before any write.
// Not safe for concurrent use; the crawl loop is its single writer.
type Sink struct {
	path   string
	logger *zap.Logger

	file     *os.File
	writer   *csv.Writer
	archived string
}

// New creates a CSV sink for the configured path. The file itself is not
// touched until the first append.
func New(cfg Config, logger *zap.Logger) (*Sink, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{path: cfg.Path, logger: logger.Named("csv")}, nil
}

// Path returns the output file location.
func (s *Sink) Path() string {
	return s.path
}

// Touch creates the output file with its header if it does not exist yet.
func (s *Sink) Touch() error {
	return s.ensureOpen()
}

// Append writes one record and flushes it through to the OS.
func (s *Sink) Append(_ context.Context, record crawler.BusinessRecord) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.writer.Write(record.CSVRow()); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	return nil
}

// SeedRegistry loads business names from the existing output file into the
// global dedup registry and returns how many distinct keys were added. A
// missing or empty file seeds nothing.
func (s *Sink) SeedRegistry(registry *crawler.Registry) (int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open output file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(skipBOM(f))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("read output header: %w", err)
	}
	nameIdx := -1
	for i, col := range header {
		if strings.TrimSpace(col) == "business_name" {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return 0, fmt.Errorf("output file %s has no business_name column", s.path)
	}

	seeded := 0
	for {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				s.logger.Warn("skipping malformed output row",
					zap.Int("line", parseErr.Line),
					zap.Error(err),
				)
				continue
			}
			return seeded, fmt.Errorf("read output row: %w", err)
		}
		if nameIdx >= len(row) {
			continue
		}
		if key := crawler.DedupKey(row[nameIdx]); key != "" && registry.Add(key) {
			seeded++
		}
	}
	return seeded, nil
}

// Archive closes the sink and renames the current output aside with a date
// suffix, e.g. roofing_businesses.2025-06-01.csv. A missing file archives
// nothing and returns an empty path.
func (s *Sink) Archive(_ context.Context, at time.Time) (string, error) {
	if err := s.Close(); err != nil {
		return "", err
	}
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat output file: %w", err)
	}
	dest := s.archiveName(at.Format("2006-01-02"))
	if _, err := os.Stat(dest); err == nil {
		// A previous archive from the same day exists; keep both.
		dest = s.archiveName(at.Format("2006-01-02_150405"))
	}
	if err := os.Rename(s.path, dest); err != nil {
		return "", fmt.Errorf("archive output file: %w", err)
	}
	s.archived = dest
	return dest, nil
}

// LastArchive returns where Archive moved the previous output, empty when
// nothing was archived this run.
func (s *Sink) LastArchive() string {
	return s.archived
}

// Close flushes buffered rows and syncs the file. Appending after Close
// reopens the file.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	flushErr := s.writer.Error()
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	s.file = nil
	s.writer = nil
	if flushErr != nil {
		return fmt.Errorf("flush output: %w", flushErr)
	}
	if syncErr != nil {
		return fmt.Errorf("sync output: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close output: %w", closeErr)
	}
	return nil
}

func (s *Sink) ensureOpen() error {
	if s.file != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		if closeErr := f.Close(); closeErr != nil {
			s.logger.Warn("failed to close output file after stat failure", zap.Error(closeErr))
		}
		return fmt.Errorf("stat output file: %w", err)
	}
	s.file = f
	s.writer = csv.NewWriter(f)
	if info.Size() == 0 {
		if err := s.writer.Write(crawler.CSVColumns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		s.writer.Flush()
		if err := s.writer.Error(); err != nil {
			return fmt.Errorf("flush header: %w", err)
		}
		s.logger.Info("created output file", zap.String("path", s.path))
	}
	return nil
}

func (s *Sink) archiveName(stamp string) string {
	ext := filepath.Ext(s.path)
	stem := strings.TrimSuffix(s.path, ext)
	return fmt.Sprintf("%s.%s%s", stem, stamp, ext)
}

// skipBOM drops a UTF-8 byte order mark left behind by spreadsheet tools.
func skipBOM(f *os.File) *bufio.Reader {
	br := bufio.NewReader(f)
	head, _ := br.Peek(3)
	if len(head) == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}
