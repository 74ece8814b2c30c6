package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/qepting91/reddit-cleaner/internal/domain"
)

// TimeLayout is the timestamp format of audit log lines.
const TimeLayout = "2006-01-02 15:04:05"

const fieldSep = " | "

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r")
)

// AuditLog appends one line per removed item to a text file. The file is
// opened, appended and closed for every record; it is never truncated.
type AuditLog struct {
	FilePath string

	mu sync.Mutex
}

// NewAuditLog creates the parent directory of path if needed.
func NewAuditLog(path string) (*AuditLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit log dir: %w", err)
		}
	}
	return &AuditLog{FilePath: path}, nil
}

// Record appends rec as a single write so lines never interleave.
func (w *AuditLog) Record(_ context.Context, rec domain.RemovalRecord) error {
	line := FormatLine(rec)

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("append audit log: %w", err)
	}
	return f.Close()
}

// FormatLine renders rec as `YYYY-MM-DD HH:MM:SS | score | body\n` in UTC.
func FormatLine(rec domain.RemovalRecord) string {
	var b strings.Builder
	b.WriteString(rec.Timestamp.UTC().Format(TimeLayout))
	b.WriteString(fieldSep)
	b.WriteString(strconv.Itoa(rec.Score))
	b.WriteString(fieldSep)
	b.WriteString(escaper.Replace(rec.Body))
	b.WriteByte('\n')
	return b.String()
}

// ParseLine is the inverse of FormatLine. Only timestamp, score and body are restored.
func ParseLine(line string) (domain.RemovalRecord, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, fieldSep, 3)
	if len(parts) != 3 {
		return domain.RemovalRecord{}, fmt.Errorf("malformed audit line %q", line)
	}
	ts, err := time.ParseInLocation(TimeLayout, parts[0], time.UTC)
	if err != nil {
		return domain.RemovalRecord{}, fmt.Errorf("audit timestamp: %w", err)
	}
	score, err := strconv.Atoi(parts[1])
	if err != nil {
		return domain.RemovalRecord{}, fmt.Errorf("audit score: %w", err)
	}
	return domain.RemovalRecord{Timestamp: ts, Score: score, Body: unescaper.Replace(parts[2])}, nil
}

// ReadAuditLog loads every well-formed record from path, skipping bad lines.
func ReadAuditLog(path string) ([]domain.RemovalRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recs []domain.RemovalRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if rec, err := ParseLine(scanner.Text()); err == nil {
			recs = append(recs, rec)
		}
	}
	return recs, scanner.Err()
}

// Multi fans a record out to several recorders. Every recorder runs even
// when an earlier one fails.
type Multi []domain.Recorder

func (m Multi) Record(ctx context.Context, rec domain.RemovalRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
