package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/qepting91/reddit-cleaner/internal/domain"
)

// Ledger indexes removals in SQLite so they can be queried by subreddit,
// policy or day. Each item is stored once; recording it again is a no-op.
type Ledger struct {
	db         *sql.DB
	insertStmt *sql.Stmt
}

// OpenLedger opens (or creates) the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path cannot be empty")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports single writer

	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	l.insertStmt, err = db.Prepare(`
		INSERT OR IGNORE INTO removals (item_id, kind, subreddit, policy, session_id, score, body, removed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare ledger insert: %w", err)
	}
	return l, nil
}

func (l *Ledger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS removals (
		item_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		subreddit TEXT NOT NULL,
		policy TEXT NOT NULL,
		session_id TEXT NOT NULL,
		score INTEGER NOT NULL,
		body TEXT NOT NULL,
		removed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_removals_removed_at ON removals(removed_at);
	CREATE INDEX IF NOT EXISTS idx_removals_subreddit ON removals(subreddit);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record stores rec unless its item is already present.
func (l *Ledger) Record(ctx context.Context, rec domain.RemovalRecord) error {
	_, err := l.insertStmt.ExecContext(ctx,
		rec.ItemID, string(rec.Kind), rec.Subreddit, rec.Policy, rec.SessionID,
		rec.Score, rec.Body, rec.Timestamp.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("ledger insert %s: %w", rec.ItemID, err)
	}
	return nil
}

// List returns removals recorded at or after since, oldest first.
func (l *Ledger) List(ctx context.Context, since time.Time) ([]domain.RemovalRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT item_id, kind, subreddit, policy, session_id, score, body, removed_at
		FROM removals WHERE removed_at >= ? ORDER BY removed_at, item_id`, since.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("ledger query: %w", err)
	}
	defer rows.Close()

	var recs []domain.RemovalRecord
	for rows.Next() {
		var (
			rec  domain.RemovalRecord
			kind string
			ts   int64
		)
		if err := rows.Scan(&rec.ItemID, &kind, &rec.Subreddit, &rec.Policy, &rec.SessionID, &rec.Score, &rec.Body, &ts); err != nil {
			return nil, fmt.Errorf("ledger scan: %w", err)
		}
		rec.Kind = domain.Kind(kind)
		rec.Timestamp = time.Unix(ts, 0).UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count returns the number of recorded removals.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM removals`).Scan(&n)
	return n, err
}

// Close releases the database.
func (l *Ledger) Close() error {
	if l.insertStmt != nil {
		l.insertStmt.Close()
	}
	return l.db.Close()
}
