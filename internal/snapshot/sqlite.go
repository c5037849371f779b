package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps every saved generation of a snapshot; Load returns the
// newest one.
type SQLiteStore struct {
	db *sql.DB
}

// Generation is one stored snapshot row, without its data.
type Generation struct {
	ID                int64
	RunID             string
	HashFunctionCount int
	BitCount          int
	Truthiness        float64
	Size              int64
	CreatedAt         time.Time
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  run_id TEXT,
  k INTEGER,
  bits INTEGER,
  truthiness REAL,
  data BLOB NOT NULL,
  created_at TEXT
);`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS snapshots_name ON snapshots(name, id);`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Save(ctx context.Context, name string, blob []byte, meta Meta) error {
	ts := meta.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO snapshots(name, run_id, k, bits, truthiness, data, created_at)
VALUES(?,?,?,?,?,?,?);`,
		name, meta.RunID, meta.HashFunctionCount, meta.BitCount, meta.Truthiness, blob, ts.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, name string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE name=? ORDER BY id DESC LIMIT 1`, name)
	var data []byte
	switch err := row.Scan(&data); err {
	case nil:
		return data, nil
	case sql.ErrNoRows:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	default:
		return nil, err
	}
}

// Generations lists stored snapshots for name, newest first.
func (s *SQLiteStore) Generations(ctx context.Context, name string) ([]Generation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, k, bits, truthiness, length(data), created_at
FROM snapshots WHERE name=? ORDER BY id DESC`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gens []Generation
	for rows.Next() {
		var g Generation
		var runID sql.NullString
		var created string
		if err := rows.Scan(&g.ID, &runID, &g.HashFunctionCount, &g.BitCount, &g.Truthiness, &g.Size, &created); err != nil {
			return nil, err
		}
		g.RunID = runID.String
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			g.CreatedAt = t
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// Prune deletes all but the newest keep generations of name.
func (s *SQLiteStore) Prune(ctx context.Context, name string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name=? AND id NOT IN (
  SELECT id FROM snapshots WHERE name=? ORDER BY id DESC LIMIT ?
)`, name, name, keep)
	if err != nil {
		return 0, err
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}
