package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a Store backed by a single local SQLite file. It keeps a running
// byte total so quota checks never require a table scan.
type SQLite struct {
	db    *sql.DB
	quota int64

	mu   sync.Mutex
	used int64
}

// OpenSQLite opens (creating if needed) the store file at path. quotaBytes
// is the capacity ceiling; zero or negative means unlimited.
func OpenSQLite(path string, quotaBytes int64) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, err
	}

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store init failed: %w", err)
		}
	}

	var used sql.NullInt64
	row := db.QueryRow(`SELECT COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv`)
	if err := row.Scan(&used); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db, quota: quotaBytes, used: used.Int64}, nil
}

func (s *SQLite) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLite) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var old sql.NullInt64
	err := s.db.QueryRow(`SELECT LENGTH(key) + LENGTH(value) FROM kv WHERE key=?`, key).Scan(&old)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	next := s.used - old.Int64 + size(key, value)
	if s.quota > 0 && next > s.quota {
		return fmt.Errorf("writing %q (%d bytes over %d): %w", key, next-s.quota, s.quota, ErrQuotaExceeded)
	}

	_, err = s.db.Exec(`
INSERT INTO kv(key, value, updated_at) VALUES(?,?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`, key, value, time.Now().UTC())
	if err != nil {
		return err
	}
	s.used = next
	return nil
}

func (s *SQLite) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var old sql.NullInt64
	err := s.db.QueryRow(`SELECT LENGTH(key) + LENGTH(value) FROM kv WHERE key=?`, key).Scan(&old)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(`DELETE FROM kv WHERE key=?`, key); err != nil {
		return err
	}
	s.used -= old.Int64
	return nil
}

func (s *SQLite) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT key FROM kv WHERE key LIKE ? ESCAPE '\'`,
		likePrefix(prefix)+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// likePrefix escapes LIKE metacharacters so a prefix is matched literally.
func likePrefix(prefix string) string {
	out := make([]byte, 0, len(prefix))
	for i := 0; i < len(prefix); i++ {
		switch prefix[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, prefix[i])
	}
	return string(out)
}
