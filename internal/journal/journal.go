// Package journal provides the durable relay.ResponseCache: a SQLite
// database recording each handler result until its Done envelope reaches
// the mailbox.
//
// The in-memory cache already makes handler execution at-most-once across
// write conflicts within a process; the journal extends the guarantee
// across restarts. A relay killed between invoking a handler and winning
// the conditional write resumes with the cached result instead of running
// the handler again.
package journal

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gitpigeon/pigeon/pkg/relay"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
const currentSchemaVersion = 0

// Journal is a SQLite-backed relay.ResponseCache.
type Journal struct {
	db *sql.DB
}

var _ relay.ResponseCache = (*Journal)(nil)

// Open creates or opens the journal database at the given path.
// Applies required pragmas and the schema automatically; safe to call on
// an existing database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection
	// avoids SQLITE_BUSY from the relay's own access pattern.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Get implements relay.ResponseCache.
func (j *Journal) Get(id string) (relay.CachedResponse, bool, error) {
	row := j.db.QueryRow(`
		SELECT id, kind, text, file_name, data, uploaded, created_at
		FROM responses
		WHERE id = ?
	`, id)

	var r relay.CachedResponse
	var kind int
	var uploaded int
	err := row.Scan(&r.ID, &kind, &r.Text, &r.FileName, &r.Data, &uploaded, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return relay.CachedResponse{}, false, nil
	}
	if err != nil {
		return relay.CachedResponse{}, false, fmt.Errorf("read response %q: %w", id, err)
	}
	r.Kind = relay.ResponseKind(kind)
	r.Uploaded = uploaded != 0
	return r, true, nil
}

// Put implements relay.ResponseCache. Replaces any existing row for the
// same envelope id, so upload-state updates are plain Puts.
func (j *Journal) Put(r relay.CachedResponse) error {
	uploaded := 0
	if r.Uploaded {
		uploaded = 1
	}
	_, err := j.db.Exec(`
		INSERT INTO responses (id, kind, text, file_name, data, uploaded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			text = excluded.text,
			file_name = excluded.file_name,
			data = excluded.data,
			uploaded = excluded.uploaded,
			created_at = excluded.created_at
	`, r.ID, int(r.Kind), r.Text, r.FileName, r.Data, uploaded, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("write response %q: %w", r.ID, err)
	}
	return nil
}

// Delete implements relay.ResponseCache. Missing ids are a no-op.
func (j *Journal) Delete(id string) error {
	if _, err := j.db.Exec(`DELETE FROM responses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete response %q: %w", id, err)
	}
	return nil
}

// PurgeBefore implements relay.ResponseCache: drops rows whose envelope
// timestamp predates cutoff (milliseconds since epoch).
func (j *Journal) PurgeBefore(cutoff int64) error {
	if _, err := j.db.Exec(`DELETE FROM responses WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("purge responses before %d: %w", cutoff, err)
	}
	return nil
}

// Len returns the number of journaled responses. Used for testing.
func (j *Journal) Len() (int, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM responses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return n, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and stamps the schema
// version. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
