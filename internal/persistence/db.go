// Package persistence provides SQLite-based save slots for game state.
// Snapshots are stored LZ4-compressed with a BLAKE3 digest checked on load.
package persistence

import (
	"bytes"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"

	"github.com/talgya/starholdings/internal/engine"
	"github.com/talgya/starholdings/internal/simerr"
)

// ErrCorrupt is returned when a stored snapshot fails its digest check.
var ErrCorrupt = errors.New("snapshot digest mismatch")

// DB wraps a SQLite connection for save slots.
type DB struct {
	conn *sqlx.DB
}

// Slot describes a stored save without its payload.
type Slot struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Size      int       `db:"size" json:"size"` // Uncompressed bytes
	Digest    string    `db:"digest" json:"digest"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		data BLOB NOT NULL,
		size INTEGER NOT NULL,
		digest TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TIMESTAMP NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		UNIQUE(at, description)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

func compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, lz4.NewReader(bytes.NewReader(src))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save writes data to the named slot, replacing any previous contents.
func (db *DB) Save(name string, data []byte) error {
	packed, err := compress(data)
	if err != nil {
		return fmt.Errorf("compress %s: %w", name, err)
	}
	now := time.Now().UTC()
	_, err = db.conn.Exec(`
		INSERT INTO saves (id, name, data, size, digest, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data, size = excluded.size,
			digest = excluded.digest, updated_at = excluded.updated_at`,
		uuid.NewString(), name, packed, len(data), digest(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	slog.Debug("slot written", "name", name, "size", humanize.Bytes(uint64(len(data))),
		"stored", humanize.Bytes(uint64(len(packed))))
	return nil
}

// Load reads and verifies the named slot.
func (db *DB) Load(name string) ([]byte, error) {
	var row struct {
		Data   []byte `db:"data"`
		Digest string `db:"digest"`
	}
	err := db.conn.Get(&row, "SELECT data, digest FROM saves WHERE name = ?", name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, simerr.Reject("save.load", simerr.ErrNotFound, "no save %q", name)
		}
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	data, err := decompress(row.Data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	if digest(data) != row.Digest {
		return nil, fmt.Errorf("load %s: %w", name, ErrCorrupt)
	}
	return data, nil
}

// List returns every slot, most recently updated first.
func (db *DB) List() ([]Slot, error) {
	var slots []Slot
	err := db.conn.Select(&slots,
		"SELECT id, name, size, digest, created_at, updated_at FROM saves ORDER BY updated_at DESC, name",
	)
	return slots, err
}

// Delete removes the named slot.
func (db *DB) Delete(name string) error {
	res, err := db.conn.Exec("DELETE FROM saves WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return simerr.Reject("save.delete", simerr.ErrNotFound, "no save %q", name)
	}
	return nil
}

// SaveEvents archives events. Events already stored are skipped.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT OR IGNORE INTO events (at, description, category) VALUES (?, ?, ?)",
			e.Time.UTC(), e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N archived events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT at AS time, description, category FROM events ORDER BY at DESC, id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveWorldState performs a full save of the simulation into slot.
func (db *DB) SaveWorldState(sim *engine.Simulation, slot string) error {
	data, err := sim.MarshalSnapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := db.Save(slot, data); err != nil {
		return err
	}
	if err := db.SaveEvents(sim.RecentEvents(0)); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_slot", slot); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	slog.Info("world state saved", "slot", slot, "size", humanize.Bytes(uint64(len(data))))
	return nil
}
