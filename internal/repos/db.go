package repos

import (
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite is single-writer, and a :memory: DSN is per-connection;
	// one pooled connection serves both cases.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Sets (one row per provider set number, immutable once written)
CREATE TABLE IF NOT EXISTS sets(
  id TEXT PRIMARY KEY,
  set_no TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  year INTEGER NOT NULL DEFAULT 0,
  theme TEXT NOT NULL DEFAULT '',
  num_parts INTEGER NOT NULL DEFAULT 0,
  image_url TEXT NOT NULL DEFAULT '',
  weight_g REAL NOT NULL DEFAULT 0,
  assembled INTEGER NOT NULL DEFAULT 0,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sets_created_at ON sets(created_at);

-- Inventory (one row per part/color key, quantities merged on re-insertion)
CREATE TABLE IF NOT EXISTS inventory(
  id TEXT PRIMARY KEY,
  part_no TEXT NOT NULL,
  color_id INTEGER NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  qty INTEGER NOT NULL DEFAULT 0 CHECK (qty >= 0),
  state TEXT NOT NULL CHECK (state IN ('MISSING','OWNED_FREE','OWNED_LOCKED')),
  updated_at TEXT,
  UNIQUE(part_no, color_id)
);
CREATE INDEX IF NOT EXISTS idx_inventory_state ON inventory(state);
`
	_, err := db.Exec(schema)
	return err
}

// WithTx runs fn inside one transaction, rolling back on error or panic.
// AddSet uses it so the set row and its inventory upserts land atomically.
func WithTx(db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
