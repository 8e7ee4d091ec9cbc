package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB — обёртка над соединением SQLite.
type DB struct {
	*sql.DB
}

// New открывает базу SQLite. dataSourceName — путь к файлу или ":memory:".
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Один писатель; для ":memory:" ещё и одна общая база на все запросы.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS attributes (
    entity_name TEXT NOT NULL,
    name        TEXT NOT NULL,
    type        TEXT NOT NULL CHECK(type IN ('lookup', 'money', 'decimal', 'string')),
    writable    INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (entity_name, name)
);

CREATE TABLE IF NOT EXISTS records (
    id          TEXT PRIMARY KEY,
    entity_name TEXT NOT NULL,
    state_code  INTEGER NOT NULL DEFAULT 0,
    fields      TEXT NOT NULL DEFAULT '{}' CHECK(json_valid(fields)),
    created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    modified_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    modified_by TEXT
);
CREATE INDEX IF NOT EXISTS idx_records_entity_state ON records(entity_name, state_code);
`

// Migrate создаёт таблицы attributes и records, если их ещё нет.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}
