package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// The partial unique indexes on reservations and rentals back the
// single-claim rule: at most one OPEN reservation and at most one
// ACTIVE/OVERDUE rental may reference an item.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS categories (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    active      INTEGER NOT NULL DEFAULT 1,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
    id            INTEGER PRIMARY KEY,
    name          TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    serial_number TEXT NOT NULL UNIQUE,
    category_id   INTEGER REFERENCES categories(id),
    metadata      TEXT NOT NULL DEFAULT '{}',
    image         BLOB,
    image_mime    TEXT NOT NULL DEFAULT '',
    state         TEXT NOT NULL DEFAULT 'AVAILABLE' CHECK (state IN ('AVAILABLE', 'HELD', 'IN_CUSTODY', 'WITHDRAWN')),
    active        INTEGER NOT NULL DEFAULT 1,
    version       INTEGER NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reservations (
    id            INTEGER PRIMARY KEY,
    item_id       INTEGER NOT NULL REFERENCES items(id),
    holder_id     INTEGER NOT NULL REFERENCES users(id),
    state         TEXT NOT NULL DEFAULT 'OPEN' CHECK (state IN ('OPEN', 'CONVERTED', 'EXPIRED', 'CANCELLED')),
    note          TEXT NOT NULL DEFAULT '',
    cancel_reason TEXT NOT NULL DEFAULT '',
    rental_id     INTEGER REFERENCES rentals(id),
    created_at    DATETIME NOT NULL,
    expires_at    DATETIME NOT NULL,
    closed_at     DATETIME,
    version       INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_item_open
    ON reservations(item_id) WHERE state = 'OPEN';

CREATE TABLE IF NOT EXISTS rentals (
    id             INTEGER PRIMARY KEY,
    item_id        INTEGER NOT NULL REFERENCES items(id),
    holder_id      INTEGER NOT NULL REFERENCES users(id),
    reservation_id INTEGER REFERENCES reservations(id),
    state          TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (state IN ('ACTIVE', 'OVERDUE', 'RETURNED', 'LOST')),
    note           TEXT NOT NULL DEFAULT '',
    started_at     DATETIME NOT NULL,
    due_at         DATETIME NOT NULL,
    returned_at    DATETIME,
    granted_by     INTEGER REFERENCES users(id),
    returned_by    INTEGER REFERENCES users(id),
    version        INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rentals_item_open
    ON rentals(item_id) WHERE state IN ('ACTIVE', 'OVERDUE');

CREATE TABLE IF NOT EXISTS audit_log (
    id             INTEGER PRIMARY KEY,
    action         TEXT NOT NULL,
    entity_table   TEXT NOT NULL,
    actor_id       INTEGER,
    record_id      INTEGER NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    origin         TEXT NOT NULL DEFAULT '',
    correlation_id TEXT NOT NULL DEFAULT '',
    changes        TEXT NOT NULL DEFAULT '{}',
    created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies migrations.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return migrate(db)
}
