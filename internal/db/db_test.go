package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func TestEnsureSchema_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "izposoja.db")

	for i := 0; i < 2; i++ {
		db, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := EnsureSchema(db); err != nil {
			t.Fatalf("EnsureSchema run %d: %v", i+1, err)
		}
		db.Close()
	}
}

func TestSchema_OneOpenReservationPerItem(t *testing.T) {
	db := NewTestDB(t)

	mustExec(t, db.Exec, `INSERT INTO users (id, username, password_hash) VALUES (1, 'ana', 'x'), (2, 'bor', 'x')`)
	mustExec(t, db.Exec, `INSERT INTO items (id, name, serial_number) VALUES (1, 'Camera', 'CAM-1')`)
	mustExec(t, db.Exec, `INSERT INTO reservations (item_id, holder_id, created_at, expires_at) VALUES (1, 1, '2026-01-01 10:00:00', '2026-01-01 11:00:00')`)

	_, err := db.Exec(`INSERT INTO reservations (item_id, holder_id, created_at, expires_at) VALUES (1, 2, '2026-01-01 10:00:00', '2026-01-01 11:00:00')`)
	if err == nil {
		t.Fatal("expected unique violation for second OPEN reservation")
	}

	// A closed reservation does not count.
	mustExec(t, db.Exec, `INSERT INTO reservations (item_id, holder_id, state, created_at, expires_at) VALUES (1, 2, 'EXPIRED', '2026-01-01 10:00:00', '2026-01-01 11:00:00')`)
}

func TestSchema_OneOpenRentalPerItem(t *testing.T) {
	db := NewTestDB(t)

	mustExec(t, db.Exec, `INSERT INTO users (id, username, password_hash) VALUES (1, 'ana', 'x')`)
	mustExec(t, db.Exec, `INSERT INTO items (id, name, serial_number) VALUES (1, 'Camera', 'CAM-1')`)
	mustExec(t, db.Exec, `INSERT INTO rentals (item_id, holder_id, state, started_at, due_at) VALUES (1, 1, 'OVERDUE', '2026-01-01', '2026-01-08')`)

	_, err := db.Exec(`INSERT INTO rentals (item_id, holder_id, started_at, due_at) VALUES (1, 1, '2026-01-01', '2026-01-08')`)
	if err == nil {
		t.Fatal("expected unique violation for second open rental")
	}

	mustExec(t, db.Exec, `INSERT INTO rentals (item_id, holder_id, state, started_at, due_at) VALUES (1, 1, 'RETURNED', '2026-01-01', '2026-01-08')`)
}

func TestSchema_RejectsUnknownItemState(t *testing.T) {
	db := NewTestDB(t)

	_, err := db.Exec(`INSERT INTO items (name, serial_number, state) VALUES ('Camera', 'CAM-1', 'BROKEN')`)
	if err == nil {
		t.Fatal("expected CHECK violation")
	}
}

func TestEnsureSchema_AddsItemColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	// An items table from before categories and metadata existed.
	mustExec(t, db.Exec, `CREATE TABLE items (
		id INTEGER PRIMARY KEY, name TEXT NOT NULL, description TEXT NOT NULL DEFAULT '',
		serial_number TEXT NOT NULL UNIQUE, image BLOB, image_mime TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'AVAILABLE', active INTEGER NOT NULL DEFAULT 1,
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP)`)
	mustExec(t, db.Exec, `INSERT INTO items (name, serial_number) VALUES ('Camera', 'CAM-1')`)

	if err := EnsureSchema(db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	var metadata string
	var category sql.NullInt64
	if err := db.QueryRow(`SELECT metadata, category_id FROM items WHERE serial_number = 'CAM-1'`).Scan(&metadata, &category); err != nil {
		t.Fatalf("reading upgraded row: %v", err)
	}
	if metadata != "{}" || category.Valid {
		t.Errorf("expected defaults, got metadata=%q category=%v", metadata, category)
	}
}

func mustExec(t *testing.T, exec func(string, ...any) (sql.Result, error), query string) {
	t.Helper()
	if _, err := exec(query); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
