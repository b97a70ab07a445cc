package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: indexes for the sweep scans and per-holder listings.
	`CREATE INDEX IF NOT EXISTS idx_reservations_state_expires
	     ON reservations(state, expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_rentals_state_due
	     ON rentals(state, due_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_holder
	     ON reservations(holder_id, state)`,
	`CREATE INDEX IF NOT EXISTS idx_rentals_holder
	     ON rentals(holder_id, state)`,

	// Migration 2: audit lookups by record and by sweep run.
	`CREATE INDEX IF NOT EXISTS idx_audit_log_record
	     ON audit_log(entity_table, record_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_correlation
	     ON audit_log(correlation_id) WHERE correlation_id != ''`,

	// Migration 3: item categories.
	`CREATE INDEX IF NOT EXISTS idx_items_category
	     ON items(category_id)`,
}

// columns are added to tables created before the column existed.
var columns = []struct {
	table, name, decl string
}{
	{"items", "category_id", "INTEGER REFERENCES categories(id)"},
	{"items", "metadata", "TEXT NOT NULL DEFAULT '{}'"},
}

func migrate(db *sql.DB) error {
	for _, c := range columns {
		if err := addColumn(db, c.table, c.name, c.decl); err != nil {
			return err
		}
	}
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}

// addColumn adds a column unless the table already has it.
func addColumn(db *sql.DB, table, name, decl string) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, name).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspecting %s.%s: %w", table, name, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, decl)); err != nil {
		return fmt.Errorf("adding %s.%s: %w", table, name, err)
	}
	return nil
}
