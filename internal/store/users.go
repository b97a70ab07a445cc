package store

import (
	"context"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

const userColumns = `id, username, password_hash, role, created_at, deleted_at`

// CreateUser creates a new user.
func CreateUser(ctx context.Context, db DBTX, username, passwordHash, role string) (*model.User, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID, including soft-deleted users.
func GetUser(ctx context.Context, db DBTX, id int64) (*model.User, error) {
	u, err := queryOne[model.User](ctx, db,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetActiveUser returns a user by ID, or nil if it does not exist or was deleted.
func GetActiveUser(ctx context.Context, db DBTX, id int64) (*model.User, error) {
	u, err := queryOne[model.User](ctx, db,
		`SELECT `+userColumns+` FROM users WHERE id = ? AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting active user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns a user by username. An active user wins over
// soft-deleted ones with the same name, which are still returned so auth
// can reject them explicitly.
func GetUserByUsername(ctx context.Context, db DBTX, username string) (*model.User, error) {
	u, err := queryOne[model.User](ctx, db,
		`SELECT `+userColumns+` FROM users WHERE username = ?
		 ORDER BY deleted_at IS NULL DESC, id DESC LIMIT 1`, username,
	)
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, db DBTX) ([]model.User, error) {
	users, err := queryAll[model.User](ctx, db,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// UpdateUser updates a user's role.
func UpdateUser(ctx context.Context, db DBTX, id int64, role string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`,
		role, id,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db DBTX, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, db DBTX, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
