package store

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/izposoja/internal/model"
)

const categoryColumns = `id, name, description, active, created_at, updated_at`

// CreateCategory creates an active category.
func CreateCategory(ctx context.Context, db DBTX, name, description string, now time.Time) (*model.Category, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO categories (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, description, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting category id: %w", err)
	}

	return GetCategory(ctx, db, id)
}

// GetCategory returns a category by ID, active or not.
func GetCategory(ctx context.Context, db DBTX, id int64) (*model.Category, error) {
	c, err := queryOne[model.Category](ctx, db,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

// GetCategoryByName returns a category by its unique name.
func GetCategoryByName(ctx context.Context, db DBTX, name string) (*model.Category, error) {
	c, err := queryOne[model.Category](ctx, db,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ?`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("getting category by name: %w", err)
	}
	return c, nil
}

// ListCategories returns categories ordered by name, each with the number
// of active items filed under it.
func ListCategories(ctx context.Context, db DBTX, includeInactive bool, page Page) ([]model.CategoryCount, error) {
	ds := dialect.From(goqu.T("categories").As("c")).
		Select(
			goqu.I("c.id"), goqu.I("c.name"), goqu.I("c.description"), goqu.I("c.active"),
			goqu.I("c.created_at"), goqu.I("c.updated_at"),
			goqu.L(`(SELECT COUNT(*) FROM items i WHERE i.category_id = c.id AND i.active = 1)`).As("active_items"),
		).
		Order(goqu.I("c.name").Asc())
	if !includeInactive {
		ds = ds.Where(goqu.I("c.active").Eq(1))
	}

	out, err := selectAll[model.CategoryCount](ctx, db, page.apply(ds))
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return out, nil
}

// UpdateCategory writes a category's name, description and active flag.
func UpdateCategory(ctx context.Context, db DBTX, c *model.Category, now time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ?, active = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Description, c.Active, now, c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating category: %w", err)
	}
	return nil
}

// CountActiveItemsInCategory returns how many active items use a category.
func CountActiveItemsInCategory(ctx context.Context, db DBTX, id int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE category_id = ? AND active = 1`, id,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting category items: %w", err)
	}
	return n, nil
}
