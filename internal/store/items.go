package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/izposoja/internal/model"
)

const itemColumns = `id, name, description, serial_number, category_id, metadata, image_mime, state, active, version, created_at, updated_at`

// ItemFilter narrows ListItems. Zero fields match everything.
type ItemFilter struct {
	State      model.ItemState
	ActiveOnly bool
	CategoryID int64
	Page
}

// CreateItem registers a new AVAILABLE item without a category.
func CreateItem(ctx context.Context, db DBTX, name, description, serial string, now time.Time) (*model.Item, error) {
	return InsertItem(ctx, db, &model.Item{Name: name, Description: description, SerialNumber: serial}, now)
}

// InsertItem registers it as a new AVAILABLE item and returns the stored row.
// State, activity and version take their defaults.
func InsertItem(ctx context.Context, db DBTX, it *model.Item, now time.Time) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, description, serial_number, category_id, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		it.Name, it.Description, it.SerialNumber, it.CategoryID, it.Metadata, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db DBTX, id int64) (*model.Item, error) {
	item, err := queryOne[model.Item](ctx, db,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// GetItemBySerial returns an item by its serial number.
func GetItemBySerial(ctx context.Context, db DBTX, serial string) (*model.Item, error) {
	item, err := queryOne[model.Item](ctx, db,
		`SELECT `+itemColumns+` FROM items WHERE serial_number = ?`, serial,
	)
	if err != nil {
		return nil, fmt.Errorf("getting item by serial: %w", err)
	}
	return item, nil
}

// ListItems returns items ordered by name.
func ListItems(ctx context.Context, db DBTX, f ItemFilter) ([]model.Item, error) {
	ds := dialect.From("items").
		Select(goqu.L(itemColumns)).
		Order(goqu.C("name").Asc(), goqu.C("id").Asc())
	if f.State != "" {
		ds = ds.Where(goqu.C("state").Eq(string(f.State)))
	}
	if f.ActiveOnly {
		ds = ds.Where(goqu.C("active").Eq(1))
	}
	if f.CategoryID != 0 {
		ds = ds.Where(goqu.C("category_id").Eq(f.CategoryID))
	}

	items, err := selectAll[model.Item](ctx, db, f.Page.apply(ds))
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// UpdateItem writes an item's descriptive fields: name, description,
// category and metadata. State is owned by the registry and is never
// written here.
func UpdateItem(ctx context.Context, db DBTX, it *model.Item, now time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, category_id = ?, metadata = ?, updated_at = ?, version = version + 1
		 WHERE id = ?`,
		it.Name, it.Description, it.CategoryID, it.Metadata, now, it.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// SetItemActive toggles whether an item may be claimed.
func SetItemActive(ctx context.Context, db DBTX, id int64, active bool, now time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET active = ?, updated_at = ?, version = version + 1 WHERE id = ?`,
		active, now, id,
	)
	if err != nil {
		return fmt.Errorf("setting item active: %w", err)
	}
	return nil
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, db DBTX, id int64, image []byte, mime string, now time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = ? WHERE id = ?`,
		image, mime, now, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type.
func GetItemImage(ctx context.Context, db DBTX, id int64) ([]byte, string, error) {
	var image []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime, nil
}
