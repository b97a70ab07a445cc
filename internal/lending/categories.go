package lending

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/izposoja/internal/lifecycle"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/erazemk/izposoja/internal/telemetry"
)

// CategoryDetails are the editable fields of a category. A nil Active keeps
// the current flag.
type CategoryDetails struct {
	Name        string
	Description string
	Active      *bool
}

// CreateCategory adds an active category with a unique name.
func (e *Registry) CreateCategory(ctx context.Context, actor Actor, d CategoryDetails) (*model.Category, error) {
	ctx, span := e.Tracer.Start(ctx, "category.create")
	defer span.End()

	if err := requireStaff(actor); err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}
	if d.Name == "" {
		err := lifecycle.Errorf(lifecycle.CodeInvalidInput, "name required")
		telemetry.Fail(span, err)
		return nil, err
	}

	var c *model.Category
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		if err := uniqueCategoryName(ctx, tx, d.Name, 0); err != nil {
			return err
		}
		var err error
		c, err = store.CreateCategory(ctx, tx, d.Name, d.Description, e.Clock.Now())
		return err
	})
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	e.record(ctx, actor, model.ActionCategoryCreated, model.TableCategories, c.ID,
		fmt.Sprintf("Category %d (%s) created", c.ID, c.Name),
		map[string]any{"name": change(nil, c.Name)})
	return c, nil
}

// UpdateCategory renames, describes or reactivates a category.
func (e *Registry) UpdateCategory(ctx context.Context, actor Actor, id int64, d CategoryDetails) (*model.Category, error) {
	ctx, span := e.Tracer.Start(ctx, "category.update", trace.WithAttributes(attribute.Int64("category", id)))
	defer span.End()

	if err := requireStaff(actor); err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}
	if d.Name == "" {
		err := lifecycle.Errorf(lifecycle.CodeInvalidInput, "name required")
		telemetry.Fail(span, err)
		return nil, err
	}

	changes := map[string]any{}
	var c *model.Category
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		cur, err := loadCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if d.Name != cur.Name {
			if err := uniqueCategoryName(ctx, tx, d.Name, id); err != nil {
				return err
			}
			changes["name"] = change(cur.Name, d.Name)
		}
		if d.Description != cur.Description {
			changes["description"] = change(cur.Description, d.Description)
		}

		next := *cur
		next.Name = d.Name
		next.Description = d.Description
		if d.Active != nil && *d.Active != cur.Active {
			if !*d.Active {
				if err := categoryUnused(ctx, tx, id); err != nil {
					return err
				}
			}
			next.Active = *d.Active
			changes["active"] = change(cur.Active, next.Active)
		}

		if err := store.UpdateCategory(ctx, tx, &next, e.Clock.Now()); err != nil {
			return err
		}
		c, err = store.GetCategory(ctx, tx, id)
		return err
	})
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	e.record(ctx, actor, model.ActionCategoryUpdated, model.TableCategories, c.ID,
		fmt.Sprintf("Category %d (%s) updated", c.ID, c.Name), changes)
	return c, nil
}

// DeleteCategory deactivates a category. It fails while any active item is
// still filed under it.
func (e *Registry) DeleteCategory(ctx context.Context, actor Actor, id int64) error {
	ctx, span := e.Tracer.Start(ctx, "category.delete", trace.WithAttributes(attribute.Int64("category", id)))
	defer span.End()

	if err := requireStaff(actor); err != nil {
		telemetry.Fail(span, err)
		return err
	}

	var name string
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		cur, err := loadCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if !cur.Active {
			return lifecycle.Errorf(lifecycle.CodeNotFound, "category %d not found", id)
		}
		if err := categoryUnused(ctx, tx, id); err != nil {
			return err
		}
		name = cur.Name

		next := *cur
		next.Active = false
		return store.UpdateCategory(ctx, tx, &next, e.Clock.Now())
	})
	if err != nil {
		telemetry.Fail(span, err)
		return err
	}

	e.record(ctx, actor, model.ActionCategoryDeleted, model.TableCategories, id,
		fmt.Sprintf("Category %d (%s) deleted", id, name),
		map[string]any{"active": change(true, false)})
	return nil
}

func loadCategory(ctx context.Context, tx store.DBTX, id int64) (*model.Category, error) {
	c, err := store.GetCategory(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, lifecycle.Errorf(lifecycle.CodeNotFound, "category %d not found", id)
	}
	return c, nil
}

func uniqueCategoryName(ctx context.Context, tx store.DBTX, name string, self int64) error {
	other, err := store.GetCategoryByName(ctx, tx, name)
	if err != nil {
		return err
	}
	if other != nil && other.ID != self {
		return lifecycle.Errorf(lifecycle.CodeConflict, "category %q already exists", name)
	}
	return nil
}

func categoryUnused(ctx context.Context, tx store.DBTX, id int64) error {
	n, err := store.CountActiveItemsInCategory(ctx, tx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return lifecycle.Errorf(lifecycle.CodeConflict, "category %d still has %d active items", id, n)
	}
	return nil
}
