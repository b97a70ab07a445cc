package lending

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/izposoja/internal/lifecycle"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/erazemk/izposoja/internal/telemetry"
)

// Registry owns the item catalog: registration, descriptive edits and the
// administrative state transitions. Claims and releases happen only through
// the reservation and rental engines.
type Registry struct {
	Deps
}

// NewRegistry returns an item registry.
func NewRegistry(d Deps) (*Registry, error) {
	d, err := d.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Registry{Deps: d}, nil
}

// Withdraw takes an AVAILABLE item out of circulation.
func (e *Registry) Withdraw(ctx context.Context, actor Actor, id int64) (*model.Item, error) {
	return e.move(ctx, actor, id, "item.withdraw", model.ActionItemWithdrawn, store.WithdrawItem)
}

// Restore returns a WITHDRAWN item to circulation.
func (e *Registry) Restore(ctx context.Context, actor Actor, id int64) (*model.Item, error) {
	return e.move(ctx, actor, id, "item.restore", model.ActionItemRestored, store.RestoreItem)
}

// Recover releases an item left IN_CUSTODY by a LOST rental. It fails while
// any ACTIVE or OVERDUE rental still references the item.
func (e *Registry) Recover(ctx context.Context, actor Actor, id int64) (*model.Item, error) {
	return e.move(ctx, actor, id, "item.recover", model.ActionItemRecovered, store.RecoverItem)
}

func (e *Registry) move(ctx context.Context, actor Actor, id int64, op, action string,
	fn func(context.Context, store.DBTX, int64, time.Time) (*model.Item, error),
) (*model.Item, error) {
	ctx, span := e.Tracer.Start(ctx, op, trace.WithAttributes(attribute.Int64("item", id)))
	defer span.End()

	if err := requireStaff(actor); err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	var before model.ItemState
	var item *model.Item
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		cur, err := loadItem(ctx, tx, id)
		if err != nil {
			return err
		}
		before = cur.State

		item, err = fn(ctx, tx, id, e.Clock.Now())
		return err
	})
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	if before != item.State {
		e.record(ctx, actor, action, model.TableItems, item.ID,
			fmt.Sprintf("Item %d (%s) %s -> %s", item.ID, item.Name, before, item.State),
			map[string]any{"state": change(before, item.State)})
	}
	return item, nil
}

// SetActive toggles whether an item may be claimed. An item that is held or
// lent out cannot be deactivated. Setting the flag it already has is not
// audited.
func (e *Registry) SetActive(ctx context.Context, actor Actor, id int64, active bool) (*model.Item, error) {
	ctx, span := e.Tracer.Start(ctx, "item.set_active", trace.WithAttributes(
		attribute.Int64("item", id), attribute.Bool("active", active)))
	defer span.End()

	if err := requireStaff(actor); err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	var before bool
	var item *model.Item
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		cur, err := loadItem(ctx, tx, id)
		if err != nil {
			return err
		}
		before = cur.Active
		if !active {
			if err := lifecycle.Deactivate(*cur); err != nil {
				return err
			}
		}
		if err := store.SetItemActive(ctx, tx, id, active, e.Clock.Now()); err != nil {
			return err
		}
		item, err = store.GetItem(ctx, tx, id)
		return err
	})
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	if before != item.Active {
		action, verb := model.ActionItemDeactivated, "deactivated"
		if item.Active {
			action, verb = model.ActionItemActivated, "activated"
		}
		e.record(ctx, actor, action, model.TableItems, item.ID,
			fmt.Sprintf("Item %d (%s) %s", item.ID, item.Name, verb),
			map[string]any{"active": change(before, item.Active)})
	}
	return item, nil
}

// ItemDetails are the descriptive fields of an item. SerialNumber is only
// read on creation; it never changes afterwards.
type ItemDetails struct {
	Name         string
	Description  string
	SerialNumber string
	CategoryID   *int64
	Metadata     model.Metadata
}

// Create registers a new AVAILABLE item. Serial numbers are unique and the
// category, when given, must exist and be active.
func (e *Registry) Create(ctx context.Context, actor Actor, d ItemDetails) (*model.Item, error) {
	ctx, span := e.Tracer.Start(ctx, "item.create", trace.WithAttributes(attribute.String("serial", d.SerialNumber)))
	defer span.End()

	if err := requireStaff(actor); err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}
	if d.Name == "" || d.SerialNumber == "" {
		err := lifecycle.Errorf(lifecycle.CodeInvalidInput, "name and serial_number required")
		telemetry.Fail(span, err)
		return nil, err
	}

	var item *model.Item
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		existing, err := store.GetItemBySerial(ctx, tx, d.SerialNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			return lifecycle.Errorf(lifecycle.CodeConflict, "serial number %s already registered", d.SerialNumber)
		}
		if err := checkCategory(ctx, tx, d.CategoryID); err != nil {
			return err
		}

		item, err = store.InsertItem(ctx, tx, &model.Item{
			Name:         d.Name,
			Description:  d.Description,
			SerialNumber: d.SerialNumber,
			CategoryID:   d.CategoryID,
			Metadata:     d.Metadata,
		}, e.Clock.Now())
		return err
	})
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	e.record(ctx, actor, model.ActionItemCreated, model.TableItems, item.ID,
		fmt.Sprintf("Item %d (%s) registered with serial %s", item.ID, item.Name, item.SerialNumber),
		map[string]any{"serial_number": change(nil, item.SerialNumber)})
	return item, nil
}

// Update rewrites an item's descriptive fields. State and activity are left
// alone.
func (e *Registry) Update(ctx context.Context, actor Actor, id int64, d ItemDetails) (*model.Item, error) {
	ctx, span := e.Tracer.Start(ctx, "item.update", trace.WithAttributes(attribute.Int64("item", id)))
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

	var changes map[string]any
	var item *model.Item
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		cur, err := loadItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if !sameCategory(cur.CategoryID, d.CategoryID) {
			if err := checkCategory(ctx, tx, d.CategoryID); err != nil {
				return err
			}
		}

		next := *cur
		next.Name = d.Name
		next.Description = d.Description
		next.CategoryID = d.CategoryID
		next.Metadata = d.Metadata
		if next.Metadata == nil {
			next.Metadata = model.Metadata{}
		}
		changes = itemChanges(cur, &next)

		if err := store.UpdateItem(ctx, tx, &next, e.Clock.Now()); err != nil {
			return err
		}
		item, err = store.GetItem(ctx, tx, id)
		return err
	})
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	e.record(ctx, actor, model.ActionItemUpdated, model.TableItems, item.ID,
		fmt.Sprintf("Item %d (%s) updated", item.ID, item.Name), changes)
	return item, nil
}

// SetImage stores an already normalized photo for an item.
func (e *Registry) SetImage(ctx context.Context, actor Actor, id int64, data []byte, mime string) (*model.Item, error) {
	ctx, span := e.Tracer.Start(ctx, "item.set_image", trace.WithAttributes(
		attribute.Int64("item", id), attribute.Int("bytes", len(data))))
	defer span.End()

	if err := requireStaff(actor); err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	var before string
	var item *model.Item
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		cur, err := loadItem(ctx, tx, id)
		if err != nil {
			return err
		}
		before = cur.ImageMime

		if err := store.SetItemImage(ctx, tx, id, data, mime, e.Clock.Now()); err != nil {
			return err
		}
		item, err = store.GetItem(ctx, tx, id)
		return err
	})
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}

	e.record(ctx, actor, model.ActionItemImageSet, model.TableItems, item.ID,
		fmt.Sprintf("Item %d (%s) photo replaced (%d bytes)", item.ID, item.Name, len(data)),
		map[string]any{"image_mime": change(before, item.ImageMime)})
	return item, nil
}

func requireStaff(actor Actor) error {
	if !actor.Staff() {
		return lifecycle.Errorf(lifecycle.CodeForbidden, "only staff may change items")
	}
	return nil
}

func loadItem(ctx context.Context, tx store.DBTX, id int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, lifecycle.Errorf(lifecycle.CodeNotFound, "item %d not found", id)
	}
	return item, nil
}

// checkCategory accepts a nil category or an existing active one.
func checkCategory(ctx context.Context, tx store.DBTX, id *int64) error {
	if id == nil {
		return nil
	}
	c, err := store.GetCategory(ctx, tx, *id)
	if err != nil {
		return err
	}
	if c == nil || !c.Active {
		return lifecycle.Errorf(lifecycle.CodeInvalidInput, "category %d does not exist", *id)
	}
	return nil
}

func sameCategory(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func itemChanges(before, after *model.Item) map[string]any {
	out := map[string]any{}
	if before.Name != after.Name {
		out["name"] = change(before.Name, after.Name)
	}
	if before.Description != after.Description {
		out["description"] = change(before.Description, after.Description)
	}
	if !sameCategory(before.CategoryID, after.CategoryID) {
		out["category_id"] = change(before.CategoryID, after.CategoryID)
	}
	if !reflect.DeepEqual(map[string]any(before.Metadata), map[string]any(after.Metadata)) {
		out["metadata"] = change(before.Metadata, after.Metadata)
	}
	return out
}
