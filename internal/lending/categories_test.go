package lending

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/lifecycle"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

func TestCategories_Lifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ana := e.user("ana", model.RoleUser)

	_, err := e.registry.CreateCategory(ctx, ana, CategoryDetails{Name: "Audio"})
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	audio, err := e.registry.CreateCategory(ctx, e.staff, CategoryDetails{Name: "Audio"})
	require.NoError(t, err)
	_, err = e.registry.CreateCategory(ctx, e.staff, CategoryDetails{Name: "Audio"})
	assert.ErrorIs(t, err, lifecycle.ErrConflict)

	renamed, err := e.registry.UpdateCategory(ctx, e.staff, audio.ID, CategoryDetails{Name: "Sound", Description: "Mics"})
	require.NoError(t, err)
	assert.Equal(t, "Sound", renamed.Name)

	require.NoError(t, e.registry.DeleteCategory(ctx, e.staff, audio.ID))
	got, err := store.GetCategory(ctx, e.deps.DB, audio.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	err = e.registry.DeleteCategory(ctx, e.staff, audio.ID)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	assert.Equal(t, []string{
		model.ActionCategoryCreated,
		model.ActionCategoryUpdated,
		model.ActionCategoryDeleted,
	}, e.audit.Actions())
}

func TestCategories_DeleteRefusedWhileInUse(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	cams, err := e.registry.CreateCategory(ctx, e.staff, CategoryDetails{Name: "Cameras"})
	require.NoError(t, err)
	it, err := e.registry.Create(ctx, e.staff, ItemDetails{Name: "Camera", SerialNumber: "CAM-1", CategoryID: &cams.ID})
	require.NoError(t, err)

	err = e.registry.DeleteCategory(ctx, e.staff, cams.ID)
	assert.ErrorIs(t, err, lifecycle.ErrConflict)
	off := false
	_, err = e.registry.UpdateCategory(ctx, e.staff, cams.ID, CategoryDetails{Name: "Cameras", Active: &off})
	assert.ErrorIs(t, err, lifecycle.ErrConflict)

	// Once the item is retired the category can go.
	_, err = e.registry.SetActive(ctx, e.staff, it.ID, false)
	require.NoError(t, err)
	require.NoError(t, e.registry.DeleteCategory(ctx, e.staff, cams.ID))

	// Inactive categories cannot receive new items.
	_, err = e.registry.Create(ctx, e.staff, ItemDetails{Name: "Lens", SerialNumber: "LNS-1", CategoryID: &cams.ID})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidInput)
}
