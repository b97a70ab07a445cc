package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/erazemk/izposoja/internal/model"
)

func TestCategoriesAPI(t *testing.T) {
	ts := setupTestServer(t)
	ts.createUser(t, "reader", model.RoleUser)
	reader := ts.login(t, "reader")

	expectStatus(t, ts.do(t, "POST", "/api/categories", reader, map[string]string{"name": "Audio"}), http.StatusForbidden)
	expectStatus(t, ts.do(t, "POST", "/api/categories", ts.admin, map[string]string{}), http.StatusBadRequest)

	resp := ts.do(t, "POST", "/api/categories", ts.admin, map[string]string{"name": "Cameras", "description": "Bodies and lenses"})
	expectStatus(t, resp, http.StatusCreated)
	var cams model.Category
	decode(t, resp, &cams)
	expectStatus(t, ts.do(t, "POST", "/api/categories", ts.admin, map[string]string{"name": "Cameras"}), http.StatusConflict)

	resp = ts.do(t, "POST", "/api/items", ts.admin, map[string]any{
		"name":          "Mirrorless",
		"serial_number": "CAM-10",
		"category_id":   cams.ID,
		"metadata":      map[string]any{"mount": "RF", "megapixels": 24},
	})
	expectStatus(t, resp, http.StatusCreated)
	var item model.Item
	decode(t, resp, &item)
	if item.CategoryID == nil || *item.CategoryID != cams.ID || item.Metadata["mount"] != "RF" {
		t.Fatalf("unexpected item: %+v", item)
	}
	ts.createItem(t, "OTHER-1")

	resp = ts.do(t, "GET", fmt.Sprintf("/api/items?category_id=%d", cams.ID), reader, nil)
	expectStatus(t, resp, http.StatusOK)
	var filed []model.Item
	decode(t, resp, &filed)
	if len(filed) != 1 || filed[0].ID != item.ID {
		t.Errorf("expected only the filed item, got %+v", filed)
	}
	expectStatus(t, ts.do(t, "GET", "/api/items?category_id=x", reader, nil), http.StatusBadRequest)

	resp = ts.do(t, "GET", "/api/categories", reader, nil)
	expectStatus(t, resp, http.StatusOK)
	var list []model.CategoryCount
	decode(t, resp, &list)
	if len(list) != 1 || list[0].ActiveItems != 1 {
		t.Errorf("expected one category with one item, got %+v", list)
	}

	expectStatus(t, ts.do(t, "DELETE", fmt.Sprintf("/api/categories/%d", cams.ID), ts.admin, nil), http.StatusConflict)

	expectStatus(t, ts.do(t, "PUT", fmt.Sprintf("/api/items/%d/active", item.ID), ts.admin, map[string]bool{"active": false}), http.StatusOK)
	expectStatus(t, ts.do(t, "DELETE", fmt.Sprintf("/api/categories/%d", cams.ID), ts.admin, nil), http.StatusOK)

	// Deleted categories are hidden from regular users only.
	expectStatus(t, ts.do(t, "GET", fmt.Sprintf("/api/categories/%d", cams.ID), reader, nil), http.StatusNotFound)
	expectStatus(t, ts.do(t, "GET", fmt.Sprintf("/api/categories/%d", cams.ID), ts.admin, nil), http.StatusOK)
	resp = ts.do(t, "GET", "/api/categories?inactive=true", ts.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	decode(t, resp, &list)
	if len(list) != 1 || list[0].Active {
		t.Errorf("expected the deleted category for staff, got %+v", list)
	}

	resp = ts.do(t, "PUT", fmt.Sprintf("/api/categories/%d", cams.ID), ts.admin, map[string]any{"name": "Cameras", "active": true})
	expectStatus(t, resp, http.StatusOK)
	decode(t, resp, &cams)
	if !cams.Active {
		t.Error("expected reactivated category")
	}
}

func TestItemBySerial(t *testing.T) {
	ts := setupTestServer(t)
	item := ts.createItem(t, "SN-8")

	resp := ts.do(t, "GET", "/api/serials/SN-8", ts.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	var got model.Item
	decode(t, resp, &got)
	if got.ID != item.ID {
		t.Errorf("expected item %d, got %d", item.ID, got.ID)
	}

	expectStatus(t, ts.do(t, "GET", "/api/serials/NOPE", ts.admin, nil), http.StatusNotFound)
	expectStatus(t, ts.do(t, "GET", "/api/serials/SN-8", "", nil), http.StatusUnauthorized)
}

func TestAuthMeAndRefresh(t *testing.T) {
	ts := setupTestServer(t)
	u := ts.createUser(t, "rosa", model.RoleUser)
	token := ts.login(t, "rosa")

	resp := ts.do(t, "GET", "/api/auth/me", token, nil)
	expectStatus(t, resp, http.StatusOK)
	var me model.User
	decode(t, resp, &me)
	if me.ID != u.ID || me.Username != "rosa" || me.Role != model.RoleUser {
		t.Errorf("unexpected /me: %+v", me)
	}

	n := len(ts.audit.Records())
	resp = ts.do(t, "POST", "/api/auth/refresh", token, nil)
	expectStatus(t, resp, http.StatusOK)
	var fresh loginResponse
	decode(t, resp, &fresh)
	if fresh.Token == "" || fresh.Token == token {
		t.Fatal("expected a new token")
	}
	expectActions(t, ts.actionsSince(n), model.ActionTokenRefreshed)

	expectStatus(t, ts.do(t, "GET", "/api/auth/me", token, nil), http.StatusUnauthorized)
	expectStatus(t, ts.do(t, "GET", "/api/auth/me", fresh.Token, nil), http.StatusOK)
}
