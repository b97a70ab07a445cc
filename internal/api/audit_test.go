package api

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"slices"
	"testing"

	"github.com/erazemk/izposoja/internal/lifecycle"
	"github.com/erazemk/izposoja/internal/model"
)

// actionsSince returns the audit actions recorded after the first n.
func (ts *testServer) actionsSince(n int) []string {
	return ts.audit.Actions()[n:]
}

func expectActions(t *testing.T, got []string, want ...string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Fatalf("expected audit actions %v, got %v", want, got)
	}
}

func TestAccountOperationsAudited(t *testing.T) {
	ts := setupTestServer(t)

	n := len(ts.audit.Records())
	resp := ts.do(t, "POST", "/api/users", ts.admin, map[string]string{"username": "mojca", "password": "mojcamojca", "role": model.RoleUser})
	expectStatus(t, resp, http.StatusCreated)
	var user model.User
	decode(t, resp, &user)
	expectActions(t, ts.actionsSince(n), model.ActionUserCreated)

	n = len(ts.audit.Records())
	expectStatus(t, ts.do(t, "PUT", fmt.Sprintf("/api/users/%d", user.ID), ts.admin, map[string]string{"role": model.RoleManager}), http.StatusOK)
	expectActions(t, ts.actionsSince(n), model.ActionUserUpdated)
	rec := ts.audit.Records()[n]
	if rec.EntityTable != model.TableUsers || rec.RecordID != user.ID || rec.ActorID == nil {
		t.Errorf("unexpected user update record: %+v", rec)
	}

	n = len(ts.audit.Records())
	expectStatus(t, ts.do(t, "PUT", fmt.Sprintf("/api/users/%d/password", user.ID), ts.admin, map[string]string{"password": "newsecret1"}), http.StatusOK)
	expectActions(t, ts.actionsSince(n), model.ActionUserPasswordReset)

	// Failed logins leave no record.
	n = len(ts.audit.Records())
	expectStatus(t, ts.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "mojca", "password": "wrongwrong"}), http.StatusUnauthorized)
	expectActions(t, ts.actionsSince(n))

	resp = ts.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "mojca", "password": "newsecret1"})
	expectStatus(t, resp, http.StatusOK)
	var login loginResponse
	decode(t, resp, &login)
	expectActions(t, ts.actionsSince(n), model.ActionLogin)
	if id := ts.audit.Records()[n].ActorID; id == nil || *id != user.ID {
		t.Errorf("expected login attributed to user %d, got %v", user.ID, id)
	}

	n = len(ts.audit.Records())
	expectStatus(t, ts.do(t, "PUT", "/api/auth/password", login.Token, map[string]string{"current_password": "newsecret1", "new_password": "another12"}), http.StatusOK)
	expectActions(t, ts.actionsSince(n), model.ActionPasswordChanged)

	n = len(ts.audit.Records())
	expectStatus(t, ts.do(t, "POST", "/api/auth/logout", login.Token, nil), http.StatusOK)
	expectActions(t, ts.actionsSince(n), model.ActionLogout)

	n = len(ts.audit.Records())
	expectStatus(t, ts.do(t, "DELETE", fmt.Sprintf("/api/users/%d", user.ID), ts.admin, nil), http.StatusOK)
	expectActions(t, ts.actionsSince(n), model.ActionUserDeleted)

	n = len(ts.audit.Records())
	expectStatus(t, ts.do(t, "DELETE", fmt.Sprintf("/api/users/%d", user.ID), ts.admin, nil), http.StatusNotFound)
	expectStatus(t, ts.do(t, "PUT", "/api/users/999", ts.admin, map[string]string{"role": model.RoleUser}), http.StatusNotFound)
	expectActions(t, ts.actionsSince(n))
}

func TestItemWritesAudited(t *testing.T) {
	ts := setupTestServer(t)

	n := len(ts.audit.Records())
	item := ts.createItem(t, "AUD-1")
	expectActions(t, ts.actionsSince(n), model.ActionItemCreated)

	n = len(ts.audit.Records())
	expectStatus(t, ts.do(t, "PUT", fmt.Sprintf("/api/items/%d", item.ID), ts.admin, map[string]any{
		"name":     "Camera AUD-1",
		"metadata": map[string]string{"colour": "silver"},
	}), http.StatusOK)
	expectActions(t, ts.actionsSince(n), model.ActionItemUpdated)

	n = len(ts.audit.Records())
	expectStatus(t, ts.do(t, "PUT", fmt.Sprintf("/api/items/%d/active", item.ID), ts.admin, map[string]bool{"active": false}), http.StatusOK)
	expectActions(t, ts.actionsSince(n), model.ActionItemDeactivated)

	n = len(ts.audit.Records())
	var pngData bytes.Buffer
	if err := png.Encode(&pngData, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "photo.png")
	part.Write(pngData.Bytes())
	mw.Close()
	req, _ := http.NewRequest("PUT", fmt.Sprintf("%s/api/items/%d/image", ts.URL, item.ID), &body)
	req.Header.Set("Authorization", "Bearer "+ts.admin)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	expectActions(t, ts.actionsSince(n), model.ActionItemImageSet)
}

func TestStatusForCodes(t *testing.T) {
	cases := map[lifecycle.Code]int{
		lifecycle.CodeNotFound:               http.StatusNotFound,
		lifecycle.CodeItemUnavailable:        http.StatusConflict,
		lifecycle.CodeDuplicateReservation:   http.StatusConflict,
		lifecycle.CodeInvalidStateTransition: http.StatusConflict,
		lifecycle.CodeConflict:               http.StatusConflict,
		lifecycle.CodeReservationExpired:     http.StatusGone,
		lifecycle.CodeOutOfRange:             http.StatusBadRequest,
		lifecycle.CodeInvalidInput:           http.StatusBadRequest,
		lifecycle.CodeForbidden:              http.StatusForbidden,
		lifecycle.Code("SOMETHING_ELSE"):     http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := statusFor(code); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", code, got, want)
		}
	}
}
