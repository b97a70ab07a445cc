package api

import (
	"log/slog"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/erazemk/izposoja/internal/lifecycle"
	"github.com/erazemk/izposoja/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// statusFor maps a domain failure code to an HTTP status.
func statusFor(code lifecycle.Code) int {
	switch code {
	case lifecycle.CodeNotFound:
		return http.StatusNotFound
	case lifecycle.CodeItemUnavailable, lifecycle.CodeDuplicateReservation, lifecycle.CodeInvalidStateTransition,
		lifecycle.CodeConflict:
		return http.StatusConflict
	case lifecycle.CodeReservationExpired:
		return http.StatusGone
	case lifecycle.CodeOutOfRange, lifecycle.CodeInvalidInput:
		return http.StatusBadRequest
	case lifecycle.CodeForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// engineError writes the response for an error returned by a lending
// engine. Domain failures carry their code; anything else is logged and
// reported as a generic failure.
func engineError(w http.ResponseWriter, r *http.Request, err error) {
	code := lifecycle.CodeOf(err)
	if code == "" {
		slog.Error("request failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonResponse(w, statusFor(code), map[string]string{
		"error": err.Error(),
		"code":  string(code),
	})
}

// decodeJSON decodes a JSON request body into the given target. An empty
// body leaves target untouched.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	if r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// queryInt parses an optional positive integer query parameter. A missing
// parameter yields zero.
func queryInt(r *http.Request, name string) (int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil && n >= 0
}

// queryPage parses the limit and offset query parameters.
func queryPage(r *http.Request) (store.Page, bool) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		return store.Page{}, false
	}
	offset, ok := queryInt(r, "offset")
	if !ok {
		return store.Page{}, false
	}
	return store.Page{Limit: uint(limit), Offset: uint(offset)}, true
}
