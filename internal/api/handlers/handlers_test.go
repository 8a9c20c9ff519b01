package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/narvanalabs/logkeeper/internal/api/middleware"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// asAdmin injects an authenticated admin id the way the auth middleware does.
func asAdmin(adminID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminID != "" {
				r = r.WithContext(middleware.WithAdminID(r.Context(), adminID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func seedAdmins(t *testing.T, st store.Store) {
	t.Helper()
	for _, a := range []*models.Admin{
		{ID: "root", Email: "root@example.com", Name: "Root", Role: models.RoleSuperAdmin},
		{ID: "mod", Email: "mod@example.com", Name: "Mod", Role: models.RoleModerator},
	} {
		if err := st.Admins().Upsert(context.Background(), a); err != nil {
			t.Fatalf("upsert admin: %v", err)
		}
	}
}

func seedEntries(t *testing.T, ls store.LogStore, entries ...*models.LogEntry) {
	t.Helper()
	for _, e := range entries {
		if err := ls.Create(context.Background(), e); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
}

type apiError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
	RequestID string         `json:"request_id"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
	}
	return e
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func entryAt(id string, ts time.Time, level models.Level, module, action, msg string) *models.LogEntry {
	return &models.LogEntry{
		ID:        id,
		Timestamp: ts,
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   msg,
	}
}

func ids(entries []*models.LogEntry) string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return fmt.Sprint(out)
}

func mountLogs(h *LogHandler, adminID string) http.Handler {
	r := chi.NewRouter()
	r.Use(asAdmin(adminID))
	r.Get("/v1/logs/{stream}", h.List)
	r.Get("/v1/logs/{stream}/stats", h.Stats)
	r.Get("/v1/logs/{stream}/export", h.Export)
	r.Post("/v1/logs/{stream}", h.Create)
	return r
}
