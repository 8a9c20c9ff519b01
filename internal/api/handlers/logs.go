package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/zstd"
	apierrors "github.com/narvanalabs/logkeeper/internal/api/errors"
	"github.com/narvanalabs/logkeeper/internal/logs"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

// QueryConfig bounds page sizes and fixes the zone for date filters and exports.
type QueryConfig struct {
	DefaultLimit int
	MaxLimit     int
	Location     *time.Location
}

// LogHandler serves the log streams.
type LogHandler struct {
	store  store.Store
	cfg    QueryConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewLogHandler creates a new log handler.
func NewLogHandler(st store.Store, cfg QueryConfig, logger *slog.Logger) *LogHandler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 100
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &LogHandler{
		store:  st,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// ListResponse is the body of GET /v1/logs/{stream}. Stats and options describe the
// loaded page; logs is the filtered view of it.
type ListResponse struct {
	Logs       []*models.LogEntry `json:"logs"`
	Stats      logs.Stats         `json:"stats"`
	Options    logs.FilterOptions `json:"options"`
	NextCursor string             `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

// view is one loaded page plus the filter applied to it.
type view struct {
	stream   models.Stream
	page     *logs.Page
	filtered []*models.LogEntry
}

// load resolves the stream, fetches one page with the pushdown query and applies the
// remaining predicates. It writes the error response itself and returns nil on failure.
func (h *LogHandler) load(w http.ResponseWriter, r *http.Request) *view {
	stream, ok := parseStream(w, r)
	if !ok {
		return nil
	}

	q := r.URL.Query()
	limit := h.cfg.DefaultLimit
	if s := q.Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l <= 0 {
			WriteBadRequest(w, r, "limit must be a positive integer")
			return nil
		}
		limit = min(l, h.cfg.MaxLimit)
	}

	filter, pred, err := parseFilter(r, h.cfg.Location)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return nil
	}
	pushdown, err := filter.Pushdown()
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return nil
	}

	page, err := logs.FetchPage(r.Context(), h.store.Logs(stream), pushdown, limit, q.Get("cursor"))
	if err != nil {
		if errors.Is(err, store.ErrInvalidCursor) {
			WriteBadRequest(w, r, "Invalid cursor")
			return nil
		}
		h.logger.Error("failed to list logs", "stream", stream, "error", err)
		WriteInternalError(w, r, "Failed to retrieve logs")
		return nil
	}

	return &view{
		stream:   stream,
		page:     page,
		filtered: logs.Apply(page.Entries, pred),
	}
}

// parseFilter reads the filter query parameters and compiles them, together with
// the optional expr parameter, into one predicate.
func parseFilter(r *http.Request, loc *time.Location) (logs.Filter, logs.Predicate, error) {
	q := r.URL.Query()
	filter := logs.Filter{
		Level:    q.Get("level"),
		Module:   q.Get("module"),
		Action:   q.Get("action"),
		Actor:    q.Get("actor"),
		Status:   q.Get("status"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Search:   q.Get("q"),
		Location: loc,
	}
	pred, err := filter.Predicate()
	if err != nil {
		return filter, nil, err
	}
	exprPred, err := logs.CompileExpr(q.Get("expr"))
	if err != nil {
		return filter, nil, err
	}
	return filter, logs.And(pred, exprPred), nil
}

func parseStream(w http.ResponseWriter, r *http.Request) (models.Stream, bool) {
	stream, err := models.ParseStream(chi.URLParam(r, "stream"))
	if err != nil {
		WriteNotFound(w, r, err.Error())
		return "", false
	}
	return stream, true
}

// List handles GET /v1/logs/{stream}.
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	v := h.load(w, r)
	if v == nil {
		return
	}

	filtered := v.filtered
	if filtered == nil {
		filtered = []*models.LogEntry{}
	}
	WriteJSON(w, http.StatusOK, &ListResponse{
		Logs:       filtered,
		Stats:      logs.ComputeStats(v.page.Entries, h.now().In(h.cfg.Location)),
		Options:    logs.Options(v.page.Entries),
		NextCursor: v.page.NextCursor,
		HasMore:    v.page.HasMore,
	})
}

// Stats handles GET /v1/logs/{stream}/stats.
func (h *LogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	v := h.load(w, r)
	if v == nil {
		return
	}
	WriteJSON(w, http.StatusOK, logs.ComputeStats(v.page.Entries, h.now().In(h.cfg.Location)))
}

// Export handles GET /v1/logs/{stream}/export - the filtered view as a CSV download.
func (h *LogHandler) Export(w http.ResponseWriter, r *http.Request) {
	v := h.load(w, r)
	if v == nil {
		return
	}

	filename := logs.ExportFilename(v.stream.Subject(), h.now().In(h.cfg.Location))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Add("Vary", "Accept-Encoding")

	if !acceptsZstd(r) {
		if err := logs.WriteCSV(w, v.filtered, h.cfg.Location); err != nil {
			h.logger.Error("failed to write export", "stream", v.stream, "error", err)
		}
		return
	}

	w.Header().Set("Content-Encoding", "zstd")
	enc, err := zstd.NewWriter(w)
	if err != nil {
		h.logger.Error("failed to create zstd encoder", "error", err)
		w.Header().Del("Content-Encoding")
		WriteInternalError(w, r, "Failed to export logs")
		return
	}
	if err := logs.WriteCSV(enc, v.filtered, h.cfg.Location); err != nil {
		h.logger.Error("failed to write export", "stream", v.stream, "error", err)
	}
	if err := enc.Close(); err != nil {
		h.logger.Error("failed to flush zstd export", "stream", v.stream, "error", err)
	}
}

func acceptsZstd(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(coding, "zstd") {
			return true
		}
	}
	return false
}

// Create handles POST /v1/logs/{stream} - appends one entry.
func (h *LogHandler) Create(w http.ResponseWriter, r *http.Request) {
	stream, ok := parseStream(w, r)
	if !ok {
		return
	}

	var entry models.LogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		WriteBadRequest(w, r, "Invalid request body")
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = h.now().UTC()
	}
	if err := entry.Validate(); err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			WriteError(w, r, apierrors.ValidationErrors{{Field: ve.Field, Message: ve.Message}}.ToAPIError())
			return
		}
		WriteBadRequest(w, r, err.Error())
		return
	}

	if err := h.store.Logs(stream).Create(r.Context(), &entry); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			WriteConflict(w, r, "A log entry with this id already exists")
			return
		}
		h.logger.Error("failed to create log entry", "stream", stream, "error", err)
		WriteInternalError(w, r, "Failed to create log entry")
		return
	}

	WriteJSON(w, http.StatusCreated, &entry)
}
