package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"hybrid-auth-service/internal/audit"
	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
	defaultLookback   = 7 * 24 * time.Hour
)

var errBackendDisabled = errors.New("backend not configured")

type auditLister interface {
	List(ctx context.Context, businessID string, filter repository.AuditFilter) ([]*models.AuditLog, error)
}

type severitySummarizer interface {
	SeveritySummary(ctx context.Context, businessID string, since time.Time) ([]audit.SeverityCount, error)
}

type auditSearcher interface {
	Search(ctx context.Context, businessID string, q audit.SearchQuery) ([]*models.AuditLog, error)
}

type securityTimeline interface {
	Timeline(ctx context.Context, businessID string, since, until time.Time, limit int) ([]*models.SecurityEvent, error)
}

// AuditHandler serves the audit log and its optional mirrors. A nil mirror
// answers 503.
type AuditHandler struct {
	log      auditLister
	summary  severitySummarizer
	search   auditSearcher
	timeline securityTimeline
	logger   *zap.Logger
	now      func() time.Time
}

type AuditHandlerOption func(*AuditHandler)

func WithSeveritySummary(s severitySummarizer) AuditHandlerOption {
	return func(h *AuditHandler) { h.summary = s }
}

func WithAuditSearch(s auditSearcher) AuditHandlerOption {
	return func(h *AuditHandler) { h.search = s }
}

func WithSecurityTimeline(t securityTimeline) AuditHandlerOption {
	return func(h *AuditHandler) { h.timeline = t }
}

func NewAuditHandler(log auditLister, logger *zap.Logger, opts ...AuditHandlerOption) *AuditHandler {
	h := &AuditHandler{
		log:    log,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ListEvents handles GET /audit/events
func (h *AuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	admin := adminSessionFrom(r.Context())
	q := r.URL.Query()

	limit, offset, err := pagination(r)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid query")
		return
	}
	since, err := parseTime(q.Get("since"), time.Time{})
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid query")
		return
	}
	until, err := parseTime(q.Get("until"), time.Time{})
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid query")
		return
	}

	entries, err := h.log.List(r.Context(), admin.BusinessID, repository.AuditFilter{
		Action:   q.Get("action"),
		Severity: models.Severity(q.Get("severity")),
		StaffID:  q.Get("staff_id"),
		Since:    since,
		Until:    until,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, err, "Failed to list audit events")
		return
	}

	resp := successResponse(entries, "")
	resp.Meta = &Meta{Total: len(entries), Limit: limit, Offset: offset}
	respondWithJSON(w, http.StatusOK, resp)
}

// Summary handles GET /audit/summary
func (h *AuditHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if h.summary == nil {
		respondWithError(w, h.logger, http.StatusServiceUnavailable, errBackendDisabled, "Audit analytics unavailable")
		return
	}
	admin := adminSessionFrom(r.Context())

	since, err := parseTime(r.URL.Query().Get("since"), h.now().Add(-defaultLookback))
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid query")
		return
	}

	summary, err := h.summary.SeveritySummary(r.Context(), admin.BusinessID, since)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadGateway, err, "Failed to load audit summary")
		return
	}
	if summary == nil {
		summary = []audit.SeverityCount{}
	}
	respondWithJSON(w, http.StatusOK, successResponse(summary, ""))
}

// Search handles GET /audit/search
func (h *AuditHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		respondWithError(w, h.logger, http.StatusServiceUnavailable, errBackendDisabled, "Audit search unavailable")
		return
	}
	admin := adminSessionFrom(r.Context())
	q := r.URL.Query()

	limit, _, err := pagination(r)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid query")
		return
	}

	results, err := h.search.Search(r.Context(), admin.BusinessID, audit.SearchQuery{
		Text:     q.Get("q"),
		Action:   q.Get("action"),
		Severity: q.Get("severity"),
		StaffID:  q.Get("staff_id"),
		Limit:    limit,
	})
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadGateway, err, "Failed to search audit events")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(results, ""))
}

// Timeline handles GET /audit/timeline
func (h *AuditHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	if h.timeline == nil {
		respondWithError(w, h.logger, http.StatusServiceUnavailable, errBackendDisabled, "Security timeline unavailable")
		return
	}
	admin := adminSessionFrom(r.Context())
	q := r.URL.Query()
	now := h.now()

	limit, _, err := pagination(r)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid query")
		return
	}
	since, err := parseTime(q.Get("since"), now.Add(-defaultLookback))
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid query")
		return
	}
	until, err := parseTime(q.Get("until"), now)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid query")
		return
	}
	if until.Before(since) {
		respondWithError(w, h.logger, http.StatusBadRequest, errors.New("until is before since"), "Invalid query")
		return
	}

	events, err := h.timeline.Timeline(r.Context(), admin.BusinessID, since, until, limit)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadGateway, err, "Failed to load security timeline")
		return
	}
	if events == nil {
		events = []*models.SecurityEvent{}
	}
	respondWithJSON(w, http.StatusOK, successResponse(events, ""))
}

func pagination(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit = defaultAuditLimit
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", v)
		}
	}
	limit = min(limit, maxAuditLimit)
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", v)
		}
	}
	return limit, offset, nil
}

func parseTime(v string, fallback time.Time) (time.Time, error) {
	if v == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected RFC3339", v)
	}
	return t.UTC(), nil
}
