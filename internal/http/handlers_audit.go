package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
)

// AuditQuerier is the read surface of the auth audit trail.
type AuditQuerier interface {
	List(ctx context.Context, limit, offset int) ([]domainauth.Event, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domainauth.Event, error)
}

// AuditHandlers exposes the auth audit trail to operators. The router keeps
// these behind the admin guard.
type AuditHandlers struct {
	Events AuditQuerier
	Logger *slog.Logger
}

func (h *AuditHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// ListEvents returns audit events newest first. A non-empty session query
// parameter narrows the trail to one gateway session.
// GET /api/audit/events.
func (h *AuditHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intQuery(q, "limit")
	offset := intQuery(q, "offset")

	var (
		events []domainauth.Event
		err    error
	)
	if sid := q.Get("session"); sid != "" {
		events, err = h.Events.ListBySession(r.Context(), sid, limit)
	} else {
		events, err = h.Events.List(r.Context(), limit, offset)
	}
	if err != nil {
		h.logger().ErrorContext(r.Context(), "list auth events failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "audit_query_failed",
			Err:     err,
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// intQuery parses an integer query parameter. Missing or malformed values
// come back as zero; the repository applies its own pagination bounds.
func intQuery(q url.Values, key string) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return 0
	}
	return n
}
