package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/parkwatch/ui-api/internal/ports"
)

// maxReportBody bounds proxied report payloads.
const maxReportBody = 1 << 20 // 1 MiB

// ReportHandlers proxies report operations to the black-box backend. The
// payload shapes are backend-defined and passed through untouched.
type ReportHandlers struct {
	Backend ports.BackendClient
	Logger  *slog.Logger
}

func (h *ReportHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Submit forwards a new violation report.
// POST /api/reports.
func (h *ReportHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBody))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_body", Err: err})
		return
	}
	if !json.Valid(body) {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_json",
			Err:     errors.New("report body must be valid JSON"),
		})
		return
	}

	result, err := h.Backend.SubmitReport(r.Context(), sess.Token, body)
	if err != nil {
		h.writeBackendError(w, r, "submit report", err)
		return
	}
	WriteJSON(w, http.StatusCreated, json.RawMessage(result))
}

// ListOwn lists the authenticated user's reports.
// GET /api/reports.
func (h *ReportHandlers) ListOwn(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}
	h.list(w, r, sess.Token, sess.User.ID)
}

// ListForUser lists another user's reports; the router keeps this behind the
// inspector guard.
// GET /api/reports/{userID}.
func (h *ReportHandlers) ListForUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	userID := r.PathValue("userID")
	if userID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_user_id",
			Err:     errors.New("user id is required"),
		})
		return
	}
	h.list(w, r, sess.Token, userID)
}

func (h *ReportHandlers) list(w http.ResponseWriter, r *http.Request, token, userID string) {
	result, err := h.Backend.ListReports(r.Context(), token, userID)
	if err != nil {
		h.writeBackendError(w, r, "list reports", err)
		return
	}
	WriteJSON(w, http.StatusOK, json.RawMessage(result))
}

// writeBackendError maps upstream failures onto proxy responses. A 401 from
// the backend has already fired the expiry bus by the time we get here; the
// next verification pass will redirect, so this response only needs to tell
// the current caller that the session is gone.
func (h *ReportHandlers) writeBackendError(w http.ResponseWriter, r *http.Request, op string, err error) {
	msg := ports.MessageOf(err)
	switch ports.KindOf(err) {
	case ports.KindSessionExpired:
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "session_expired", "message": msg})
	case ports.KindNetwork:
		WriteJSON(w, http.StatusBadGateway, map[string]string{"error": "backend_unreachable", "message": msg})
	default:
		h.logger().ErrorContext(r.Context(), op+" failed", "error", err)
		WriteJSON(w, http.StatusBadGateway, map[string]string{"error": "backend_error", "message": msg})
	}
}
