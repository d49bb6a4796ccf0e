package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/data/pgxutil"
)

// AuthEventRepo persists the auth audit trail (logins, logouts, expiries).
// Writes are best-effort from the caller's point of view; the controller
// never fails a user action over an audit error.
type AuthEventRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAuthEventRepo creates a new AuthEventRepo instance with the given
// database connection.
func NewAuthEventRepo(db *sql.DB) *AuthEventRepo {
	return &AuthEventRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
	}
}

// authEventColumns defines the column list for auth event SELECT queries to
// ensure consistent field mapping.
const authEventColumns = `id, session_id, event_type, email, detail, created_at`

// authEventRow maps the auth_events table to the domain Event.
type authEventRow struct {
	ID        uuid.UUID `db:"id"`
	SessionID string    `db:"session_id"`
	EventType string    `db:"event_type"`
	Email     string    `db:"email"`
	Detail    string    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

func (row authEventRow) toDomain() domainauth.Event {
	return domainauth.Event{
		ID:        row.ID.String(),
		SessionID: row.SessionID,
		Type:      domainauth.EventType(row.EventType),
		Email:     row.Email,
		Detail:    row.Detail,
		CreatedAt: row.CreatedAt,
	}
}

// handleRecordError classifies database errors during event insertion.
func (r *AuthEventRepo) handleRecordError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("record auth event: %w", err)
	}

	switch {
	case pgErr.Code == pgerrcode.UndefinedTable:
		return fmt.Errorf("record auth event: auth_events table missing, run migrations: %w", err)
	case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
		return fmt.Errorf("record auth event: invalid event: %w", err)
	default:
		return fmt.Errorf("record auth event: %w", err)
	}
}

// Record inserts one audit event. A zero CreatedAt is filled in and a missing
// ID is generated.
func (r *AuthEventRepo) Record(ctx context.Context, e domainauth.Event) error {
	if e.Type == "" {
		return errors.New("auth event type is required")
	}

	id := e.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("record auth event: invalid id %q", e.ID)
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now()
	}

	query := `
		INSERT INTO auth_events (id, session_id, event_type, email, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.DB.ExecContext(ctx, query,
		id, e.SessionID, string(e.Type), e.Email, e.Detail, createdAt,
	)
	if err != nil {
		return r.handleRecordError(err)
	}
	return nil
}

// normalizePagination normalizes limit and offset values for pagination.
func (r *AuthEventRepo) normalizePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// List returns audit events newest first.
func (r *AuthEventRepo) List(ctx context.Context, limit, offset int) ([]domainauth.Event, error) {
	limit, offset = r.normalizePagination(limit, offset)

	query := `SELECT ` + authEventColumns + `
		FROM auth_events
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	var rowsOut []authEventRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, query, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[authEventRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", err)
	}

	events := make([]domainauth.Event, 0, len(rowsOut))
	for _, row := range rowsOut {
		events = append(events, row.toDomain())
	}
	return events, nil
}

// ListBySession returns the audit trail for one gateway session, newest
// first.
func (r *AuthEventRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]domainauth.Event, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	limit, _ = r.normalizePagination(limit, 0)

	query := `SELECT ` + authEventColumns + `
		FROM auth_events
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	var rowsOut []authEventRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, query, sessionID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[authEventRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list auth events by session: %w", err)
	}

	events := make([]domainauth.Event, 0, len(rowsOut))
	for _, row := range rowsOut {
		events = append(events, row.toDomain())
	}
	return events, nil
}
