package store

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	_ "github.com/lib/pq"
	"github.com/teresa-solution/whatsapp-session-service/internal/crypto"
	"github.com/teresa-solution/whatsapp-session-service/internal/model"
)

// SessionRepository handles database operations for session rows
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(dsn string) (*SessionRepository, error) {
	config, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*config)
	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &SessionRepository{db: db}, nil
}

// Close closes the database connection
func (r *SessionRepository) Close() error {
	return r.db.Close()
}

// UpsertSession writes one transition, keyed by session_id. The raw pairing
// payload is sealed before it reaches the database.
func (r *SessionRepository) UpsertSession(ctx context.Context, row *model.SessionRow) error {
	var sealed []byte
	if row.QRPayload != "" {
		var err error
		sealed, err = crypto.Seal(row.QRPayload)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO whatsapp_sessions (session_id, tenant_id, phone, status, qr_payload, created_at, updated_at, connected_at, disconnected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE
		SET phone = EXCLUDED.phone,
		    status = EXCLUDED.status,
		    qr_payload = EXCLUDED.qr_payload,
		    updated_at = EXCLUDED.updated_at,
		    connected_at = EXCLUDED.connected_at,
		    disconnected_at = EXCLUDED.disconnected_at
	`
	_, err := r.db.ExecContext(ctx, query,
		row.SessionID, row.TenantID, row.Phone, row.Status, sealed,
		row.CreatedAt, row.UpdatedAt, row.ConnectedAt, row.DisconnectedAt,
	)
	return err
}

// GetBySessionID retrieves a session row by its identifier
func (r *SessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.SessionRow, error) {
	query := `
		SELECT session_id, tenant_id, phone, status, qr_payload, created_at, updated_at, connected_at, disconnected_at
		FROM whatsapp_sessions
		WHERE session_id = $1
	`
	row := &model.SessionRow{}
	var sealed []byte
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&row.SessionID, &row.TenantID, &row.Phone, &row.Status, &sealed,
		&row.CreatedAt, &row.UpdatedAt, &row.ConnectedAt, &row.DisconnectedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(sealed) > 0 {
		payload, err := crypto.Open(sealed)
		if err != nil {
			return nil, err
		}
		row.QRPayload = payload
	}
	return row, nil
}

// ListByTenant retrieves every session row for a tenant, newest first
func (r *SessionRepository) ListByTenant(ctx context.Context, tenantID int64) ([]*model.SessionRow, error) {
	query := `
		SELECT session_id, tenant_id, phone, status, created_at, updated_at, connected_at, disconnected_at
		FROM whatsapp_sessions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*model.SessionRow
	for rows.Next() {
		row := &model.SessionRow{}
		if err := rows.Scan(
			&row.SessionID, &row.TenantID, &row.Phone, &row.Status,
			&row.CreatedAt, &row.UpdatedAt, &row.ConnectedAt, &row.DisconnectedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// MarkAllDisconnected flips every row still marked active to disconnected.
// Runs once at startup; any driver those rows belonged to died with the
// previous process.
func (r *SessionRepository) MarkAllDisconnected(ctx context.Context) (int64, error) {
	query := `
		UPDATE whatsapp_sessions
		SET status = 'disconnected', qr_payload = NULL, disconnected_at = now(), updated_at = now()
		WHERE status IN ('connecting', 'qr', 'connected')
	`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
