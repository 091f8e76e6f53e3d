package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"landledger/internal/platform/postgres"
	"landledger/internal/trade/models"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/platform/tx"
)

const (
	requestColumns = `
	id, land_id, seller_id, buyer_id, agreed_price, message, status, timeline,
	rejection_reason, admin_comments, created_at, updated_at, version`

	oneActivePerLand = "buy_requests_one_active_per_land"
)

// PostgresStore persists buy requests. The partial unique index
// buy_requests_one_active_per_land backs the one-active-request rule.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r *models.BuyRequest) error {
	timeline, err := json.Marshal(r.Timeline)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}
	query := `INSERT INTO buy_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)`
	_, err = tx.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		r.ID.String(), r.LandID.String(), r.Seller.String(), r.Buyer.String(),
		r.AgreedPrice, r.Message, string(r.Status), timeline,
		r.RejectionReason, r.AdminComments, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, oneActivePerLand) {
			return sentinel.ErrConflict
		}
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert buy request: %w", err)
	}
	r.Version = 1
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.BuyRequestID) (*models.BuyRequest, error) {
	return s.findOne(ctx, `SELECT `+requestColumns+` FROM buy_requests WHERE id = $1`, requestID.String())
}

// FindByIDForUpdate locks the request row until the surrounding transaction ends.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, requestID id.BuyRequestID) (*models.BuyRequest, error) {
	return s.findOne(ctx, `SELECT `+requestColumns+` FROM buy_requests WHERE id = $1 FOR UPDATE`, requestID.String())
}

func (s *PostgresStore) FindActiveByLand(ctx context.Context, landID id.LandID) (*models.BuyRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM buy_requests
		WHERE land_id = $1 AND status IN ('PENDING_SELLER_CONFIRMATION', 'PENDING_ADMIN_APPROVAL')
		FOR UPDATE`
	return s.findOne(ctx, query, landID.String())
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.BuyRequest, error) {
	r, err := scanRequest(tx.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find buy request: %w", err)
	}
	return r, nil
}

// Update writes the mutable columns when the stored version still equals
// r.Version, then bumps r.Version.
func (s *PostgresStore) Update(ctx context.Context, r *models.BuyRequest) error {
	timeline, err := json.Marshal(r.Timeline)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}
	query := `
		UPDATE buy_requests SET
			status = $3, timeline = $4, rejection_reason = $5, admin_comments = $6,
			updated_at = $7, version = version + 1
		WHERE id = $1 AND version = $2
	`
	exec := tx.ExecutorFor(ctx, s.db)
	res, err := exec.ExecContext(ctx, query,
		r.ID.String(), r.Version,
		string(r.Status), timeline, r.RejectionReason, r.AdminComments, r.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, oneActivePerLand) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update buy request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update buy request rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM buy_requests WHERE id = $1)`, r.ID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("check buy request exists: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	r.Version++
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.BuyRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM buy_requests
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC`
	return s.query(ctx, query, userID.String())
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.BuyRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM buy_requests
		WHERE status = $1
		ORDER BY updated_at ASC`
	return s.query(ctx, query, string(status))
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.BuyRequest, error) {
	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query buy requests: %w", err)
	}
	defer rows.Close()

	out := make([]*models.BuyRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan buy request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buy requests: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc rowScanner) (*models.BuyRequest, error) {
	var (
		r                 models.BuyRequest
		requestID, landID uuid.UUID
		sellerID, buyerID uuid.UUID
		status            string
		timeline          []byte
	)
	err := sc.Scan(
		&requestID, &landID, &sellerID, &buyerID, &r.AgreedPrice, &r.Message, &status, &timeline,
		&r.RejectionReason, &r.AdminComments, &r.CreatedAt, &r.UpdatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}
	r.ID = id.BuyRequestID(requestID)
	r.LandID = id.LandID(landID)
	r.Seller = id.UserID(sellerID)
	r.Buyer = id.UserID(buyerID)
	r.Status = models.Status(status)
	if err := json.Unmarshal(timeline, &r.Timeline); err != nil {
		return nil, fmt.Errorf("unmarshal timeline: %w", err)
	}
	return &r, nil
}
