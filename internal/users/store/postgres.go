package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"landledger/internal/platform/postgres"
	"landledger/internal/users/models"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/platform/tx"
)

const userColumns = `id, email, full_name, verification_status, role, created_at, updated_at, version`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
	`
	_, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		user.ID.String(), user.Email, user.FullName,
		string(user.VerificationStatus), string(user.Role),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.Version = 1
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID.String())
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		u            models.User
		userID       uuid.UUID
		verification string
		role         string
	)
	err := tx.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(
		&userID, &u.Email, &u.FullName, &verification, &role, &u.CreatedAt, &u.UpdatedAt, &u.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.ID = id.UserID(userID)
	u.VerificationStatus = models.VerificationStatus(verification)
	u.Role = models.Role(role)
	return &u, nil
}

func (s *PostgresStore) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET full_name = $3, verification_status = $4, role = $5, updated_at = $6, version = version + 1
		WHERE id = $1 AND version = $2
	`
	res, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		user.ID.String(), user.Version, user.FullName,
		string(user.VerificationStatus), string(user.Role), user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindByID(ctx, user.ID); err != nil {
			return err
		}
		return sentinel.ErrConflict
	}
	user.Version++
	return nil
}
