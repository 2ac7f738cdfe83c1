package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/lecture-notes/backend/internal/apperr"
	"github.com/ayush/lecture-notes/backend/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps user accounts in PostgreSQL, for deployments that
// keep credentials out of the document store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id          CHAR(24)     PRIMARY KEY,
			first_name  VARCHAR(100) NOT NULL DEFAULT '',
			last_name   VARCHAR(100) NOT NULL DEFAULT '',
			email       VARCHAR(255) UNIQUE NOT NULL,
			password    VARCHAR(255) NOT NULL,
			phone_no    VARCHAR(32)  NOT NULL DEFAULT '',
			role        VARCHAR(16)  NOT NULL,
			is_verified BOOLEAN      NOT NULL DEFAULT FALSE,
			otp         VARCHAR(16),
			expiry_time TIMESTAMPTZ,
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now().UTC()
	if err := u.Validate(); err != nil {
		return apperr.DataIntegrity("user rejected", err)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, first_name, last_name, email, password, phone_no, role, is_verified, otp, expiry_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID.Hex(), u.FirstName, u.LastName, u.Email, u.Password, u.PhoneNo, u.Role,
		u.IsVerified, nullString(u.OTP), u.ExpiryTime, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicate.Wrap(err)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, email, password, phone_no, role, is_verified, otp, expiry_time, created_at
		 FROM users WHERE email = $1`, email,
	))
}

// scanUser maps a users row onto models.User. NULL otp and expiry_time
// become the zero code and a nil expiry.
func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u   models.User
		id  string
		otp *string
	)
	err := row.Scan(&id, &u.FirstName, &u.LastName, &u.Email, &u.Password, &u.PhoneNo, &u.Role,
		&u.IsVerified, &otp, &u.ExpiryTime, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u.ID, err = primitive.ObjectIDFromHex(id); err != nil {
		return nil, apperr.DataIntegrity("malformed user row", err)
	}
	if otp != nil {
		u.OTP = *otp
	}
	if err := u.Validate(); err != nil {
		return nil, apperr.DataIntegrity("malformed user row", err)
	}
	return &u, nil
}

func (s *PostgresStore) SetOTP(ctx context.Context, email, code string, expiry time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET otp = $2, expiry_time = $3 WHERE email = $1`, email, code, expiry)
	if err != nil {
		return fmt.Errorf("set otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkVerified(ctx context.Context, email string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_verified = TRUE, otp = NULL, expiry_time = NULL WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
