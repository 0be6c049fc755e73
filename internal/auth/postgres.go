package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Accounts = (*PGAccounts)(nil)

const uniqueViolation = "23505"

// PGAccounts implements Accounts using PostgreSQL.
type PGAccounts struct {
	db *sql.DB
}

func NewPGAccounts(db *sql.DB) *PGAccounts {
	return &PGAccounts{db: db}
}

func (s *PGAccounts) Create(ctx context.Context, a *Account) error {
	row := s.db.QueryRowContext(ctx,
		`insert into accounts(uid, email, password_hash, display_name) values($1,$2,$3,$4) returning created_at, updated_at`,
		a.UID, a.Email, a.PasswordHash, a.DisplayName,
	)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *PGAccounts) Find(ctx context.Context, uid string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select uid, email, password_hash, display_name, created_at, updated_at from accounts where uid=$1`, uid)
	return scanAccount(row)
}

func (s *PGAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select uid, email, password_hash, display_name, created_at, updated_at from accounts where email=$1`, email)
	return scanAccount(row)
}

func (s *PGAccounts) UpdateDisplayName(ctx context.Context, uid, name string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set display_name=$2, updated_at=now() where uid=$1`, uid, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	if err := row.Scan(&a.UID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
