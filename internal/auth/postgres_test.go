package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGAccountsCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("insert into accounts").
		WithArgs("uid-1", "a@example.com", "hash", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery("insert into accounts").
		WithArgs("uid-2", "a@example.com", "hash", "").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	store := NewPGAccounts(db)
	acct := &Account{UID: "uid-1", Email: "a@example.com", PasswordHash: "hash"}
	if err := store.Create(context.Background(), acct); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !acct.CreatedAt.Equal(now) {
		t.Fatalf("created_at not populated: %v", acct.CreatedAt)
	}
	dup := &Account{UID: "uid-2", Email: "a@example.com", PasswordHash: "hash"}
	if err := store.Create(context.Background(), dup); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGAccountsFindAndUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	cols := []string{"uid", "email", "password_hash", "display_name", "created_at", "updated_at"}
	mock.ExpectQuery("select uid, email, password_hash, display_name, created_at, updated_at from accounts where email").
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("uid-1", "a@example.com", "hash", "SlyFoxScout", now, now))
	mock.ExpectQuery("select uid, email, password_hash, display_name, created_at, updated_at from accounts where uid").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("update accounts set display_name").
		WithArgs("uid-1", "BrazenViperFixer").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update accounts set display_name").
		WithArgs("missing", "x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGAccounts(db)
	ctx := context.Background()
	acct, err := store.FindByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if acct.DisplayName != "SlyFoxScout" {
		t.Fatalf("unexpected display name %q", acct.DisplayName)
	}
	if _, err := store.Find(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateDisplayName(ctx, "uid-1", "BrazenViperFixer"); err != nil {
		t.Fatalf("UpdateDisplayName: %v", err)
	}
	if err := store.UpdateDisplayName(ctx, "missing", "x"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
