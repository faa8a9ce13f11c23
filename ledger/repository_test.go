package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestTransfer_InputValidation(t *testing.T) {
	repo := NewRepository(nil)

	// Validation happens before any SQL runs, so no tx is needed.
	if err := repo.Transfer(context.Background(), nil, "a", "b", 0); !errors.Is(err, ErrZeroTransfer) {
		t.Errorf("zero transfer err = %v, want %v", err, ErrZeroTransfer)
	}
	if err := repo.Transfer(context.Background(), nil, "a", "a", 10); !errors.Is(err, ErrSameAccount) {
		t.Errorf("same account err = %v, want %v", err, ErrSameAccount)
	}
}

// TestTransfer_Integration verifies debit/credit against a live PostgreSQL.
func TestTransfer_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	repo := NewRepository(pool)
	suffix := time.Now().UnixNano()
	alice := fmt.Sprintf("alice-%d", suffix)
	bob := fmt.Sprintf("bob-%d", suffix)

	if err := repo.Credit(ctx, alice, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}

	transfer := func(from, to string, amount uint64) error {
		tx, err := pool.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		defer tx.Rollback(ctx)
		if err := repo.Transfer(ctx, tx, from, to, amount); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	if err := transfer(alice, bob, 60); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if b, _ := repo.Balance(ctx, alice); b != 40 {
		t.Errorf("alice balance = %d, want 40", b)
	}
	if b, _ := repo.Balance(ctx, bob); b != 60 {
		t.Errorf("bob balance = %d, want 60", b)
	}

	if err := transfer(alice, bob, 41); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("overdraft err = %v, want %v", err, ErrInsufficientFunds)
	}
	if b, _ := repo.Balance(ctx, alice); b != 40 {
		t.Errorf("alice balance after failed transfer = %d, want 40", b)
	}

	missing := fmt.Sprintf("missing-%d", suffix)
	if err := transfer(missing, bob, 1); !errors.Is(err, ErrNoAccount) {
		t.Errorf("missing account err = %v, want %v", err, ErrNoAccount)
	}
	if b, _ := repo.Balance(ctx, missing); b != 0 {
		t.Errorf("missing account reads %d, want 0", b)
	}
}
