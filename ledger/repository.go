package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNoAccount is returned when the debited address has no account row.
	ErrNoAccount = errors.New("ledger: account not found")
	// ErrInsufficientFunds is returned when the debited account cannot cover
	// the transfer.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrZeroTransfer rejects transfers of zero value.
	ErrZeroTransfer = errors.New("ledger: zero transfer")
	// ErrSameAccount rejects transfers from an address to itself.
	ErrSameAccount = errors.New("ledger: transfer to same account")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Transfer debits from and credits to inside the caller's transaction. The
// debit and credit commit or roll back with whatever else the transaction
// carries; the ledger never commits on its own. Authorization of the debit is
// the caller's responsibility.
func (r *Repository) Transfer(ctx context.Context, tx pgx.Tx, from, to string, amount uint64) error {
	if amount == 0 {
		return ErrZeroTransfer
	}
	if from == to {
		return ErrSameAccount
	}

	tag, err := tx.Exec(ctx, `
		UPDATE accounts
		SET balance = balance - $2, updated_at = now()
		WHERE address = $1 AND balance >= $2
	`, from, amount)
	if err != nil {
		return fmt.Errorf("ledger: debit %s: %w", from, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE address = $1)`, from).Scan(&exists); err != nil {
			return fmt.Errorf("ledger: classify failed debit: %w", err)
		}
		if !exists {
			return ErrNoAccount
		}
		return ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO accounts (address, balance)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()
	`, to, amount); err != nil {
		return fmt.Errorf("ledger: credit %s: %w", to, err)
	}

	return nil
}

// Credit mints value onto an address outside any transfer pair. It exists for
// funding wallets in bootstrap and test setups; the escrow engine itself only
// ever moves value with Transfer.
func (r *Repository) Credit(ctx context.Context, address string, amount uint64) error {
	if amount == 0 {
		return ErrZeroTransfer
	}
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (address, balance)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()
	`, address, amount); err != nil {
		return fmt.Errorf("ledger: credit %s: %w", address, err)
	}
	return nil
}

// Balance returns the current balance for an address. A missing account reads
// as zero.
func (r *Repository) Balance(ctx context.Context, address string) (uint64, error) {
	var balance uint64
	err := r.pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE address = $1`, address).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: balance %s: %w", address, err)
	}
	return balance, nil
}
