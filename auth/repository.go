package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrKeyNotFound is returned when no API key row exists for the identifier.
var ErrKeyNotFound = errors.New("auth: api key not found")

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) CreateKey(ctx context.Context, key APIKey) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_keys (id, owner_name, wallet, role, secret_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, key.ID, key.OwnerName, key.Wallet, key.Role, key.SecretHash)
	if err != nil {
		return fmt.Errorf("auth: insert api key: %w", err)
	}
	return nil
}

func (r *PGRepository) GetKeyByID(ctx context.Context, id string) (APIKey, error) {
	var key APIKey
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_name, wallet, role, secret_hash, created_at
		FROM api_keys
		WHERE id = $1
	`, id).Scan(&key.ID, &key.OwnerName, &key.Wallet, &key.Role, &key.SecretHash, &key.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKey{}, ErrKeyNotFound
	}
	if err != nil {
		return APIKey{}, fmt.Errorf("auth: get api key: %w", err)
	}
	return key, nil
}
