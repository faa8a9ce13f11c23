package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository persists escrow records, timeline events and outbox messages.
// All writes run inside the transaction the service hands in.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const recordColumns = `address, disambiguator, task_id, hirer, agent, authority, fee_wallet, amount, fee_bps, status, created_at, disputed_at`

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec           Record
		disambiguator int16
	)
	err := row.Scan(&rec.Address, &disambiguator, &rec.TaskID, &rec.Hirer, &rec.Agent,
		&rec.Authority, &rec.FeeWallet, &rec.Amount, &rec.FeeBps, &rec.Status,
		&rec.CreatedAt, &rec.DisputedAt)
	if err != nil {
		return Record{}, err
	}
	rec.Disambiguator = uint8(disambiguator)
	return rec, nil
}

// Insert stores a freshly created record. A unique violation on the address
// means the task id is already occupied.
func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, rec Record) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO escrows (address, disambiguator, task_id, hirer, agent, authority, fee_wallet, amount, fee_bps, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.Address, int16(rec.Disambiguator), rec.TaskID, rec.Hirer, rec.Agent,
		rec.Authority, rec.FeeWallet, rec.Amount, rec.FeeBps, rec.Status, rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrTaskExists
		}
		return fmt.Errorf("escrow: insert record: %w", err)
	}
	return nil
}

// GetForUpdate loads the record at the address derived from taskID and locks
// the row for the remainder of the transaction. Concurrent transitions on the
// same task serialize here; the loser re-reads a status that no longer
// permits its operation. The stored address is re-verified against the
// derivation before the record is returned.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, taskID string) (Record, error) {
	addr, _ := DeriveAddress(taskID)
	rec, err := scanRecord(tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM escrows WHERE address = $1 FOR UPDATE`, addr))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("escrow: load record: %w", err)
	}
	if err := VerifyAddress(rec.TaskID, rec.Address, rec.Disambiguator); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// UpdateStatus persists a transition result. disputed_at is only ever set,
// never cleared or overwritten, so the first dispute timestamp survives any
// later writes.
func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, rec Record) error {
	tag, err := tx.Exec(ctx, `
		UPDATE escrows
		SET status = $2,
		    disputed_at = COALESCE(disputed_at, $3)
		WHERE address = $1
	`, rec.Address, rec.Status, rec.DisputedAt)
	if err != nil {
		return fmt.Errorf("escrow: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendEvent writes the timeline row and outbox message for an emitted
// event inside the transition's transaction.
func (r *PGRepository) AppendEvent(ctx context.Context, tx pgx.Tx, eventID string, addr Address, actor Address, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("escrow: marshal event payload: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO timeline_events (id, escrow_address, type, actor, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, eventID, addr, event.TimelineType(), actor, payload); err != nil {
		return fmt.Errorf("escrow: insert timeline event: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO outbox (topic, payload)
		VALUES ($1, $2)
	`, event.Topic(), payload); err != nil {
		return fmt.Errorf("escrow: enqueue outbox: %w", err)
	}

	return nil
}

// Get returns the record for a task id without locking it.
func (r *PGRepository) Get(ctx context.Context, taskID string) (Record, error) {
	addr, _ := DeriveAddress(taskID)
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM escrows WHERE address = $1`, addr))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("escrow: get record: %w", err)
	}
	if err := VerifyAddress(rec.TaskID, rec.Address, rec.Disambiguator); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListExpiredDisputes returns task ids of disputed records whose timeout has
// elapsed as of now. Used by the crank; any caller could run the same scan.
func (r *PGRepository) ListExpiredDisputes(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT task_id
		FROM escrows
		WHERE status = 'disputed' AND disputed_at + make_interval(secs => $2) <= $1
		ORDER BY disputed_at
		LIMIT $3
	`, now, DisputeTimeoutSeconds, limit)
	if err != nil {
		return nil, fmt.Errorf("escrow: list expired disputes: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, 8)
	for rows.Next() {
		var taskID string
		if err := rows.Scan(&taskID); err != nil {
			return nil, fmt.Errorf("escrow: scan expired dispute: %w", err)
		}
		out = append(out, taskID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("escrow: iterate expired disputes: %w", err)
	}
	return out, nil
}
