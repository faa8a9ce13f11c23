package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository defines the record persistence the service requires.
type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, rec Record) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, taskID string) (Record, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, rec Record) error
	AppendEvent(ctx context.Context, tx pgx.Tx, eventID string, addr Address, actor Address, event Event) error
	Get(ctx context.Context, taskID string) (Record, error)
	ListExpiredDisputes(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// Ledger is the value transfer primitive. Transfers run inside the service's
// transaction so they commit or roll back with the status change.
type Ledger interface {
	Transfer(ctx context.Context, tx pgx.Tx, from, to string, amount uint64) error
}

// Service applies escrow transitions transactionally: it locks the record,
// runs the pure state machine, applies the resulting transfers, persists the
// new status and appends the emitted event — all in one transaction. A
// failed precondition rolls everything back, so a rejected operation leaves
// no observable trace.
type Service struct {
	pool   TxBeginner
	repo   Repository
	ledger Ledger
	now    func() time.Time
	newID  func() string
}

func NewService(pool TxBeginner, repo Repository, ledger Ledger) *Service {
	return &Service{
		pool:   pool,
		repo:   repo,
		ledger: ledger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// PayoutRequest carries the caller-supplied accounts for Complete and
// ResolveDispute. Agent and FeeWallet must match the record; the mismatch
// errors guard against payout redirection.
type PayoutRequest struct {
	TaskID    string
	Caller    Address
	Agent     Address
	FeeWallet Address
}

// Create funds a new escrow record. The deposit transfer and the record
// insert commit together; a duplicate task id fails before any value moves.
func (s *Service) Create(ctx context.Context, caller Address, p CreateParams) (Record, error) {
	rec, deposit, event, err := newRecord(p, caller, s.now())
	if err != nil {
		return Record{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("escrow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Insert(ctx, tx, rec); err != nil {
		return Record{}, err
	}
	if err := s.ledger.Transfer(ctx, tx, string(deposit.From), string(deposit.To), deposit.Amount); err != nil {
		return Record{}, err
	}
	if err := s.repo.AppendEvent(ctx, tx, s.newID(), rec.Address, caller, event); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("escrow: commit create: %w", err)
	}
	return rec, nil
}

// Complete pays out the record: amount minus fee to the agent, fee to the
// platform wallet. Only the record's authority may call it.
func (s *Service) Complete(ctx context.Context, req PayoutRequest) (Record, error) {
	return s.transition(ctx, req.TaskID, req.Caller, func(rec Record) (Record, []Transfer, Event, error) {
		return rec.complete(req.Caller, req.Agent, req.FeeWallet)
	})
}

// Cancel refunds the full deposit to the hirer while the record is still
// Created.
func (s *Service) Cancel(ctx context.Context, taskID string, caller Address) (Record, error) {
	return s.transition(ctx, taskID, caller, func(rec Record) (Record, []Transfer, Event, error) {
		return rec.cancel(caller)
	})
}

// Dispute marks the record disputed. No value moves; the dispute timestamp
// starts the resolution timeout.
func (s *Service) Dispute(ctx context.Context, taskID string, caller Address) (Record, error) {
	return s.transition(ctx, taskID, caller, func(rec Record) (Record, []Transfer, Event, error) {
		updated, event, err := rec.dispute(caller, s.now())
		return updated, nil, event, err
	})
}

// ResolveDispute performs the timeout auto-release. Any caller may invoke it
// once the timeout has elapsed; the caller gains nothing beyond enabling the
// transition.
func (s *Service) ResolveDispute(ctx context.Context, req PayoutRequest) (Record, error) {
	return s.transition(ctx, req.TaskID, req.Caller, func(rec Record) (Record, []Transfer, Event, error) {
		return rec.resolve(req.Agent, req.FeeWallet, s.now())
	})
}

// Get returns the record for a task id.
func (s *Service) Get(ctx context.Context, taskID string) (Record, error) {
	return s.repo.Get(ctx, taskID)
}

// ListExpiredDisputes exposes the crank scan.
func (s *Service) ListExpiredDisputes(ctx context.Context, limit int) ([]string, error) {
	return s.repo.ListExpiredDisputes(ctx, s.now(), limit)
}

// transition runs one lifecycle step under the record's row lock. apply is a
// pure function; everything it returns is committed atomically or not at all.
func (s *Service) transition(ctx context.Context, taskID string, actor Address, apply func(Record) (Record, []Transfer, Event, error)) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("escrow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.GetForUpdate(ctx, tx, taskID)
	if err != nil {
		return Record{}, err
	}

	updated, transfers, event, err := apply(rec)
	if err != nil {
		return Record{}, err
	}

	for _, t := range transfers {
		if err := s.ledger.Transfer(ctx, tx, string(t.From), string(t.To), t.Amount); err != nil {
			return Record{}, err
		}
	}
	if err := s.repo.UpdateStatus(ctx, tx, updated); err != nil {
		return Record{}, err
	}
	if err := s.repo.AppendEvent(ctx, tx, s.newID(), updated.Address, actor, event); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("escrow: commit transition: %w", err)
	}
	return updated, nil
}
