package crank

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"escrowflow/escrow"
)

type fakeResolver struct {
	mu       sync.Mutex
	expired  []string
	listErr  error
	records  map[string]escrow.Record
	resolved []escrow.PayoutRequest
	errs     map[string]error
}

func (f *fakeResolver) ListExpiredDisputes(_ context.Context, _ int) ([]string, error) {
	return f.expired, f.listErr
}

func (f *fakeResolver) Get(_ context.Context, taskID string) (escrow.Record, error) {
	rec, ok := f.records[taskID]
	if !ok {
		return escrow.Record{}, escrow.ErrNotFound
	}
	return rec, nil
}

func (f *fakeResolver) ResolveDispute(_ context.Context, req escrow.PayoutRequest) (escrow.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[req.TaskID]; err != nil {
		return escrow.Record{}, err
	}
	f.resolved = append(f.resolved, req)
	return f.records[req.TaskID], nil
}

func record(taskID string) escrow.Record {
	return escrow.Record{
		TaskID:    taskID,
		Agent:     escrow.Address("agent-" + taskID),
		FeeWallet: escrow.Address("fees"),
		Status:    escrow.StatusDisputed,
	}
}

func TestTick_ResolvesExpiredDisputes(t *testing.T) {
	resolver := &fakeResolver{
		expired: []string{"task-1", "task-2"},
		records: map[string]escrow.Record{
			"task-1": record("task-1"),
			"task-2": record("task-2"),
		},
	}
	w := NewWorker(resolver, "crank-wallet", time.Second)

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(resolver.resolved) != 2 {
		t.Fatalf("resolved %d tasks, want 2", len(resolver.resolved))
	}
	for _, req := range resolver.resolved {
		if req.Caller != "crank-wallet" {
			t.Errorf("caller = %s, want crank-wallet", req.Caller)
		}
		want := resolver.records[req.TaskID]
		if req.Agent != want.Agent || req.FeeWallet != want.FeeWallet {
			t.Errorf("request %+v does not match record accounts", req)
		}
	}
}

func TestTick_NothingExpired(t *testing.T) {
	resolver := &fakeResolver{records: map[string]escrow.Record{}}
	w := NewWorker(resolver, "crank-wallet", time.Second)
	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(resolver.resolved) != 0 {
		t.Errorf("resolved %d tasks, want 0", len(resolver.resolved))
	}
}

// A record already resolved by another caller between the scan and the lock is
// skipped quietly; other failures do not stop the batch.
func TestTick_ToleratesRaceAndFailure(t *testing.T) {
	resolver := &fakeResolver{
		expired: []string{"task-raced", "task-broken", "task-ok"},
		records: map[string]escrow.Record{
			"task-raced":  record("task-raced"),
			"task-broken": record("task-broken"),
			"task-ok":     record("task-ok"),
		},
		errs: map[string]error{
			"task-raced":  escrow.ErrInvalidStatus,
			"task-broken": errors.New("connection reset"),
		},
	}
	w := NewWorker(resolver, "crank-wallet", time.Second)

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(resolver.resolved) != 1 || resolver.resolved[0].TaskID != "task-ok" {
		t.Errorf("resolved = %+v, want just task-ok", resolver.resolved)
	}
}

func TestTick_ListFailure(t *testing.T) {
	resolver := &fakeResolver{listErr: errors.New("db down")}
	w := NewWorker(resolver, "crank-wallet", time.Second)
	if err := w.Tick(context.Background()); err == nil {
		t.Fatal("expected error when the scan fails")
	}
}
