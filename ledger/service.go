package ledger

import "context"

// BalanceReader abstracts repository reads for the service.
type BalanceReader interface {
	Balance(ctx context.Context, address string) (uint64, error)
}

// Service exposes read-side ledger operations.
type Service struct {
	repo BalanceReader
}

// NewService builds a Service using the provided repository.
func NewService(repo BalanceReader) *Service {
	return &Service{repo: repo}
}

// Balance returns the balance held at the given address.
func (s *Service) Balance(ctx context.Context, address string) (uint64, error) {
	return s.repo.Balance(ctx, address)
}
