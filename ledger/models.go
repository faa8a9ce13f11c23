package ledger

import "time"

// Account mirrors the accounts table. An account is either a user wallet or
// the held-balance account of an escrow record; the ledger does not care
// which.
type Account struct {
	Address   string
	Balance   uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}
