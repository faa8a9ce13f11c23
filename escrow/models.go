package escrow

import "time"

// Global escrow parameters. Fixed at build time; never runtime-mutable.
const (
	// PlatformFeeBps is the platform fee rate in basis points (10%).
	PlatformFeeBps uint64 = 1000

	// DisputeTimeoutSeconds is how long a dispute stays open before anyone
	// may trigger the auto-release payout (72 hours).
	DisputeTimeoutSeconds int64 = 72 * 3600

	// MaxTaskIDLen bounds the task identifier used in address derivation.
	MaxTaskIDLen = 64
)

// DisputeTimeout is DisputeTimeoutSeconds as a duration.
const DisputeTimeout = time.Duration(DisputeTimeoutSeconds) * time.Second

// Address identifies a ledger account: a user wallet or a record's
// held-balance account.
type Address string

// Status represents the lifecycle state of an escrow record.
type Status string

const (
	StatusCreated   Status = "created"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusDisputed  Status = "disputed"
	StatusResolved  Status = "resolved"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusResolved:
		return true
	default:
		return false
	}
}

// Record mirrors the escrows table. All fields except Status and DisputedAt
// are immutable after creation.
type Record struct {
	Address       Address
	Disambiguator uint8
	TaskID        string
	Hirer         Address
	Agent         Address
	Authority     Address
	FeeWallet     Address
	Amount        uint64
	FeeBps        uint64
	Status        Status
	CreatedAt     time.Time
	DisputedAt    *time.Time
}

// Transfer is a single ledger movement the engine wants applied. Transfers
// produced by one transition commit atomically with the status change or not
// at all.
type Transfer struct {
	From   Address
	To     Address
	Amount uint64
}

// CreateParams carries the caller-supplied inputs to Create.
type CreateParams struct {
	TaskID    string
	Amount    uint64
	Hirer     Address
	Agent     Address
	Authority Address
	FeeWallet Address
}
