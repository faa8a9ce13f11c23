package escrow

import "errors"

var (
	// ErrZeroAmount rejects creation with a zero deposit.
	ErrZeroAmount = errors.New("escrow: amount must be greater than zero")
	// ErrTaskIDTooLong rejects task identifiers over MaxTaskIDLen characters.
	ErrTaskIDTooLong = errors.New("escrow: task id exceeds 64 characters")
	// ErrTaskExists signals the derived address is already occupied, i.e. a
	// record for this task id was created before.
	ErrTaskExists = errors.New("escrow: task already exists")
	// ErrNotFound is returned when no record exists for the task id.
	ErrNotFound = errors.New("escrow: task not found")
	// ErrInvalidStatus rejects an operation attempted from a state that does
	// not permit it.
	ErrInvalidStatus = errors.New("escrow: invalid status for operation")
	// ErrUnauthorized rejects a caller whose address does not match the role
	// the operation requires.
	ErrUnauthorized = errors.New("escrow: caller not authorized")
	// ErrWrongAgent rejects a supplied agent address that differs from the one
	// stored at creation.
	ErrWrongAgent = errors.New("escrow: agent does not match record")
	// ErrWrongFeeWallet rejects a supplied fee wallet that differs from the
	// one stored at creation.
	ErrWrongFeeWallet = errors.New("escrow: fee wallet does not match record")
	// ErrDisputeNotExpired rejects resolution before the dispute timeout.
	ErrDisputeNotExpired = errors.New("escrow: dispute timeout has not elapsed")
	// ErrAddressMismatch signals a stored record whose address cannot be
	// re-derived from its task id and disambiguator.
	ErrAddressMismatch = errors.New("escrow: stored address fails derivation check")
	// ErrArithmeticOverflow is an internal invariant violation; unreachable
	// for bounded amounts but checked rather than assumed.
	ErrArithmeticOverflow = errors.New("escrow: arithmetic overflow in fee split")
)
