package escrow

import "time"

// The functions in this file are the escrow state machine proper. Each is a
// pure function of (record, caller, now, params) returning the mutated record,
// the ledger transfers to apply, and the event to emit, or a rejection. They
// perform no I/O; Service commits their outputs atomically.

// newRecord validates create parameters and builds the initial record plus
// the funding transfer from the hirer into the record's held-balance address.
// The caller must be the hirer: the hirer authorizes the deposit.
func newRecord(p CreateParams, caller Address, now time.Time) (Record, Transfer, TaskCreated, error) {
	if p.Amount == 0 {
		return Record{}, Transfer{}, TaskCreated{}, ErrZeroAmount
	}
	if len(p.TaskID) > MaxTaskIDLen {
		return Record{}, Transfer{}, TaskCreated{}, ErrTaskIDTooLong
	}
	if caller != p.Hirer {
		return Record{}, Transfer{}, TaskCreated{}, ErrUnauthorized
	}

	addr, disambiguator := DeriveAddress(p.TaskID)
	rec := Record{
		Address:       addr,
		Disambiguator: disambiguator,
		TaskID:        p.TaskID,
		Hirer:         p.Hirer,
		Agent:         p.Agent,
		Authority:     p.Authority,
		FeeWallet:     p.FeeWallet,
		Amount:        p.Amount,
		FeeBps:        PlatformFeeBps,
		Status:        StatusCreated,
		CreatedAt:     now,
	}
	deposit := Transfer{From: p.Hirer, To: addr, Amount: p.Amount}
	event := TaskCreated{TaskID: p.TaskID, Hirer: p.Hirer, Agent: p.Agent, Amount: p.Amount}
	return rec, deposit, event, nil
}

// complete moves a record to Completed and produces the fee-split payout.
// Only the fixed authority may complete; the supplied agent and fee wallet
// must match the record so a payout cannot be redirected.
func (r Record) complete(caller, agent, feeWallet Address) (Record, []Transfer, TaskCompleted, error) {
	if r.Status != StatusCreated && r.Status != StatusDisputed {
		return r, nil, TaskCompleted{}, ErrInvalidStatus
	}
	if caller != r.Authority {
		return r, nil, TaskCompleted{}, ErrUnauthorized
	}
	if agent != r.Agent {
		return r, nil, TaskCompleted{}, ErrWrongAgent
	}
	if feeWallet != r.FeeWallet {
		return r, nil, TaskCompleted{}, ErrWrongFeeWallet
	}

	fee, payout, err := splitFee(r.Amount, r.FeeBps)
	if err != nil {
		return r, nil, TaskCompleted{}, err
	}

	r.Status = StatusCompleted
	transfers := payoutTransfers(r, payout, fee)
	event := TaskCompleted{TaskID: r.TaskID, AgentPayout: payout, PlatformFee: fee}
	return r, transfers, event, nil
}

// cancel refunds the full deposit to the hirer. Only the hirer may cancel,
// and only while the record is still Created.
func (r Record) cancel(caller Address) (Record, []Transfer, TaskCancelled, error) {
	if r.Status != StatusCreated {
		return r, nil, TaskCancelled{}, ErrInvalidStatus
	}
	if caller != r.Hirer {
		return r, nil, TaskCancelled{}, ErrUnauthorized
	}

	r.Status = StatusCancelled
	transfers := []Transfer{{From: r.Address, To: r.Hirer, Amount: r.Amount}}
	event := TaskCancelled{TaskID: r.TaskID, Refund: r.Amount}
	return r, transfers, event, nil
}

// dispute opens a dispute. Either party may open one; no value moves.
// DisputedAt is set exactly here and never reset.
func (r Record) dispute(caller Address, now time.Time) (Record, TaskDisputed, error) {
	if r.Status != StatusCreated {
		return r, TaskDisputed{}, ErrInvalidStatus
	}
	if caller != r.Hirer && caller != r.Agent {
		return r, TaskDisputed{}, ErrUnauthorized
	}

	r.Status = StatusDisputed
	r.DisputedAt = &now
	event := TaskDisputed{TaskID: r.TaskID, DisputedBy: caller}
	return r, event, nil
}

// resolve performs the timeout auto-release: the same fee split as complete,
// available to any caller once the dispute timeout has elapsed.
func (r Record) resolve(agent, feeWallet Address, now time.Time) (Record, []Transfer, TaskResolved, error) {
	if r.Status != StatusDisputed {
		return r, nil, TaskResolved{}, ErrInvalidStatus
	}
	if agent != r.Agent {
		return r, nil, TaskResolved{}, ErrWrongAgent
	}
	if feeWallet != r.FeeWallet {
		return r, nil, TaskResolved{}, ErrWrongFeeWallet
	}
	if r.DisputedAt == nil || now.Before(r.DisputedAt.Add(DisputeTimeout)) {
		return r, nil, TaskResolved{}, ErrDisputeNotExpired
	}

	fee, payout, err := splitFee(r.Amount, r.FeeBps)
	if err != nil {
		return r, nil, TaskResolved{}, err
	}

	r.Status = StatusResolved
	transfers := payoutTransfers(r, payout, fee)
	event := TaskResolved{TaskID: r.TaskID, AgentPayout: payout, PlatformFee: fee}
	return r, transfers, event, nil
}

// payoutTransfers builds the fee-split transfers. Amounts under 10 units
// floor the fee to zero; moving nothing is a no-op, not a transfer, so the
// fee leg is omitted rather than handed to the ledger as a zero debit.
func payoutTransfers(r Record, payout, fee uint64) []Transfer {
	transfers := []Transfer{{From: r.Address, To: r.Agent, Amount: payout}}
	if fee > 0 {
		transfers = append(transfers, Transfer{From: r.Address, To: r.FeeWallet, Amount: fee})
	}
	return transfers
}
