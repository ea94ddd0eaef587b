/**
 * @description
 * This file defines the Pool aggregate: the custodial ledger for one asset,
 * governed by one operator and one fee policy. The pool carries the running
 * accounting counters that every settlement operation mutates, and exposes only
 * invariant-preserving mutators — there are no raw counter setters.
 *
 * @notes
 * - Counters are uint64 and monotonically non-decreasing. All increments use
 *   checked arithmetic and fail with ErrArithmeticOverflow instead of wrapping.
 * - Invariants: TotalWithdrawn <= TotalDeposited (escrow can only release what
 *   was deposited) and TotalFeesCollected <= TotalWithdrawn (fees are the
 *   portion of released escrow the pool retained; the fee never leaves
 *   custody). The custody account must therefore hold TotalDeposited -
 *   TotalWithdrawn + TotalFeesCollected: the still-escrowed balance plus the
 *   retained fees.
 * - Pool performs no authorization checks. Its mutators are only reachable from
 *   settlement operations that have already validated the caller and the
 *   transfer state.
 */

package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Pool is the aggregate custodial ledger. It maps directly to the `pools` table.
type Pool struct {
	ID       uuid.UUID `json:"id"`
	Operator string    `json:"operator"`
	Asset    string    `json:"asset"`
	// CustodyAccount is the external ledger account holding the pool's funds.
	CustodyAccount     string    `json:"custody_account"`
	FeePolicy          FeePolicy `json:"fee_policy"`
	TotalDeposited     uint64    `json:"total_deposited"`
	TotalWithdrawn     uint64    `json:"total_withdrawn"`
	TotalFeesCollected uint64    `json:"total_fees_collected"`
	TransfersResolved  uint64    `json:"transfers_resolved"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// EscrowedBalance is the amount still held against pending transfers:
// everything deposited whose escrow has not yet been released.
func (p *Pool) EscrowedBalance() uint64 {
	return p.TotalDeposited - p.TotalWithdrawn
}

// CustodyBalance is what the external custody account must hold: the escrowed
// balance plus the fees the pool retained on settlement.
func (p *Pool) CustodyBalance() uint64 {
	return p.EscrowedBalance() + p.TotalFeesCollected
}

// CalculateTransferFee delegates to the pool's fee policy for the given outcome.
func (p *Pool) CalculateTransferFee(amount uint64, outcome TransferStatus) uint64 {
	return p.FeePolicy.FeeForOutcome(amount, outcome)
}

// AddDeposit records an escrow deposit into pool custody.
func (p *Pool) AddDeposit(amount uint64) error {
	sum, err := checkedAdd(p.TotalDeposited, amount)
	if err != nil {
		return err
	}
	p.TotalDeposited = sum
	return nil
}

// AddWithdrawal records the release of an escrowed amount (the original transfer
// amount, regardless of the fee split). Fails if the increment would overflow
// the counter or release more than was ever deposited.
func (p *Pool) AddWithdrawal(amount uint64) error {
	sum, err := checkedAdd(p.TotalWithdrawn, amount)
	if err != nil {
		return err
	}
	if sum > p.TotalDeposited {
		return ErrArithmeticOverflow
	}
	p.TotalWithdrawn = sum
	return nil
}

// AddCollectedFees records fees retained by the pool out of released escrow.
// Callers skip this entirely when the fee is zero so a fee-of-zero settlement
// emits no spurious accounting.
func (p *Pool) AddCollectedFees(amount uint64) error {
	sum, err := checkedAdd(p.TotalFeesCollected, amount)
	if err != nil {
		return err
	}
	if sum > p.TotalWithdrawn {
		return ErrArithmeticOverflow
	}
	p.TotalFeesCollected = sum
	return nil
}

// IncrementTransfersResolved bumps the resolved counter. Overflow here is
// practically unreachable but checked all the same.
func (p *Pool) IncrementTransfersResolved() error {
	sum, err := checkedAdd(p.TransfersResolved, 1)
	if err != nil {
		return err
	}
	p.TransfersResolved = sum
	return nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}
