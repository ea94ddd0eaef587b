/**
 * @description
 * This file implements the fee schedule: a pure mapping from a transfer amount to
 * the fee the pool retains on settlement. The policy carries a proportional rate in
 * basis points plus optional min/max clamps, and can exempt the expiry outcome from
 * fees entirely (expiry is not an operator decision, so some pools waive it).
 *
 * @notes
 * - Amounts are uint64 in the asset's smallest unit. The proportional computation
 *   widens to 128 bits via math/bits so it cannot overflow for any uint64 amount.
 * - The fee is always clamped to the transfer amount, so net = amount - fee never
 *   underflows.
 */

package domain

import "math/bits"

// FeeBpsDenominator is the basis-point scale: 10000 bps = 100%.
const FeeBpsDenominator = 10000

// FeePolicy holds the parameters the fee schedule evaluates. It is set at pool
// creation and mutable only through the privileged fee-policy update operation.
type FeePolicy struct {
	// FeeBps is the proportional rate in basis points (0..10000).
	FeeBps uint32 `json:"fee_bps"`
	// MinFee is the floor applied after the proportional computation. It is still
	// clamped to the transfer amount, so a tiny transfer is never charged more
	// than itself.
	MinFee uint64 `json:"min_fee"`
	// MaxFee caps the fee when non-zero. Zero means no cap.
	MaxFee uint64 `json:"max_fee"`
	// ExemptExpiry waives the fee when a transfer settles through the expiry
	// path rather than an operator decision.
	ExemptExpiry bool `json:"exempt_expiry"`
}

// Validate checks the policy parameters are internally consistent.
func (p FeePolicy) Validate() error {
	if p.FeeBps > FeeBpsDenominator {
		return ErrInvalidFeePolicy
	}
	if p.MaxFee > 0 && p.MinFee > p.MaxFee {
		return ErrInvalidFeePolicy
	}
	return nil
}

// ComputeFee returns the fee retained by the pool for a settlement of the given
// amount. Pure and deterministic; satisfies 0 <= fee <= amount for all inputs.
func (p FeePolicy) ComputeFee(amount uint64) uint64 {
	if amount == 0 {
		return 0
	}

	// amount * bps can exceed 64 bits, so compute with a 128-bit intermediate.
	// With bps <= 10000 the 128-bit quotient always fits back into 64 bits.
	hi, lo := bits.Mul64(amount, uint64(p.FeeBps))
	fee, _ := bits.Div64(hi, lo, FeeBpsDenominator)

	if fee < p.MinFee {
		fee = p.MinFee
	}
	if p.MaxFee > 0 && fee > p.MaxFee {
		fee = p.MaxFee
	}
	if fee > amount {
		fee = amount
	}
	return fee
}

// FeeForOutcome applies the policy for a specific settlement outcome. Accept and
// reject always pay the scheduled fee; expiry pays it unless the policy exempts it.
func (p FeePolicy) FeeForOutcome(amount uint64, outcome TransferStatus) uint64 {
	if outcome == TransferStatusExpired && p.ExemptExpiry {
		return 0
	}
	return p.ComputeFee(amount)
}
