/**
 * @description
 * This file defines the sentinel errors for the settlement core. Every failure a
 * settlement operation can produce surfaces as one of these distinguishable kinds,
 * so callers (HTTP handlers, the expiry sweeper) can map them to responses without
 * string matching.
 *
 * @notes
 * - All checks that raise these errors run before any fund movement or counter
 *   mutation; there is no partial-success state to clean up after.
 */

package domain

import "errors"

var (
	// ErrUnauthorized is returned when the caller of accept/reject is not the
	// pool's designated operator.
	ErrUnauthorized = errors.New("caller is not the pool operator")

	// ErrInactiveTransfer is returned when a settlement operation targets a
	// transfer that is no longer pending. The loser of a concurrent settlement
	// race observes this, never a silent double-settle.
	ErrInactiveTransfer = errors.New("transfer is not pending")

	// ErrInvalidMemoLength is returned when a rejection reason message exceeds
	// the bound, before any state is touched.
	ErrInvalidMemoLength = errors.New("reason message exceeds maximum length")

	// ErrArithmeticOverflow is returned when a pool counter increment would wrap
	// a 64-bit counter or break the pool accounting invariant.
	ErrArithmeticOverflow = errors.New("pool counter arithmetic overflow")

	// ErrNotExpired is returned when expiry is triggered before the transfer's
	// deadline, or on a transfer that has no deadline at all.
	ErrNotExpired = errors.New("transfer has not reached its expiry deadline")

	// ErrInvalidFeePolicy is returned when a fee policy fails validation at pool
	// creation or fee-policy update time.
	ErrInvalidFeePolicy = errors.New("invalid fee policy")
)
