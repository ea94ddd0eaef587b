/**
 * @description
 * This file defines the `Repository` interface: the contract for all persistence
 * the settlement engine needs. Keeping the interface here decouples the business
 * logic from PostgreSQL and lets the engine tests run against in-memory stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For identifier handling.
 * - internal/domain: For the settlement domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rebelronin/silkyway/internal/domain"
)

// DepositFunc runs inside the pool row lock during transfer creation. It receives
// the locked pool aggregate, performs the external ledger move into custody, and
// applies the deposit to the pool counters. Any error aborts the whole creation.
type DepositFunc func(ctx context.Context, pool *domain.Pool) error

// SettleFunc runs inside the row locks during settlement. It receives the locked
// transfer and its pool, performs validation, fee computation, the external ledger
// move, and the domain mutations. Any error aborts the whole settlement with no
// state change.
type SettleFunc func(ctx context.Context, pool *domain.Pool, transfer *domain.SecureTransfer) error

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Pool methods
	CreatePool(ctx context.Context, pool *domain.Pool) error
	FindPoolByID(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error)
	UpdatePoolFeePolicy(ctx context.Context, poolID uuid.UUID, policy domain.FeePolicy) error

	// Transfer methods
	FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.SecureTransfer, error)
	ListTransfersByPool(ctx context.Context, poolID uuid.UUID, limit, offset int) ([]domain.SecureTransfer, error)
	ListExpiredPendingTransfers(ctx context.Context, now time.Time, limit int) ([]domain.SecureTransfer, error)

	// CreateTransferAtomic inserts the pending transfer and applies the deposit
	// to the pool counters in one transaction, holding the pool row lock across
	// the deposit callback.
	CreateTransferAtomic(ctx context.Context, transfer *domain.SecureTransfer, deposit DepositFunc) error

	// SettleTransferAtomic serializes settlement per transfer: it locks the
	// transfer row and its pool row, hands the hydrated aggregates to the settle
	// callback, and persists the mutated state only if the callback succeeds.
	// A concurrent settlement loser observes the committed terminal status and
	// fails inside the callback with ErrInactiveTransfer.
	SettleTransferAtomic(ctx context.Context, transferID uuid.UUID, settle SettleFunc) (*domain.Pool, *domain.SecureTransfer, error)

	// ArchiveResolvedTransfers stamps terminal transfers older than the cutoff
	// as archived, returning how many records were touched.
	ArchiveResolvedTransfers(ctx context.Context, resolvedBefore time.Time, limit int) (int64, error)
}
