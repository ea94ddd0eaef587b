/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains the SQL for the `pools` and `secure_transfers` tables, plus the
 * row-locked transaction helpers that make transfer creation and settlement
 * all-or-nothing.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 *
 * @notes
 * - Lock ordering is always transfer row first, then pool row, so concurrent
 *   settlements within one pool cannot deadlock.
 * - The settle/deposit callbacks run while the locks are held; the external
 *   ledger move happens inside them, so a committed settlement always pairs
 *   with exactly one successful ledger move.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rebelronin/silkyway/internal/domain"
)

var (
	ErrPoolNotFound     = errors.New("pool not found")
	ErrPoolExists       = errors.New("pool already exists")
	ErrTransferNotFound = errors.New("transfer not found")
)

const poolColumns = `id, operator, asset, custody_account, fee_bps, min_fee, max_fee, exempt_expiry,
	total_deposited, total_withdrawn, total_fees_collected, transfers_resolved, created_at, updated_at`

const transferColumns = `id, pool_id, sender, recipient, amount, status, fee, net_amount,
	reason_code, reason_message, created_at, expires_at, resolved_at, archived_at`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreatePool persists a newly configured pool.
func (r *PostgresRepository) CreatePool(ctx context.Context, pool *domain.Pool) error {
	query := `
		INSERT INTO pools (
			id, operator, asset, custody_account, fee_bps, min_fee, max_fee, exempt_expiry,
			total_deposited, total_withdrawn, total_fees_collected, transfers_resolved,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, 0, 0, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		pool.ID,
		pool.Operator,
		pool.Asset,
		pool.CustodyAccount,
		pool.FeePolicy.FeeBps,
		pool.FeePolicy.MinFee,
		pool.FeePolicy.MaxFee,
		pool.FeePolicy.ExemptExpiry,
	).Scan(&pool.CreatedAt, &pool.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPoolExists
		}
		return err
	}
	return nil
}

// FindPoolByID retrieves a pool with its accounting counters.
func (r *PostgresRepository) FindPoolByID(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error) {
	return scanPool(r.db.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = $1`, poolID))
}

// UpdatePoolFeePolicy replaces the fee policy parameters. This is the privileged
// configuration path; the settle paths never touch fee_bps/min_fee/max_fee.
func (r *PostgresRepository) UpdatePoolFeePolicy(ctx context.Context, poolID uuid.UUID, policy domain.FeePolicy) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE pools
		SET fee_bps = $2, min_fee = $3, max_fee = $4, exempt_expiry = $5, updated_at = NOW()
		WHERE id = $1
	`, poolID, policy.FeeBps, policy.MinFee, policy.MaxFee, policy.ExemptExpiry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPoolNotFound
	}
	return nil
}

// FindTransferByID retrieves one transfer record.
func (r *PostgresRepository) FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.SecureTransfer, error) {
	return scanTransfer(r.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM secure_transfers WHERE id = $1`, transferID))
}

// ListTransfersByPool returns a page of transfers for one pool, newest first.
func (r *PostgresRepository) ListTransfersByPool(ctx context.Context, poolID uuid.UUID, limit, offset int) ([]domain.SecureTransfer, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+transferColumns+`
		FROM secure_transfers
		WHERE pool_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, poolID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransfers(rows)
}

// ListExpiredPendingTransfers returns pending transfers whose deadline has passed,
// oldest deadline first, for the expiry sweeper.
func (r *PostgresRepository) ListExpiredPendingTransfers(ctx context.Context, now time.Time, limit int) ([]domain.SecureTransfer, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+transferColumns+`
		FROM secure_transfers
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransfers(rows)
}

// CreateTransferAtomic inserts the pending transfer and applies the escrow
// deposit to the pool counters in one transaction. The deposit callback runs
// while the pool row is locked, so concurrent creations on one pool serialize.
func (r *PostgresRepository) CreateTransferAtomic(ctx context.Context, transfer *domain.SecureTransfer, deposit DepositFunc) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	pool, err := lockPool(ctx, tx, transfer.PoolID)
	if err != nil {
		return err
	}

	if err := deposit(ctx, pool); err != nil {
		return err
	}

	if err := persistPoolCounters(ctx, tx, pool); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO secure_transfers (
			id, pool_id, sender, recipient, amount, status, fee, net_amount,
			created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, NOW(), $7)
		RETURNING created_at
	`,
		transfer.ID,
		transfer.PoolID,
		transfer.Sender,
		transfer.Recipient,
		transfer.Amount,
		transfer.Status,
		transfer.ExpiresAt,
	).Scan(&transfer.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SettleTransferAtomic locks the transfer and pool rows, runs the settle
// callback against the hydrated aggregates, and persists the mutated state.
// Returns the committed aggregates for event emission and API responses.
func (r *PostgresRepository) SettleTransferAtomic(ctx context.Context, transferID uuid.UUID, settle SettleFunc) (*domain.Pool, *domain.SecureTransfer, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	transfer, err := scanTransfer(tx.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM secure_transfers WHERE id = $1 FOR UPDATE`, transferID))
	if err != nil {
		return nil, nil, err
	}

	pool, err := lockPool(ctx, tx, transfer.PoolID)
	if err != nil {
		return nil, nil, err
	}

	if err := settle(ctx, pool, transfer); err != nil {
		return nil, nil, err
	}

	if err := persistPoolCounters(ctx, tx, pool); err != nil {
		return nil, nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE secure_transfers
		SET status = $2, fee = $3, net_amount = $4, reason_code = $5, reason_message = $6, resolved_at = $7
		WHERE id = $1
	`,
		transfer.ID,
		transfer.Status,
		transfer.Fee,
		transfer.NetAmount,
		transfer.ReasonCode,
		transfer.ReasonMessage,
		transfer.ResolvedAt,
	)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return pool, transfer, nil
}

// ArchiveResolvedTransfers stamps terminal transfers resolved before the cutoff
// as archived. The records stay queryable for audit; pruning them is a separate
// operational concern.
func (r *PostgresRepository) ArchiveResolvedTransfers(ctx context.Context, resolvedBefore time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 100
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE secure_transfers
		SET archived_at = NOW()
		WHERE id IN (
			SELECT id FROM secure_transfers
			WHERE status <> 'pending' AND archived_at IS NULL AND resolved_at <= $1
			ORDER BY resolved_at ASC
			LIMIT $2
		)
	`, resolvedBefore, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func lockPool(ctx context.Context, tx pgx.Tx, poolID uuid.UUID) (*domain.Pool, error) {
	return scanPool(tx.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = $1 FOR UPDATE`, poolID))
}

func persistPoolCounters(ctx context.Context, tx pgx.Tx, pool *domain.Pool) error {
	_, err := tx.Exec(ctx, `
		UPDATE pools
		SET total_deposited = $2, total_withdrawn = $3, total_fees_collected = $4,
			transfers_resolved = $5, updated_at = NOW()
		WHERE id = $1
	`,
		pool.ID,
		pool.TotalDeposited,
		pool.TotalWithdrawn,
		pool.TotalFeesCollected,
		pool.TransfersResolved,
	)
	return err
}

func scanPool(row pgx.Row) (*domain.Pool, error) {
	var pool domain.Pool
	err := row.Scan(
		&pool.ID,
		&pool.Operator,
		&pool.Asset,
		&pool.CustodyAccount,
		&pool.FeePolicy.FeeBps,
		&pool.FeePolicy.MinFee,
		&pool.FeePolicy.MaxFee,
		&pool.FeePolicy.ExemptExpiry,
		&pool.TotalDeposited,
		&pool.TotalWithdrawn,
		&pool.TotalFeesCollected,
		&pool.TransfersResolved,
		&pool.CreatedAt,
		&pool.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}
	return &pool, nil
}

func scanTransfer(row pgx.Row) (*domain.SecureTransfer, error) {
	var transfer domain.SecureTransfer
	err := row.Scan(
		&transfer.ID,
		&transfer.PoolID,
		&transfer.Sender,
		&transfer.Recipient,
		&transfer.Amount,
		&transfer.Status,
		&transfer.Fee,
		&transfer.NetAmount,
		&transfer.ReasonCode,
		&transfer.ReasonMessage,
		&transfer.CreatedAt,
		&transfer.ExpiresAt,
		&transfer.ResolvedAt,
		&transfer.ArchivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

func collectTransfers(rows pgx.Rows) ([]domain.SecureTransfer, error) {
	var transfers []domain.SecureTransfer
	for rows.Next() {
		var transfer domain.SecureTransfer
		if err := rows.Scan(
			&transfer.ID,
			&transfer.PoolID,
			&transfer.Sender,
			&transfer.Recipient,
			&transfer.Amount,
			&transfer.Status,
			&transfer.Fee,
			&transfer.NetAmount,
			&transfer.ReasonCode,
			&transfer.ReasonMessage,
			&transfer.CreatedAt,
			&transfer.ExpiresAt,
			&transfer.ResolvedAt,
			&transfer.ArchivedAt,
		); err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	return transfers, rows.Err()
}
