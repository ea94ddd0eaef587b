/**
 * @description
 * This file contains the settlement engine for the service. The `Service` struct
 * orchestrates every transfer lifecycle operation, coordinating between the
 * database repository, the external asset ledger client, and the message broker.
 *
 * Key features:
 * - Implements pool creation and the privileged fee-policy update.
 * - Implements the escrow deposit path (create) and the three settlement paths
 *   (accept, reject, expire) with their fee and accounting rules.
 * - All settlement checks happen before any fund movement; the store callback
 *   structure makes each operation all-or-nothing.
 * - Publishes a settlement event to RabbitMQ for every resolved transfer.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/ledgerclient, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rebelronin/silkyway/internal/domain"
	"github.com/rebelronin/silkyway/internal/store"
	"github.com/rebelronin/silkyway/pkg/ledgerclient"
	"github.com/rebelronin/silkyway/pkg/rabbitmq"
)

var (
	// ErrInvalidPoolParams is returned when pool creation parameters are incomplete.
	ErrInvalidPoolParams = errors.New("invalid pool parameters")
	// ErrInvalidTransferParams is returned when transfer creation parameters are incomplete.
	ErrInvalidTransferParams = errors.New("invalid transfer parameters")
)

// Service provides the settlement engine: the operations that validate
// authorization and state, compute fees, instruct the external ledger, and
// mutate pool and transfer state atomically.
type Service struct {
	repo          store.Repository
	ledger        ledgerclient.Mover
	eventProducer rabbitmq.Publisher
	now           func() time.Time
}

// NewService creates a new settlement service instance.
func NewService(repo store.Repository, ledger ledgerclient.Mover, producer rabbitmq.Publisher) *Service {
	return &Service{
		repo:          repo,
		ledger:        ledger,
		eventProducer: producer,
		now:           time.Now,
	}
}

// CreatePoolParams are the privileged pool creation inputs.
type CreatePoolParams struct {
	Operator       string           `json:"operator"`
	Asset          string           `json:"asset"`
	CustodyAccount string           `json:"custody_account"`
	FeePolicy      domain.FeePolicy `json:"fee_policy"`
}

// CreateTransferParams are the per-transfer creation inputs. The sender is the
// authenticated caller, not a request field.
type CreateTransferParams struct {
	PoolID    uuid.UUID  `json:"pool_id"`
	Recipient string     `json:"recipient"`
	Amount    uint64     `json:"amount"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreatePool provisions a new custodial pool. Privileged: reachable only through
// the internal configuration surface, never by operators or senders.
func (s *Service) CreatePool(ctx context.Context, params CreatePoolParams) (*domain.Pool, error) {
	if strings.TrimSpace(params.Operator) == "" ||
		strings.TrimSpace(params.Asset) == "" ||
		strings.TrimSpace(params.CustodyAccount) == "" {
		return nil, ErrInvalidPoolParams
	}
	if err := params.FeePolicy.Validate(); err != nil {
		return nil, err
	}

	pool := &domain.Pool{
		ID:             uuid.New(),
		Operator:       strings.TrimSpace(params.Operator),
		Asset:          strings.TrimSpace(params.Asset),
		CustodyAccount: strings.TrimSpace(params.CustodyAccount),
		FeePolicy:      params.FeePolicy,
	}
	if err := s.repo.CreatePool(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	log.Printf("level=info component=service flow=pool_create msg=\"pool created\" pool_id=%s operator=%s asset=%s", pool.ID, pool.Operator, pool.Asset)
	return pool, nil
}

// UpdateFeePolicy replaces a pool's fee policy. Privileged configuration path,
// disjoint from the settlement paths, which never mutate the policy.
func (s *Service) UpdateFeePolicy(ctx context.Context, poolID uuid.UUID, policy domain.FeePolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdatePoolFeePolicy(ctx, poolID, policy); err != nil {
		return err
	}
	log.Printf("level=info component=service flow=fee_policy_update msg=\"fee policy updated\" pool_id=%s fee_bps=%d", poolID, policy.FeeBps)
	return nil
}

// GetPool returns a pool with its accounting counters.
func (s *Service) GetPool(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error) {
	return s.repo.FindPoolByID(ctx, poolID)
}

// GetTransfer returns one transfer record.
func (s *Service) GetTransfer(ctx context.Context, transferID uuid.UUID) (*domain.SecureTransfer, error) {
	return s.repo.FindTransferByID(ctx, transferID)
}

// ListPoolTransfers returns a page of a pool's transfers, newest first.
func (s *Service) ListPoolTransfers(ctx context.Context, poolID uuid.UUID, limit, offset int) ([]domain.SecureTransfer, error) {
	if _, err := s.repo.FindPoolByID(ctx, poolID); err != nil {
		return nil, err
	}
	return s.repo.ListTransfersByPool(ctx, poolID, limit, offset)
}

// CreateTransfer escrows the caller's deposit into pool custody and records the
// pending transfer. The ledger move into custody and the deposit counter update
// happen under the pool row lock, so the pool's accounting never drifts from the
// custody balance.
func (s *Service) CreateTransfer(ctx context.Context, caller string, params CreateTransferParams) (*domain.SecureTransfer, error) {
	sender := strings.TrimSpace(caller)
	recipient := strings.TrimSpace(params.Recipient)
	if sender == "" || recipient == "" || params.PoolID == uuid.Nil {
		return nil, ErrInvalidTransferParams
	}
	if params.ExpiresAt != nil && !params.ExpiresAt.After(s.now()) {
		return nil, ErrInvalidTransferParams
	}

	transfer := &domain.SecureTransfer{
		ID:        uuid.New(),
		PoolID:    params.PoolID,
		Sender:    sender,
		Recipient: recipient,
		Amount:    params.Amount,
		Status:    domain.TransferStatusPending,
		ExpiresAt: params.ExpiresAt,
	}

	err := s.repo.CreateTransferAtomic(ctx, transfer, func(ctx context.Context, pool *domain.Pool) error {
		if params.Amount > 0 {
			if err := s.ledger.Move(ctx, sender, pool.CustodyAccount, params.Amount, pool.Asset); err != nil {
				return err
			}
		}
		return pool.AddDeposit(params.Amount)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service flow=transfer_create msg=\"transfer escrowed\" transfer_id=%s pool_id=%s sender=%s amount=%d", transfer.ID, transfer.PoolID, transfer.Sender, transfer.Amount)
	return transfer, nil
}

// AcceptTransfer releases the escrowed funds to the recipient, minus the pool's
// fee. Operator only.
func (s *Service) AcceptTransfer(ctx context.Context, transferID uuid.UUID, caller string) (*domain.SecureTransfer, error) {
	return s.settleTransfer(ctx, transferID, settlement{
		caller:          caller,
		outcome:         domain.TransferStatusAccepted,
		requireOperator: true,
	})
}

// RejectTransfer returns the escrowed funds to the sender, minus the pool's fee,
// recording the operator's reason. Operator only.
func (s *Service) RejectTransfer(ctx context.Context, transferID uuid.UUID, caller string, reasonCode uint8, reasonMessage string) (*domain.SecureTransfer, error) {
	return s.settleTransfer(ctx, transferID, settlement{
		caller:          caller,
		outcome:         domain.TransferStatusRejected,
		requireOperator: true,
		reasonCode:      reasonCode,
		reasonMessage:   reasonMessage,
	})
}

// ExpireTransfer settles a transfer whose deadline has passed through the refund
// path. Anyone may trigger it; no operator authorization is required.
func (s *Service) ExpireTransfer(ctx context.Context, transferID uuid.UUID, caller string) (*domain.SecureTransfer, error) {
	return s.settleTransfer(ctx, transferID, settlement{
		caller:  caller,
		outcome: domain.TransferStatusExpired,
	})
}

// settlement carries the per-outcome parameters of one settlement attempt.
type settlement struct {
	caller          string
	outcome         domain.TransferStatus
	requireOperator bool
	reasonCode      uint8
	reasonMessage   string
}

// settleTransfer drives the shared state machine for accept, reject and expire.
// Check order is fixed: authorization, active state, memo length, fee
// computation, ledger move, counter updates, status mutation, event emission.
// Everything up to and including the status mutation runs inside the store's
// row-locked transaction; a failure anywhere aborts with no state change.
func (s *Service) settleTransfer(ctx context.Context, transferID uuid.UUID, req settlement) (*domain.SecureTransfer, error) {
	pool, transfer, err := s.repo.SettleTransferAtomic(ctx, transferID, func(ctx context.Context, pool *domain.Pool, transfer *domain.SecureTransfer) error {
		if req.requireOperator && req.caller != pool.Operator {
			return domain.ErrUnauthorized
		}
		if err := transfer.ValidateActive(); err != nil {
			return err
		}
		if req.outcome == domain.TransferStatusRejected {
			if err := domain.ValidateReasonMessage(req.reasonMessage); err != nil {
				return err
			}
		}
		if req.outcome == domain.TransferStatusExpired && !transfer.Expirable(s.now()) {
			return domain.ErrNotExpired
		}

		fee := pool.CalculateTransferFee(transfer.Amount, req.outcome)
		net := transfer.Amount - fee

		// Accepted funds go to the recipient; reject and expire refund the sender.
		destination := transfer.Recipient
		if req.outcome != domain.TransferStatusAccepted {
			destination = transfer.Sender
		}
		if net > 0 {
			if err := s.ledger.Move(ctx, pool.CustodyAccount, destination, net, pool.Asset); err != nil {
				return err
			}
		}

		// Withdrawal accounting uses the original amount: the full escrow is
		// released, with the fee portion retained in custody as pool revenue.
		if err := pool.AddWithdrawal(transfer.Amount); err != nil {
			return err
		}
		if fee > 0 {
			if err := pool.AddCollectedFees(fee); err != nil {
				return err
			}
		}
		if err := pool.IncrementTransfersResolved(); err != nil {
			return err
		}

		resolvedAt := s.now()
		switch req.outcome {
		case domain.TransferStatusAccepted:
			return transfer.MarkAsAccepted(fee, net, resolvedAt)
		case domain.TransferStatusRejected:
			return transfer.MarkAsRejected(fee, net, req.reasonCode, req.reasonMessage, resolvedAt)
		case domain.TransferStatusExpired:
			return transfer.MarkAsExpired(fee, net, resolvedAt)
		default:
			return fmt.Errorf("unsupported settlement outcome %q", req.outcome)
		}
	})
	if err != nil {
		return nil, err
	}

	s.publishSettlementEvent(ctx, pool, transfer)

	log.Printf("level=info component=service flow=settlement msg=\"transfer settled\" transfer_id=%s pool_id=%s outcome=%s amount=%d fee=%d net=%d",
		transfer.ID, pool.ID, transfer.Status, transfer.Amount, transfer.Fee, transfer.NetAmount)
	return transfer, nil
}

// publishSettlementEvent emits the settlement event for external observers. The
// settlement itself has already committed; a broker failure is logged, never
// propagated, so observers may need to reconcile from the transfer records.
func (s *Service) publishSettlementEvent(ctx context.Context, pool *domain.Pool, transfer *domain.SecureTransfer) {
	if s.eventProducer == nil {
		return
	}

	event := domain.SettlementEvent{
		TransferID:    transfer.ID,
		PoolID:        pool.ID,
		Sender:        transfer.Sender,
		Recipient:     transfer.Recipient,
		Amount:        transfer.Amount,
		Fee:           transfer.Fee,
		NetAmount:     transfer.NetAmount,
		Outcome:       transfer.Status,
		ReasonCode:    transfer.ReasonCode,
		ReasonMessage: transfer.ReasonMessage,
		OccurredAt:    s.now().UTC(),
	}

	routingKey := "transfer." + string(transfer.Status)
	if err := s.eventProducer.Publish(ctx, rabbitmq.SettlementExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=service flow=settlement msg=\"settlement event publish failed\" transfer_id=%s routing_key=%s err=%v", transfer.ID, routingKey, err)
	}
}
