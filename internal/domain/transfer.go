/**
 * @description
 * This file defines the SecureTransfer record: one escrowed transfer and its
 * lifecycle. A transfer is created pending when the sender's deposit lands in pool
 * custody, and is resolved exactly once by whichever settlement operation first
 * succeeds (operator accept, operator reject, or deadline expiry).
 *
 * @notes
 * - Status transitions are one-way: pending -> accepted | rejected | expired.
 *   The mark methods are the only writers of Status and each re-asserts the
 *   pending precondition, so a double settlement can never slip through even if
 *   a caller skips ValidateActive.
 * - Fee, NetAmount, ReasonCode and ReasonMessage are recorded at resolution time
 *   so the record stays a complete audit trail after archival.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferStatus is the lifecycle state of a SecureTransfer.
type TransferStatus string

const (
	TransferStatusPending  TransferStatus = "pending"
	TransferStatusAccepted TransferStatus = "accepted"
	TransferStatusRejected TransferStatus = "rejected"
	TransferStatusExpired  TransferStatus = "expired"
)

// MaxReasonMessageLength bounds the free-text reason attached to a rejection.
const MaxReasonMessageLength = 200

// ReasonCodeExpired is the fixed reason code carried by expiry settlements.
const ReasonCodeExpired uint8 = 255

// SecureTransfer represents one pending-or-resolved escrowed transfer. It maps
// directly to the `secure_transfers` table.
type SecureTransfer struct {
	ID            uuid.UUID      `json:"id"`
	PoolID        uuid.UUID      `json:"pool_id"`
	Sender        string         `json:"sender"`
	Recipient     string         `json:"recipient"`
	Amount        uint64         `json:"amount"`
	Status        TransferStatus `json:"status"`
	Fee           uint64         `json:"fee"`
	NetAmount     uint64         `json:"net_amount"`
	ReasonCode    *uint8         `json:"reason_code,omitempty"`
	ReasonMessage *string        `json:"reason_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	ArchivedAt    *time.Time     `json:"-"`
}

// ValidateActive fails unless the transfer is still pending. Every settlement
// operation calls this before any fund movement or counter mutation.
func (t *SecureTransfer) ValidateActive() error {
	if t.Status != TransferStatusPending {
		return ErrInactiveTransfer
	}
	return nil
}

// ValidateReasonMessage enforces the rejection memo bound before any mutation.
func ValidateReasonMessage(message string) error {
	if len(message) > MaxReasonMessageLength {
		return ErrInvalidMemoLength
	}
	return nil
}

// Expirable reports whether the transfer can be expired at the given instant.
func (t *SecureTransfer) Expirable(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// MarkAsAccepted transitions pending -> accepted.
func (t *SecureTransfer) MarkAsAccepted(fee, net uint64, resolvedAt time.Time) error {
	return t.resolve(TransferStatusAccepted, fee, net, resolvedAt)
}

// MarkAsRejected transitions pending -> rejected, recording the operator's reason.
func (t *SecureTransfer) MarkAsRejected(fee, net uint64, reasonCode uint8, reasonMessage string, resolvedAt time.Time) error {
	if err := t.resolve(TransferStatusRejected, fee, net, resolvedAt); err != nil {
		return err
	}
	t.ReasonCode = &reasonCode
	t.ReasonMessage = &reasonMessage
	return nil
}

// MarkAsExpired transitions pending -> expired with the fixed expiry reason code.
func (t *SecureTransfer) MarkAsExpired(fee, net uint64, resolvedAt time.Time) error {
	if err := t.resolve(TransferStatusExpired, fee, net, resolvedAt); err != nil {
		return err
	}
	code := ReasonCodeExpired
	t.ReasonCode = &code
	return nil
}

func (t *SecureTransfer) resolve(status TransferStatus, fee, net uint64, resolvedAt time.Time) error {
	if err := t.ValidateActive(); err != nil {
		return err
	}
	t.Status = status
	t.Fee = fee
	t.NetAmount = net
	at := resolvedAt
	t.ResolvedAt = &at
	return nil
}
