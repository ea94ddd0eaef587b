package domain

import (
	"time"

	"github.com/google/uuid"
)

// SettlementEvent is the message published for every resolved transfer, consumed
// by external observers and indexers.
type SettlementEvent struct {
	TransferID    uuid.UUID      `json:"transfer_id"`
	PoolID        uuid.UUID      `json:"pool_id"`
	Sender        string         `json:"sender"`
	Recipient     string         `json:"recipient"`
	Amount        uint64         `json:"amount"`
	Fee           uint64         `json:"fee"`
	NetAmount     uint64         `json:"net_amount"`
	Outcome       TransferStatus `json:"outcome"`
	ReasonCode    *uint8         `json:"reason_code,omitempty"`
	ReasonMessage *string        `json:"reason_message,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}
