/**
 * @description
 * This package provides the client for the external asset ledger: the trusted
 * component that performs atomic, authenticated balance movements on request. The
 * settlement engine depends on this succeed-or-fail-cleanly contract and never
 * re-implements balance transfer itself.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 *
 * @notes
 * - A ledger move either fully succeeds or the whole settlement operation aborts;
 *   the ledger enforces that the calling service is permitted to move funds out of
 *   the named custody account.
 * - Non-2xx responses surface as *LedgerError so callers can propagate the
 *   ledger's own failure taxonomy unchanged.
 */
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Mover is the capability the settlement engine depends on: move `amount` of
// `asset` between two ledger accounts, atomically. The ledger authenticates
// that the calling service may move funds out of the source account.
type Mover interface {
	Move(ctx context.Context, from, to string, amount uint64, asset string) error
}

// Client is an HTTP client for the asset ledger API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new asset ledger client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// MoveRequest is the payload for the ledger's movement endpoint.
type MoveRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Asset  string `json:"asset"`
			Amount uint64 `json:"amount"`
		} `json:"attributes"`
		Relationships struct {
			SourceAccount struct {
				ID string `json:"id"`
			} `json:"sourceAccount"`
			DestinationAccount struct {
				ID string `json:"id"`
			} `json:"destinationAccount"`
		} `json:"relationships"`
	} `json:"data"`
}

// MoveResponse is the expected response from the ledger's movement endpoint.
type MoveResponse struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			Status string `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
}

// LedgerError represents a failure reported by the ledger API. It propagates to
// the settlement caller unchanged.
type LedgerError struct {
	StatusCode int
	Errors     []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e *LedgerError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("ledger error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return fmt.Sprintf("ledger error: status %d", e.StatusCode)
}

// Move instructs the ledger to transfer `amount` of `asset` from the source
// account to the destination account.
func (c *Client) Move(ctx context.Context, from, to string, amount uint64, asset string) error {
	payload := MoveRequest{}
	payload.Data.Type = "BalanceMovement"
	payload.Data.Attributes.Asset = asset
	payload.Data.Attributes.Amount = amount
	payload.Data.Relationships.SourceAccount.ID = from
	payload.Data.Relationships.DestinationAccount.ID = to

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal movement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/movements", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create movement request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ledger-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute movement request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read movement response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ledgerErr := &LedgerError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, ledgerErr); err != nil {
			log.Printf("level=warn component=ledger_client op=move status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return ledgerErr
		}
		log.Printf("level=warn component=ledger_client op=move status=%d err=%q", resp.StatusCode, ledgerErr.Error())
		return ledgerErr
	}

	var moveResp MoveResponse
	if err := json.Unmarshal(bodyBytes, &moveResp); err != nil {
		return fmt.Errorf("failed to decode movement response: %w", err)
	}
	if moveResp.Data.Attributes.Status != "" && moveResp.Data.Attributes.Status != "completed" {
		// The ledger contract is atomic: anything other than completed is a failure.
		return &LedgerError{StatusCode: resp.StatusCode, Errors: []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}{{Title: "movement_not_completed", Detail: moveResp.Data.Attributes.Status}}}
	}

	return nil
}
