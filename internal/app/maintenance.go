/**
 * @description
 * This file contains the background maintenance work for the settlement engine:
 * the expiry sweeper that pushes overdue pending transfers through the expire
 * path, and the archival pass that stamps long-settled records so they become
 * eligible for pruning. Both are decoupled from the settlement logic itself —
 * the sweeper goes through the exact same ExpireTransfer path an external
 * caller would use.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/rebelronin/silkyway/internal/domain"
	"github.com/rebelronin/silkyway/internal/store"
)

const (
	// SweeperCaller identifies expiries triggered by the background sweeper in
	// logs and events. Expire needs no authorization, so any marker works.
	SweeperCaller = "system:expiry-sweeper"

	defaultSweepBatchSize   = 100
	defaultArchiveBatchSize = 200
)

// SweepExpiredTransfers expires every pending transfer whose deadline has
// passed, one settlement at a time. Returns how many transfers were expired.
// Individual failures are logged and skipped so one stuck transfer cannot stall
// the sweep; a concurrent operator settlement losing candidates to us (or us to
// them) is expected and surfaces as ErrInactiveTransfer, which is not a failure.
func (s *Service) SweepExpiredTransfers(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultSweepBatchSize
	}

	candidates, err := s.repo.ListExpiredPendingTransfers(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		_, err := s.ExpireTransfer(ctx, candidate.ID, SweeperCaller)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, domain.ErrInactiveTransfer), errors.Is(err, store.ErrTransferNotFound):
			// Lost the race to an operator settlement; nothing to do.
		default:
			log.Printf("level=warn component=service flow=expiry_sweep msg=\"expire failed\" transfer_id=%s err=%v", candidate.ID, err)
		}
	}
	return expired, nil
}

// ArchiveSettledTransfers stamps terminal transfers settled longer ago than the
// retention window as archived.
func (s *Service) ArchiveSettledTransfers(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	return s.repo.ArchiveResolvedTransfers(ctx, cutoff, defaultArchiveBatchSize)
}

// StartMaintenanceLoop runs the expiry sweep and archival pass on a fixed
// interval until the context is cancelled. Call in its own goroutine.
func (s *Service) StartMaintenanceLoop(ctx context.Context, interval, archiveRetention time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("level=info component=service flow=maintenance msg=\"maintenance loop started\" interval=%s archive_retention=%s", interval, archiveRetention)

	for {
		select {
		case <-ctx.Done():
			log.Println("level=info component=service flow=maintenance msg=\"maintenance loop stopped\"")
			return
		case <-ticker.C:
			expired, err := s.SweepExpiredTransfers(ctx, defaultSweepBatchSize)
			if err != nil {
				log.Printf("level=warn component=service flow=maintenance msg=\"expiry sweep failed\" err=%v", err)
			} else if expired > 0 {
				log.Printf("level=info component=service flow=maintenance msg=\"expired overdue transfers\" count=%d", expired)
			}

			if archiveRetention > 0 {
				archived, err := s.ArchiveSettledTransfers(ctx, archiveRetention)
				if err != nil {
					log.Printf("level=warn component=service flow=maintenance msg=\"archival pass failed\" err=%v", err)
				} else if archived > 0 {
					log.Printf("level=info component=service flow=maintenance msg=\"archived settled transfers\" count=%d", archived)
				}
			}
		}
	}
}
