package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/commitlabs/commitment-service/internal/auth"
	"github.com/commitlabs/commitment-service/internal/observability/metrics"
	"github.com/commitlabs/commitment-service/internal/types"
	"github.com/commitlabs/commitment-service/internal/utils/poller"
	"github.com/rs/zerolog/log"
)

// StartExpiryChecker begins the background settlement poller. Each pass
// settles Active commitments whose expiry timestamp has passed,
// deactivating their tokens in lockstep.
func (s *Service) StartExpiryChecker(ctx context.Context) {
	expiryCheckerPoller := poller.NewPoller(
		s.cfg.Poller.ExpiryCheckerPollingInterval,
		s.checkExpiry,
	)
	go expiryCheckerPoller.Start(ctx)
}

func (s *Service) checkExpiry(ctx context.Context) error {
	// background settlement runs as the configured admin principal
	ctx = auth.WithCaller(ctx, s.cfg.Service.AdminPrincipal)

	expired, err := s.Ledger.FindExpired(ctx, s.cfg.Poller.ExpiredCommitmentsLimit)
	if err != nil {
		return fmt.Errorf("failed to find expired commitments: %w", err)
	}
	metrics.RecordExpiredCommitments(len(expired))

	for _, commitment := range expired {
		log.Debug().
			Str("commitment_id", commitment.ID).
			Stringer("status", commitment.Status).
			Int64("expires_at", commitment.ExpiresAt).
			Msg("settling expired commitment")

		if err := s.Ledger.Settle(ctx, commitment.ID); err != nil {
			// a concurrent settle or early exit already finalized it
			if errors.Is(err, types.ErrAlreadySettled) || errors.Is(err, types.ErrTerminalState) {
				continue
			}
			return fmt.Errorf("failed to settle commitment %s: %w", commitment.ID, err)
		}
	}

	return nil
}
