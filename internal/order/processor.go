package order

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type Processor struct {
	db           *Database
	processDelay time.Duration // Time between payout processing attempts
}

func NewProcessor(db *Database, processDelay time.Duration) *Processor {
	if processDelay <= 0 {
		processDelay = 5 * time.Minute
	}
	return &Processor{
		db:           db,
		processDelay: processDelay,
	}
}

// Start begins the payout processing loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "payout_processor").Logger()
	logger.Info().Msg("starting payout processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down payout processor")
			return
		case <-ticker.C:
			if err := p.processPendingPayouts(); err != nil {
				logger.Error().Err(err).Msg("failed to process pending payouts")
			}
		}
	}
}

func (p *Processor) processPendingPayouts() error {
	logger := log.With().Str("component", "payout_processor").Logger()

	payouts, err := p.db.ListPendingPayouts()
	if err != nil {
		return err
	}
	if len(payouts) == 0 {
		return nil
	}

	logger.Info().Int("pending_count", len(payouts)).Msg("processing pending payouts")

	for _, payout := range payouts {
		claimed, err := p.db.ClaimPayout(payout.PayoutID)
		if err != nil {
			logger.Error().
				Err(err).
				Str("payout_id", payout.PayoutID).
				Msg("failed to claim payout")
			continue
		}
		if !claimed {
			// Another worker got there first
			continue
		}

		status := PayoutCompleted
		if !p.disburse(&payout) {
			status = PayoutFailed
		}

		if err := p.db.FinishPayout(payout.PayoutID, status); err != nil {
			logger.Error().
				Err(err).
				Str("payout_id", payout.PayoutID).
				Msg("failed to finish payout")
			continue
		}

		logger.Info().
			Str("payout_id", payout.PayoutID).
			Str("trainer_id", payout.TrainerID).
			Str("trainer_share", payout.TrainerShare.String()).
			Str("status", status).
			Msg("payout processed")
	}

	return nil
}

// disburse simulates the bank transfer to the trainer. A real integration
// would call the payment provider's transfer API here.
func (p *Processor) disburse(payout *Payout) bool {
	// For simulation, succeed 95% of the time
	return time.Now().UnixNano()%100 < 95
}
