package purchase

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor expires gateway purchases that never completed checkout. A
// pending purchase older than the TTL transitions to cancelled so abandoned
// checkouts do not linger forever.
type Processor struct {
	db         *Database
	interval   time.Duration
	pendingTTL time.Duration
}

func NewProcessor(db *Database) *Processor {
	return &Processor{
		db:         db,
		interval:   5 * time.Minute,
		pendingTTL: 24 * time.Hour,
	}
}

// Start begins the expiry loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "purchase_processor").Logger()
	logger.Info().
		Dur("interval", p.interval).
		Dur("pending_ttl", p.pendingTTL).
		Msg("starting pending purchase processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down pending purchase processor")
			return
		case <-ticker.C:
			if err := p.expirePending(); err != nil {
				logger.Error().Err(err).Msg("failed to expire pending purchases")
			}
		}
	}
}

func (p *Processor) expirePending() error {
	logger := log.With().Str("component", "purchase_processor").Logger()

	cancelled, err := p.db.CancelStalePending(p.pendingTTL)
	if err != nil {
		return err
	}

	if cancelled > 0 {
		logger.Info().Int64("cancelled", cancelled).Msg("cancelled stale pending purchases")
	}
	return nil
}
