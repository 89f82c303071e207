package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Consumer is a long-running sensor feed.
type Consumer interface {
	// Start blocks, applying messages until ctx is done.
	Start(ctx context.Context) error
	Close() error
	Name() string
}

// Run starts every consumer and waits for them to stop. A consumer that
// fails stops the others. Cancellation of ctx is not an error.
func Run(ctx context.Context, logger zerolog.Logger, consumers ...Consumer) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		g.Go(func() error {
			logger.Info().Str("consumer", c.Name()).Msg("starting sensor consumer")
			err := c.Start(ctx)
			if closeErr := c.Close(); closeErr != nil {
				logger.Warn().Err(closeErr).Str("consumer", c.Name()).Msg("closing sensor consumer")
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s consumer: %w", c.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
