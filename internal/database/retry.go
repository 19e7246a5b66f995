package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const connectAttempts = 5

var connectBackoff = time.Second

// waitReady pings until the backend answers, doubling the pause between
// attempts. Containers started together rarely come up in order.
func waitReady(ctx context.Context, name string, ping func(context.Context) error, log zerolog.Logger) error {
	pause := connectBackoff
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if attempt == connectAttempts {
			break
		}
		log.Warn().Err(err).
			Str("backend", name).
			Int("attempt", attempt).
			Dur("retry_in", pause).
			Msg("Backend not ready")

		select {
		case <-ctx.Done():
			return fmt.Errorf("ping %s: %w", name, ctx.Err())
		case <-time.After(pause):
		}
		pause *= 2
	}
	return fmt.Errorf("ping %s after %d attempts: %w", name, connectAttempts, err)
}
