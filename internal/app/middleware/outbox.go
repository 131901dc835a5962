package middleware

import (
	"context"

	"gearyard/internal/app/commands"
	"gearyard/internal/app/outbox"
)

// OutboxFlush writes the domain events a command staged (offer.placed,
// offer.accepted and the rest) to the outbox store. It sits inside the
// transaction middleware, so the events land in the same transaction as the
// state they describe and the Kafka worker only ever sees committed ones.
func OutboxFlush(box outbox.Outbox) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := passCommand(next)
		return dispatchFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
