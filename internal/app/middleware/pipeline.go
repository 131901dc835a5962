package middleware

import (
	"context"

	"gearyard/internal/app/commands"
	"gearyard/internal/app/queries"
)

// CommandMiddleware wraps the command bus. The marketplace pipeline layers
// idempotency, then the Mongo transaction, then the outbox flush around
// every offer and listing command.
type CommandMiddleware func(next commands.Bus) commands.Bus

// QueryMiddleware wraps the query bus.
type QueryMiddleware func(next queries.Bus) queries.Bus

// ChainCommands applies middleware outermost first, so
// ChainCommands(bus, a, b) dispatches through a, then b, then the bus.
func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	wrapped := base
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	wrapped := base
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

// dispatchFunc adapts a closure to the command bus, keeping each middleware a
// single function instead of a struct per wrapper.
type dispatchFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f dispatchFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

func passCommand(next commands.Bus) dispatchFunc {
	return func(ctx context.Context, cmd commands.Command) (any, error) {
		return next.Dispatch(ctx, cmd)
	}
}

type askFunc func(ctx context.Context, query queries.Query) (any, error)

func (f askFunc) Ask(ctx context.Context, q queries.Query) (any, error) {
	return f(ctx, q)
}

func passQuery(next queries.Bus) askFunc {
	return func(ctx context.Context, q queries.Query) (any, error) {
		return next.Ask(ctx, q)
	}
}
