package middleware_test

import (
	"context"
	"errors"
	"testing"

	"gearyard/internal/app/commands"
	"gearyard/internal/app/middleware"
	"gearyard/internal/infra/storage/memory"
)

type purchaseCommand struct {
	RequestID string
	Amount int64
}

func (c purchaseCommand) Key() string { return "test.purchase" }

func (c purchaseCommand) IdempotencyKey() string { return c.RequestID }

func (c purchaseCommand) ResultPrototype() any { return &purchaseResult{} }

type purchaseResult struct {
	Receipt string `json:"receipt"`
	Amount  int64  `json:"amount"`
}

type countingHandler struct {
	calls int
	fail  error
}

func (h *countingHandler) Handle(ctx context.Context, cmd purchaseCommand) (*purchaseResult, error) {
	h.calls++
	if h.fail != nil {
		return nil, h.fail
	}
	return &purchaseResult{Receipt: "rcpt-1", Amount: cmd.Amount}, nil
}

func newIdempotentBus(handler *countingHandler) commands.Bus {
	base := commands.NewInMemoryBus()
	commands.RegisterHandler(base, purchaseCommand{}.Key(), handler)
	return middleware.ChainCommands(base, middleware.Idempotency(memory.NewIdempotencyStore(), nil))
}

func TestIdempotencyReplaysCachedResult(t *testing.T) {
	handler := &countingHandler{}
	bus := newIdempotentBus(handler)
	ctx := context.Background()
	cmd := purchaseCommand{RequestID: "req-1", Amount: 4200}

	first, err := commands.Dispatch[purchaseCommand, *purchaseResult](ctx, bus, cmd)
	if err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	second, err := commands.Dispatch[purchaseCommand, *purchaseResult](ctx, bus, cmd)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if handler.calls != 1 {
		t.Fatalf("handler calls = %d, want 1", handler.calls)
	}
	if second.Receipt != first.Receipt || second.Amount != first.Amount {
		t.Fatalf("replayed result = %+v, want %+v", second, first)
	}
}

func TestIdempotencyDistinctKeysRunSeparately(t *testing.T) {
	handler := &countingHandler{}
	bus := newIdempotentBus(handler)
	ctx := context.Background()

	if _, err := bus.Dispatch(ctx, purchaseCommand{RequestID: "req-1", Amount: 100}); err != nil {
		t.Fatalf("dispatch req-1: %v", err)
	}
	if _, err := bus.Dispatch(ctx, purchaseCommand{RequestID: "req-2", Amount: 200}); err != nil {
		t.Fatalf("dispatch req-2: %v", err)
	}
	if handler.calls != 2 {
		t.Fatalf("handler calls = %d, want 2", handler.calls)
	}
}

func TestIdempotencyEmptyKeyBypassesCache(t *testing.T) {
	handler := &countingHandler{}
	bus := newIdempotentBus(handler)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := bus.Dispatch(ctx, purchaseCommand{Amount: 100}); err != nil {
			t.Fatalf("dispatch %d: %v", i+1, err)
		}
	}
	if handler.calls != 2 {
		t.Fatalf("handler calls = %d, want 2", handler.calls)
	}
}

func TestIdempotencyCachesFailures(t *testing.T) {
	handler := &countingHandler{fail: errors.New("card declined")}
	bus := newIdempotentBus(handler)
	ctx := context.Background()
	cmd := purchaseCommand{RequestID: "req-1", Amount: 100}

	if _, err := bus.Dispatch(ctx, cmd); err == nil {
		t.Fatal("first dispatch succeeded, want error")
	}
	_, err := bus.Dispatch(ctx, cmd)
	if err == nil || err.Error() != "card declined" {
		t.Fatalf("replayed error = %v, want card declined", err)
	}
	if handler.calls != 1 {
		t.Fatalf("handler calls = %d, want 1", handler.calls)
	}
}
