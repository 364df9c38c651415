package shutdown

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type closer struct{ closed bool }

func (c *closer) Close() error {
	c.closed = true
	return nil
}

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := New(time.Second, nil)

	var order []string
	m.Register("store", func(context.Context) error {
		order = append(order, "store")
		return nil
	})
	m.Register("server", func(context.Context) error {
		order = append(order, "server")
		return nil
	})

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.Join(order, ",") != "server,store" {
		t.Errorf("Expected server,store got %v", order)
	}

	select {
	case <-m.Done():
	default:
		t.Error("Done should be closed after shutdown")
	}

	if err := m.Shutdown(); err != nil {
		t.Errorf("Second shutdown should be a no-op, got %v", err)
	}
	if len(order) != 2 {
		t.Errorf("Hooks ran twice: %v", order)
	}
}

func TestShutdownCollectsErrors(t *testing.T) {
	m := New(time.Second, nil)
	c := &closer{}
	m.Register("closer", CloseResource(c))
	m.Register("broken", func(context.Context) error { return errors.New("stuck") })

	err := m.Shutdown()
	if err == nil || !strings.Contains(err.Error(), "broken: stuck") {
		t.Errorf("Expected broken hook error, got %v", err)
	}
	if !c.closed {
		t.Error("Hooks after a failing one must still run")
	}
}

func TestWaitWithContext(t *testing.T) {
	m := New(time.Second, nil)
	ran := false
	m.Register("hook", func(context.Context) error {
		ran = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.WaitWithContext(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !ran {
		t.Error("Hook should run when the context ends")
	}
}
