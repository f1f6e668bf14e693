package connectivity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRegisterAndCall(t *testing.T) {
	r := New(WithLogger(quiet()))
	r.RegisterLocal("echo", func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})

	resp, err := r.Call(context.Background(), "echo", []byte("hello"))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if string(resp) != "hello" {
		t.Errorf("resp: got %q", resp)
	}
}

func TestServiceNotFound(t *testing.T) {
	r := New(WithLogger(quiet()))
	_, err := r.Call(context.Background(), "missing", nil)

	var nf *ErrServiceNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("error: got %v, want ErrServiceNotFound", err)
	}
	if nf.Service != "missing" {
		t.Errorf("service: got %q", nf.Service)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) HandlerMiddleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, payload []byte) ([]byte, error) {
				order = append(order, name)
				return next(ctx, payload)
			}
		}
	}

	h := Chain(mw("outer"), mw("inner"))(func(ctx context.Context, payload []byte) ([]byte, error) {
		order = append(order, "handler")
		return nil, nil
	})
	if _, err := h(context.Background(), nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := strings.Join(order, ","); got != "outer,inner,handler" {
		t.Errorf("order: got %q", got)
	}
}

func TestFallbackOnError(t *testing.T) {
	primary := func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, fmt.Errorf("remote down")
	}
	fallback := func(ctx context.Context, payload []byte) ([]byte, error) {
		return []byte("local"), nil
	}

	h := WithFallback(fallback, "matcher", quiet())(primary)
	resp, err := h(context.Background(), nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if string(resp) != "local" {
		t.Errorf("resp: got %q", resp)
	}
}

func TestFallbackSkippedOnCancellation(t *testing.T) {
	primary := func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, ctx.Err()
	}
	called := false
	fallback := func(ctx context.Context, payload []byte) ([]byte, error) {
		called = true
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := WithFallback(fallback, "matcher", quiet())(primary)
	if _, err := h(ctx, nil); err == nil {
		t.Fatal("cancelled call should fail")
	}
	if called {
		t.Error("fallback ran despite cancellation")
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(quiet())(func(ctx context.Context, payload []byte) ([]byte, error) {
		panic("boom")
	})

	_, err := h(context.Background(), nil)
	var pe *ErrPanic
	if !errors.As(err, &pe) {
		t.Fatalf("error: got %v, want ErrPanic", err)
	}
}

func TestTimeout(t *testing.T) {
	h := Timeout(10 * time.Millisecond)(func(ctx context.Context, payload []byte) ([]byte, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return nil, nil
		}
	})

	if _, err := h(context.Background(), nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error: got %v, want deadline exceeded", err)
	}
}
