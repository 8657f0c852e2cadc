package executor_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/domain"
	"github.com/arjunmehta-dev/taskforge/internal/executor"
	"github.com/arjunmehta-dev/taskforge/internal/registry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_Success(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("echo", func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	})
	e := executor.New(reg, time.Second, 2.0, discardLogger())

	job := &domain.Job{JobType: "echo", Payload: json.RawMessage(`{"x":1}`), Attempts: 1, MaxRetries: 5}
	out := e.Run(context.Background(), job, time.Now())
	if !out.Success {
		t.Fatalf("expected success, got error %q", out.Error)
	}
	if string(out.Result) != `{"x":1}` {
		t.Fatalf("unexpected result: %s", out.Result)
	}
}

func TestRun_UnknownHandler_TerminalWithoutConsumingRetries(t *testing.T) {
	reg := registry.New()
	e := executor.New(reg, time.Second, 2.0, discardLogger())

	job := &domain.Job{JobType: "nope", Attempts: 1, MaxRetries: 5}
	out := e.Run(context.Background(), job, time.Now())
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Next != domain.NextTerminal {
		t.Fatalf("expected terminal outcome for unknown handler, got %v", out.Next)
	}
	if out.Error != "unknown job type: nope" {
		t.Fatalf("unexpected error message: %q", out.Error)
	}
}

func TestRun_HandlerError_RetryWhenAttemptsRemain(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("flaky", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("boom")
	})
	e := executor.New(reg, time.Second, 2.0, discardLogger())

	now := time.Now()
	job := &domain.Job{JobType: "flaky", Attempts: 1, MaxRetries: 5}
	out := e.Run(context.Background(), job, now)
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Next != domain.NextRetry {
		t.Fatalf("expected retry, got %v", out.Next)
	}
	if !out.ScheduledAt.After(now) {
		t.Fatal("expected scheduled_at in the future")
	}
}

func TestRun_HandlerError_TerminalWhenRetriesExhausted(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("always-fails", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("boom")
	})
	e := executor.New(reg, time.Second, 2.0, discardLogger())

	job := &domain.Job{JobType: "always-fails", Attempts: 6, MaxRetries: 5}
	out := e.Run(context.Background(), job, time.Now())
	if out.Next != domain.NextTerminal {
		t.Fatalf("expected terminal, got %v", out.Next)
	}
}

func TestRun_Timeout(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("slow", func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		select {
		case <-time.After(time.Second):
			return json.RawMessage(`"done"`), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	e := executor.New(reg, 10*time.Millisecond, 2.0, discardLogger())

	job := &domain.Job{JobType: "slow", Attempts: 1, MaxRetries: 5}
	out := e.Run(context.Background(), job, time.Now())
	if out.Success {
		t.Fatal("expected timeout failure")
	}
	if out.Error != "timeout after 0s" {
		t.Fatalf("unexpected error message: %q", out.Error)
	}
}

func TestRun_HandlerPanic_DoesNotPropagate(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("panics", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		panic("handler exploded")
	})
	e := executor.New(reg, time.Second, 2.0, discardLogger())

	job := &domain.Job{JobType: "panics", Attempts: 1, MaxRetries: 5}
	out := e.Run(context.Background(), job, time.Now())
	if out.Success {
		t.Fatal("expected failure outcome from panic")
	}
	if out.Error == "" {
		t.Fatal("expected non-empty error message recovered from panic")
	}
}

func TestRun_ErrorTruncatedTo1000Chars(t *testing.T) {
	reg := registry.New()
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	reg.RegisterFunc("verbose", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New(string(long))
	})
	e := executor.New(reg, time.Second, 2.0, discardLogger())

	job := &domain.Job{JobType: "verbose", Attempts: 1, MaxRetries: 5}
	out := e.Run(context.Background(), job, time.Now())
	if len(out.Error) != domain.MaxErrorLength {
		t.Fatalf("expected error truncated to %d chars, got %d", domain.MaxErrorLength, len(out.Error))
	}
}
