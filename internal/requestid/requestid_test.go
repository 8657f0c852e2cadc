package requestid_test

import (
	"context"
	"testing"

	"github.com/arjunmehta-dev/taskforge/internal/requestid"
)

func TestFromContext_Empty(t *testing.T) {
	if got := requestid.FromContext(context.Background()); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestWithRequestID_RoundTrips(t *testing.T) {
	ctx := requestid.WithRequestID(context.Background(), "req-123")
	if got := requestid.FromContext(ctx); got != "req-123" {
		t.Fatalf("got %q, want %q", got, "req-123")
	}
}

func TestNew_ProducesDistinctIDs(t *testing.T) {
	a := requestid.New()
	b := requestid.New()
	if a == "" || b == "" {
		t.Fatal("expected non-empty ids")
	}
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
}
