package registry_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/arjunmehta-dev/taskforge/internal/registry"
)

func TestLookup_Registered(t *testing.T) {
	r := registry.New()
	r.RegisterFunc("echo", func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	})

	h, ok := r.Lookup("echo")
	if !ok {
		t.Fatal("expected echo to be registered")
	}
	out, err := h.Handle(context.Background(), json.RawMessage(`{"a":1}`))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if string(out) != `{"a":1}` {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestLookup_Unregistered(t *testing.T) {
	r := registry.New()
	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("expected missing type to not be registered")
	}
}

func TestRegister_OverwritesPrevious(t *testing.T) {
	r := registry.New()
	r.RegisterFunc("x", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"first"`), nil
	})
	r.RegisterFunc("x", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"second"`), nil
	})

	h, _ := r.Lookup("x")
	out, _ := h.Handle(context.Background(), nil)
	if string(out) != `"second"` {
		t.Fatalf("expected second registration to win, got %s", out)
	}
}
