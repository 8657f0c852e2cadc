// Package handlers ships the stub job_type handlers SPEC_FULL.md §4.4
// names as illustrative examples — their internals are explicitly not
// the core's concern (spec.md §1); they exist so a fresh deployment has
// something runnable registered under the spec's own example types.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/registry"
)

type emailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

// Email simulates dispatching a notification email.
func Email() registry.HandlerFunc {
	return func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var p emailPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("invalid email payload: %w", err)
		}
		if p.To == "" {
			return nil, fmt.Errorf("email payload missing \"to\"")
		}
		return json.Marshal(map[string]string{"status": "sent", "to": p.To})
	}
}

type aiInferencePayload struct {
	Prompt string `json:"prompt"`
}

// AIInference simulates an inference call with a representative
// latency, returning a canned completion.
func AIInference() registry.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var p aiInferencePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("invalid ai-inference payload: %w", err)
		}
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return json.Marshal(map[string]string{"completion": "stub response to: " + p.Prompt})
	}
}

type dataCleanPayload struct {
	Rows []map[string]any `json:"rows"`
}

// DataClean simulates a row-normalization pass, dropping empty rows.
func DataClean() registry.HandlerFunc {
	return func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var p dataCleanPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("invalid data-clean payload: %w", err)
		}
		cleaned := make([]map[string]any, 0, len(p.Rows))
		for _, row := range p.Rows {
			if len(row) > 0 {
				cleaned = append(cleaned, row)
			}
		}
		return json.Marshal(map[string]any{"cleaned_rows": len(cleaned)})
	}
}

// RegisterAll wires every example handler into reg under the spec's
// illustrative job_type names.
func RegisterAll(reg *registry.Registry) {
	reg.RegisterFunc("email", Email())
	reg.RegisterFunc("ai-inference", AIInference())
	reg.RegisterFunc("data-clean", DataClean())
}
