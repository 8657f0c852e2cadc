package domain_test

import (
	"errors"
	"testing"

	"github.com/arjunmehta-dev/taskforge/internal/domain"
)

func TestValidate_RequiresJobType(t *testing.T) {
	j := &domain.Job{}
	if err := j.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidate_NameTooLong(t *testing.T) {
	name := make([]byte, domain.MaxNameLength+1)
	for i := range name {
		name[i] = 'a'
	}
	j := &domain.Job{JobType: "email", Name: string(name)}
	if err := j.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidate_PriorityOutOfRange(t *testing.T) {
	for _, p := range []int{domain.MinPriority - 1, domain.MaxPriority + 1} {
		j := &domain.Job{JobType: "email", Priority: p}
		if err := j.Validate(); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("priority %d: expected ErrValidation, got %v", p, err)
		}
	}
}

func TestValidate_ValidJobPasses(t *testing.T) {
	j := &domain.Job{JobType: "email", Name: "welcome", Priority: 0}
	if err := j.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestStatusTransitions checks the status classification the transition
// table rests on: every status's Terminal/Eligible/Valid result. It does
// not drive any transition itself.
func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		status       domain.Status
		wantTerminal bool
		wantEligible bool
	}{
		{domain.StatusPending, false, true},
		{domain.StatusRunning, false, false},
		{domain.StatusSucceeded, true, false},
		{domain.StatusFailed, true, false},
		{domain.StatusCancelled, true, false},
		{domain.StatusRetrying, false, true},
	}

	for _, c := range cases {
		if got := c.status.Terminal(); got != c.wantTerminal {
			t.Errorf("%s.Terminal() = %v, want %v", c.status, got, c.wantTerminal)
		}
		if got := c.status.Eligible(); got != c.wantEligible {
			t.Errorf("%s.Eligible() = %v, want %v", c.status, got, c.wantEligible)
		}
		if !c.status.Valid() {
			t.Errorf("%s.Valid() = false, want true", c.status)
		}
	}
}

func TestStatus_InvalidValue(t *testing.T) {
	if domain.Status("bogus").Valid() {
		t.Fatal("expected \"bogus\" to be invalid")
	}
}
