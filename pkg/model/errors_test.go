package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestModelError_Message(t *testing.T) {
	err := NewConfigurationError("unknown component", nil).
		WithObject("Component:web").
		WithPath("endpoints.http").
		WithCode(ErrCodeNotFound)

	msg := err.Error()
	for _, want := range []string{"[configuration]", "unknown component", "object=Component:web", "path=endpoints.http"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestModelError_WrapsCause(t *testing.T) {
	cause := fmt.Errorf("yaml: line 3: mapping values are not allowed")
	err := NewConfigurationError("cannot parse document", cause)

	if !errors.Is(err, cause) {
		t.Error("cause must survive unwrapping")
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("Error() = %q, cause text lost", err.Error())
	}
}

func TestModelError_KindPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"configuration", NewConfigurationError("x", nil), IsConfiguration},
		{"validation", NewValidationError("x", nil), IsValidation},
		{"missing context", NewMissingContextError("x", nil), IsMissingContext},
		{"unsupported capability", NewUnsupportedCapabilityError("x", nil), IsUnsupportedCapability},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.pred(tt.err) {
				t.Error("predicate rejects its own kind")
			}
			// Wrapped errors still match.
			if !tt.pred(fmt.Errorf("outer: %w", tt.err)) {
				t.Error("predicate rejects the wrapped error")
			}
		})
	}

	if IsValidation(NewConfigurationError("x", nil)) {
		t.Error("predicate matches a foreign kind")
	}
	if IsConfiguration(errors.New("plain")) {
		t.Error("predicate matches a plain error")
	}
}

func TestModelError_Is(t *testing.T) {
	a := NewConfigurationError("first", nil).WithCode(ErrCodeNotFound)
	b := NewConfigurationError("second", nil).WithCode(ErrCodeNotFound)
	c := NewConfigurationError("third", nil).WithCode(ErrCodeAlreadyExists)

	if !errors.Is(a, b) {
		t.Error("same kind and code must match")
	}
	if errors.Is(a, c) {
		t.Error("different codes must not match")
	}
}

func TestModelError_Details(t *testing.T) {
	err := NewConfigurationError("render hook failed", nil).
		WithDetail("phase", "main").
		WithDetail("plugin", "kubernetes")

	if err.Details["phase"] != "main" || err.Details["plugin"] != "kubernetes" {
		t.Errorf("details = %v", err.Details)
	}
}
