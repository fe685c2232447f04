package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != FaultNone {
		t.Fatalf("expected no fault for nil, got %q", got)
	}
	if got := KindOf(errors.New("dial tcp: refused")); got != FaultTransport {
		t.Fatalf("foreign errors should count as transport faults, got %q", got)
	}
	wrapped := fmt.Errorf("submit: %w", ValidationError("code", "empty"))
	if got := KindOf(wrapped); got != FaultValidation {
		t.Fatalf("expected validation fault through wrapping, got %q", got)
	}
}

func TestUserMessage(t *testing.T) {
	server := NewAppError(FaultTransport, "check-repo", "Invalid GitHub URL.", errors.New("400 Bad Request"))
	if got := UserMessage(server, "fallback"); got != "Invalid GitHub URL." {
		t.Fatalf("expected server message, got %q", got)
	}

	bare := NewAppError(FaultTransport, "check-repo", "", errors.New("502 Bad Gateway"))
	if got := UserMessage(bare, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if bare.Error() != "check-repo: 502 Bad Gateway" {
		t.Fatalf("unexpected error text %q", bare.Error())
	}
}
