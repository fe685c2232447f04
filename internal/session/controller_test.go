package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codecheckerai/analysis-console/internal/metrics"
	"github.com/codecheckerai/analysis-console/internal/models"
	"github.com/codecheckerai/analysis-console/internal/utils"
)

const testFallback = "There was an error checking your code. Please try again."

type codeController = Controller[models.CodeRequest, models.CodeResult]

func newCodeController(t *testing.T, dispatch func(context.Context, models.CodeRequest) (any, error), observer func(Event)) *codeController {
	t.Helper()
	c := New(Config[models.CodeRequest, models.CodeResult]{
		Name: "code",
		Validate: func(q models.CodeRequest) error {
			if q.Source == "" {
				return utils.ValidationError("code", "Please enter some code.")
			}
			return nil
		},
		Dispatch: dispatch,
		Normalize: func(_ models.CodeRequest, raw any) models.CodeResult {
			s, _ := raw.(string)
			return models.CodeResult{SyntaxSummary: s}
		},
		FallbackMessage: testFallback,
		Observer:        observer,
		Logger:          utils.DiscardLogger(),
	})
	t.Cleanup(c.Close)
	return c
}

// waitFor reads subscription updates until match holds or the deadline passes.
func waitFor(t *testing.T, c *codeController, match func(Session[models.CodeResult]) bool) Session[models.CodeResult] {
	t.Helper()
	updates, cancel := c.Subscribe()
	defer cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-updates:
			if !ok {
				t.Fatalf("subscription closed before condition held")
			}
			if match(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out; last snapshot %+v", c.Snapshot())
		}
	}
}

func TestSubmitReturnsPending(t *testing.T) {
	release := make(chan struct{})
	c := newCodeController(t, func(ctx context.Context, q models.CodeRequest) (any, error) {
		<-release
		return "No syntax errors detected.", nil
	}, nil)

	if got := c.Snapshot(); got.Status != StatusIdle {
		t.Fatalf("expected idle before submit, got %s", got.Status)
	}

	s := c.Submit(models.CodeRequest{Source: "print(1)"})
	if s.Status != StatusPending || !s.Pending() {
		t.Fatalf("expected pending, got %s", s.Status)
	}
	if s.Result != nil || s.Error != "" {
		t.Fatalf("pending session must carry neither result nor error: %+v", s)
	}
	if s.Token == "" {
		t.Fatalf("expected a token")
	}

	close(release)
	done := waitFor(t, c, func(s Session[models.CodeResult]) bool { return s.Status == StatusSucceeded })
	if done.Result == nil || done.Result.SyntaxSummary != "No syntax errors detected." {
		t.Fatalf("unexpected result %+v", done.Result)
	}
	if done.Error != "" {
		t.Fatalf("succeeded session must not carry an error")
	}
}

func TestStaleResponseDoesNotOverwrite(t *testing.T) {
	firstGate := make(chan struct{})
	var stale atomic.Int32
	c := newCodeController(t, func(ctx context.Context, q models.CodeRequest) (any, error) {
		if q.Source == "first" {
			<-firstGate
			return "from first", nil
		}
		return "from second", nil
	}, func(e Event) {
		if e.Outcome == metrics.OutcomeStale {
			stale.Add(1)
		}
	})

	first := c.Submit(models.CodeRequest{Source: "first"})
	second := c.Submit(models.CodeRequest{Source: "second"})
	if first.Token == second.Token {
		t.Fatalf("each submit must issue a new token")
	}

	waitFor(t, c, func(s Session[models.CodeResult]) bool { return s.Status == StatusSucceeded })
	close(firstGate)

	deadline := time.Now().Add(2 * time.Second)
	for stale.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stale completion was never observed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := c.Snapshot()
	if got.Token != second.Token {
		t.Fatalf("token changed to %s, want %s", got.Token, second.Token)
	}
	if got.Result == nil || got.Result.SyntaxSummary != "from second" {
		t.Fatalf("stale response overwrote the session: %+v", got.Result)
	}
}

func TestStaleFailureDoesNotOverwrite(t *testing.T) {
	firstGate := make(chan struct{})
	var stale atomic.Int32
	c := newCodeController(t, func(ctx context.Context, q models.CodeRequest) (any, error) {
		if q.Source == "first" {
			<-firstGate
			return nil, errors.New("connection reset")
		}
		return "ok", nil
	}, func(e Event) {
		if e.Outcome == metrics.OutcomeStale {
			stale.Add(1)
		}
	})

	c.Submit(models.CodeRequest{Source: "first"})
	c.Submit(models.CodeRequest{Source: "second"})
	waitFor(t, c, func(s Session[models.CodeResult]) bool { return s.Status == StatusSucceeded })
	close(firstGate)

	deadline := time.Now().Add(2 * time.Second)
	for stale.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stale failure was never observed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := c.Snapshot(); got.Status != StatusSucceeded || got.Error != "" {
		t.Fatalf("stale failure leaked into the session: %+v", got)
	}
}

func TestValidationFailureSkipsDispatch(t *testing.T) {
	var calls atomic.Int32
	var outcomes []string
	c := newCodeController(t, func(ctx context.Context, q models.CodeRequest) (any, error) {
		calls.Add(1)
		return "unexpected", nil
	}, func(e Event) { outcomes = append(outcomes, e.Outcome) })

	s := c.Submit(models.CodeRequest{Source: ""})
	if s.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", s.Status)
	}
	if s.Error != "Please enter some code." || s.Fault != utils.FaultValidation {
		t.Fatalf("unexpected validation outcome %+v", s)
	}
	if s.Result != nil {
		t.Fatalf("failed session must not carry a result")
	}
	// Snapshot is serialised behind the submit on the loop.
	c.Snapshot()
	if calls.Load() != 0 {
		t.Fatalf("validation failure must not dispatch, got %d calls", calls.Load())
	}
	if len(outcomes) != 1 || outcomes[0] != metrics.OutcomeValidation {
		t.Fatalf("unexpected observed outcomes %v", outcomes)
	}
}

func TestServerMessagePreferredOverFallback(t *testing.T) {
	c := newCodeController(t, func(ctx context.Context, q models.CodeRequest) (any, error) {
		if q.Source == "bad" {
			return nil, utils.NewAppError(utils.FaultTransport, "check code", "Code exceeds the size limit", errors.New("413"))
		}
		return nil, errors.New("dial tcp: connection refused")
	}, nil)

	c.Submit(models.CodeRequest{Source: "bad"})
	s := waitFor(t, c, func(s Session[models.CodeResult]) bool { return s.Status == StatusFailed })
	if s.Error != "Code exceeds the size limit" {
		t.Fatalf("expected server message, got %q", s.Error)
	}

	c.Submit(models.CodeRequest{Source: "other"})
	s = waitFor(t, c, func(s Session[models.CodeResult]) bool { return s.Status == StatusFailed })
	if s.Error != testFallback {
		t.Fatalf("expected fallback message, got %q", s.Error)
	}
	if s.Fault != utils.FaultTransport {
		t.Fatalf("expected transport fault, got %s", s.Fault)
	}
	if s.Result != nil {
		t.Fatalf("failed session must not carry a result")
	}
}

func TestSubmitClearsPreviousOutcome(t *testing.T) {
	gate := make(chan struct{})
	c := newCodeController(t, func(ctx context.Context, q models.CodeRequest) (any, error) {
		if q.Source == "slow" {
			<-gate
		}
		return "done", nil
	}, nil)

	c.Submit(models.CodeRequest{Source: "fast"})
	waitFor(t, c, func(s Session[models.CodeResult]) bool { return s.Status == StatusSucceeded })

	s := c.Submit(models.CodeRequest{Source: "slow"})
	if s.Result != nil || s.Error != "" || s.Status != StatusPending {
		t.Fatalf("submit must reset the session, got %+v", s)
	}
	close(gate)
}

func TestCloseAbandonsOutstandingRequest(t *testing.T) {
	cancelled := make(chan struct{})
	c := newCodeController(t, func(ctx context.Context, q models.CodeRequest) (any, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	}, nil)

	updates, _ := c.Subscribe()
	c.Submit(models.CodeRequest{Source: "x"})
	c.Close()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatch context was not cancelled on close")
	}
	for range updates {
	}
	if got := c.Snapshot(); got.Status != StatusPending {
		t.Fatalf("closed controller should keep its last state, got %s", got.Status)
	}
	if got := c.Submit(models.CodeRequest{Source: "y"}); got.Status != StatusPending {
		t.Fatalf("submit after close must be a no-op, got %s", got.Status)
	}
}
