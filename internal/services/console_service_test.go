package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codecheckerai/analysis-console/internal/models"
	"github.com/codecheckerai/analysis-console/internal/screen"
	"github.com/codecheckerai/analysis-console/internal/utils"
)

type analyzerStub struct {
	calls   atomic.Int32
	payload any
	err     error
}

func (a *analyzerStub) Analyze(ctx context.Context, req models.AnalysisRequest) (any, error) {
	a.calls.Add(1)
	return a.payload, a.err
}

func newTestService(t *testing.T, analyzer screen.Analyzer, maxSessions int) *ConsoleService {
	t.Helper()
	svc, err := NewConsoleService(utils.DiscardLogger(), analyzer, Options{MaxSessions: maxSessions, MaxUploadBytes: 1 << 20})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(svc.Shutdown)
	return svc
}

func waitSettled(t *testing.T, svc *ConsoleService, id string) screen.View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		v, err := svc.View(id)
		if err != nil {
			t.Fatalf("view: %v", err)
		}
		if v.Region == screen.RegionSucceeded || v.Region == screen.RegionFailed {
			return v
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s never settled: %+v", id, v)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMountSubmitUnmount(t *testing.T) {
	stub := &analyzerStub{payload: map[string]any{"result": "OK"}}
	svc := newTestService(t, stub, 8)

	id, b, err := svc.Mount("code")
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	if b.Kind() != models.KindCode {
		t.Fatalf("unexpected kind %s", b.Kind())
	}
	if svc.Active() != 1 {
		t.Fatalf("expected one active session, got %d", svc.Active())
	}

	v, err := svc.Submit(id, screen.Input{Code: "print(1)"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if v.Region != screen.RegionPending {
		t.Fatalf("expected pending view, got %s", v.Region)
	}
	if got := waitSettled(t, svc, id); got.Region != screen.RegionSucceeded {
		t.Fatalf("expected success, got %+v", got)
	}

	if err := svc.Unmount(id); err != nil {
		t.Fatalf("unmount: %v", err)
	}
	if _, err := svc.View(id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found after unmount, got %v", err)
	}
	if err := svc.Unmount(id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second unmount should report not found, got %v", err)
	}
}

func TestMountUnknownScreen(t *testing.T) {
	svc := newTestService(t, &analyzerStub{}, 8)
	if _, _, err := svc.Mount("home"); !errors.Is(err, ErrUnknownScreen) {
		t.Fatalf("expected unknown screen, got %v", err)
	}
}

func TestRegistryEvictsOldestAndClosesIt(t *testing.T) {
	svc := newTestService(t, &analyzerStub{payload: map[string]any{}}, 2)

	first, firstBinding, err := svc.Mount("dataset")
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	if _, _, err := svc.Mount("code"); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if _, _, err := svc.Mount("repository"); err != nil {
		t.Fatalf("mount: %v", err)
	}

	if svc.Active() != 2 {
		t.Fatalf("registry should stay bounded, got %d", svc.Active())
	}
	if _, err := svc.Lookup(first); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("oldest session should be evicted, got %v", err)
	}
	views, _ := firstBinding.Watch()
	select {
	case _, ok := <-views:
		if ok {
			t.Fatalf("evicted screen should be closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("evicted screen stream did not close")
	}
}

func TestSubmitUnknownSession(t *testing.T) {
	svc := newTestService(t, &analyzerStub{}, 8)
	if _, err := svc.Submit("missing", screen.Input{Code: "x"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLatencyTrackedForResolvedRequests(t *testing.T) {
	stub := &analyzerStub{err: errors.New("unreachable")}
	svc := newTestService(t, stub, 8)

	id, _, err := svc.Mount("repository")
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	// Rejected input is not a round trip.
	svc.Submit(id, screen.Input{RepositoryURL: "not a url"})
	svc.Submit(id, screen.Input{RepositoryURL: "https://github.com/x/y"})
	v := waitSettled(t, svc, id)
	if v.Error != screen.RepositoryFallback {
		t.Fatalf("unexpected error %q", v.Error)
	}
	if got := svc.latencies.Total(); got != 1 {
		t.Fatalf("expected one latency sample, got %d", got)
	}
	if stub.calls.Load() != 1 {
		t.Fatalf("expected one dispatch, got %d", stub.calls.Load())
	}
}

func TestNewConsoleServiceRequiresAnalyzer(t *testing.T) {
	if _, err := NewConsoleService(nil, nil, Options{MaxSessions: 1}); err == nil {
		t.Fatalf("expected error without analyzer")
	}
	if _, err := NewConsoleService(nil, &analyzerStub{}, Options{MaxSessions: 0}); err == nil {
		t.Fatalf("expected error for empty registry")
	}
}
