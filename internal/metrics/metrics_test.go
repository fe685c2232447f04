package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterTwiceIsTolerated(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should be a no-op, got %v", err)
	}
}

func TestObserveSubmission(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	before := gathered(t, reg, "analysis_console_submissions_total", "repository")
	ObserveSubmission("repository", OutcomeStale, time.Second)
	after := gathered(t, reg, "analysis_console_submissions_total", "repository")
	if after-before != 1 {
		t.Fatalf("expected stale counter to increase by one, got %v", after-before)
	}
}

func TestSessionMounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	SessionMounted("dataset", 2)
	SessionMounted("dataset", -1)
	if got := gathered(t, reg, "analysis_console_active_sessions", "dataset"); got != 1 {
		t.Fatalf("expected one active dataset session, got %v", got)
	}
}

// gathered sums counter and gauge samples of family name whose screen label matches.
func gathered(t *testing.T, reg *prometheus.Registry, name, screen string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "screen" && label.GetValue() == screen {
					total += m.GetCounter().GetValue() + m.GetGauge().GetValue()
				}
			}
		}
	}
	return total
}
