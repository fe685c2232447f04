// Package screen binds an input surface to a session controller and renders
// the session as a View.
package screen

import (
	"context"
	"log/slog"
	"time"

	"github.com/codecheckerai/analysis-console/internal/models"
	"github.com/codecheckerai/analysis-console/internal/normalize"
	"github.com/codecheckerai/analysis-console/internal/session"
	"github.com/codecheckerai/analysis-console/internal/utils"
)

// Region is the part of a screen that is visible. Exactly one is shown.
type Region string

const (
	RegionIdle      Region = "idle"
	RegionPending   Region = "pending"
	RegionSucceeded Region = "succeeded"
	RegionFailed    Region = "failed"
)

// Input is raw form content. Each screen reads only its own field.
type Input struct {
	Code          string         `json:"code,omitempty"`
	RepositoryURL string         `json:"repo_url,omitempty"`
	File          *models.Upload `json:"-"`
}

// View is what a front end renders for one screen.
type View struct {
	Screen      models.Kind     `json:"screen"`
	Region      Region          `json:"region"`
	Token       string          `json:"token,omitempty"`
	Result      any             `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Fault       utils.FaultKind `json:"fault,omitempty"`
	Notice      string          `json:"notice,omitempty"`
	SubmittedAt *time.Time      `json:"submittedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// Binding is a mounted screen of any type.
type Binding interface {
	Kind() models.Kind
	Submit(Input) View
	View() View
	// Watch streams views with latest-wins delivery; cancel stops the stream.
	Watch() (<-chan View, func())
	Close()
}

// Analyzer performs the network call for a request.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (any, error)
}

// Deps are the collaborators every screen needs.
type Deps struct {
	Analyzer       Analyzer
	Normalizer     *normalize.Normalizer
	Observer       func(session.Event)
	Logger         *slog.Logger
	MaxUploadBytes int64
}

// Screen is the one generic implementation behind every screen type.
type Screen[Q models.AnalysisRequest, R models.AnalysisResult] struct {
	kind    models.Kind
	ctrl    *session.Controller[Q, R]
	collect func(Input) Q
	notice  func(R) string
}

func newScreen[Q models.AnalysisRequest, R models.AnalysisResult](kind models.Kind, cfg session.Config[Q, R], collect func(Input) Q, notice func(R) string) *Screen[Q, R] {
	return &Screen[Q, R]{
		kind:    kind,
		ctrl:    session.New(cfg),
		collect: collect,
		notice:  notice,
	}
}

// Kind names the screen type.
func (s *Screen[Q, R]) Kind() models.Kind { return s.kind }

// Submit collects in into a request and submits it.
func (s *Screen[Q, R]) Submit(in Input) View {
	return s.render(s.ctrl.Submit(s.collect(in)))
}

// View renders the current session.
func (s *Screen[Q, R]) View() View {
	return s.render(s.ctrl.Snapshot())
}

// Session exposes the typed session for callers that know R.
func (s *Screen[Q, R]) Session() session.Session[R] {
	return s.ctrl.Snapshot()
}

// Watch streams a rendered view for every session change.
func (s *Screen[Q, R]) Watch() (<-chan View, func()) {
	sessions, cancel := s.ctrl.Subscribe()
	views := make(chan View, 1)
	go func() {
		defer close(views)
		for sess := range sessions {
			pushView(views, s.render(sess))
		}
	}()
	return views, cancel
}

// Close unmounts the screen.
func (s *Screen[Q, R]) Close() { s.ctrl.Close() }

func (s *Screen[Q, R]) render(sess session.Session[R]) View {
	v := View{
		Screen: s.kind,
		Region: regionOf(sess.Status),
		Token:  sess.Token,
		Error:  sess.Error,
		Fault:  sess.Fault,
	}
	if !sess.SubmittedAt.IsZero() {
		at := sess.SubmittedAt
		v.SubmittedAt = &at
	}
	if !sess.CompletedAt.IsZero() {
		at := sess.CompletedAt
		v.CompletedAt = &at
	}
	if sess.Result != nil {
		v.Result = *sess.Result
		if s.notice != nil {
			v.Notice = s.notice(*sess.Result)
		}
	}
	return v
}

func regionOf(status session.Status) Region {
	switch status {
	case session.StatusPending:
		return RegionPending
	case session.StatusSucceeded:
		return RegionSucceeded
	case session.StatusFailed:
		return RegionFailed
	}
	return RegionIdle
}

func pushView(ch chan View, v View) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
