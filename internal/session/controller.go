// Package session runs one analysis request at a time for a mounted screen.
//
// Each Controller owns a goroutine that is the only writer of its Session.
// Submissions, completions and reads reach it as messages, so a completion
// for a superseded submission can be recognised and dropped without locks.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codecheckerai/analysis-console/internal/metrics"
	"github.com/codecheckerai/analysis-console/internal/models"
	"github.com/codecheckerai/analysis-console/internal/utils"
)

var errNoDispatcher = errors.New("no dispatcher configured")

// Status is the lifecycle position of a session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Session is the view state of one screen. Result and Error are never both
// set. Snapshots share Result with the controller and must not be mutated.
type Session[R any] struct {
	Status      Status          `json:"status"`
	Token       string          `json:"token,omitempty"`
	Result      *R              `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Fault       utils.FaultKind `json:"fault,omitempty"`
	SubmittedAt time.Time       `json:"submittedAt,omitempty"`
	CompletedAt time.Time       `json:"completedAt,omitempty"`
}

// Pending reports whether a request is outstanding.
func (s Session[R]) Pending() bool { return s.Status == StatusPending }

// Event describes how a submission resolved.
type Event struct {
	Screen  string
	Token   string
	Outcome string
	Elapsed time.Duration
}

// Config configures a Controller for one screen type.
type Config[Q models.AnalysisRequest, R models.AnalysisResult] struct {
	// Name labels logs and events.
	Name string
	// Validate rejects input before anything is sent. Its error message is
	// shown to the user.
	Validate func(Q) error
	// Dispatch performs the network call and returns the decoded payload.
	Dispatch func(context.Context, Q) (any, error)
	// Normalize reshapes a successful payload. It must not fail.
	Normalize func(Q, any) R
	// FallbackMessage is shown when a failure carries no message of its own.
	FallbackMessage string
	// Observer, when set, is called on the loop goroutine for every resolution.
	Observer func(Event)
	Logger   *slog.Logger
}

type loopState[R any] struct {
	session     Session[R]
	subscribers map[int]chan Session[R]
	nextSub     int
}

// Controller serialises submissions for one screen.
type Controller[Q models.AnalysisRequest, R models.AnalysisResult] struct {
	cfg    Config[Q, R]
	logger *slog.Logger

	inbox  chan func(*loopState[R])
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	final  Session[R]
}

// New starts a controller in the Idle state. Call Close to stop it.
func New[Q models.AnalysisRequest, R models.AnalysisResult](cfg Config[Q, R]) *Controller[Q, R] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller[Q, R]{
		cfg:    cfg,
		logger: logger.With(slog.String("screen", cfg.Name)),
		inbox:  make(chan func(*loopState[R])),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Controller[Q, R]) run() {
	st := &loopState[R]{
		session:     Session[R]{Status: StatusIdle},
		subscribers: make(map[int]chan Session[R]),
	}
	for {
		select {
		case msg := <-c.inbox:
			msg(st)
		case <-c.ctx.Done():
			for id, ch := range st.subscribers {
				close(ch)
				delete(st.subscribers, id)
			}
			c.final = st.session
			close(c.done)
			return
		}
	}
}

// send hands msg to the loop. It reports false once the controller is closed.
func (c *Controller[Q, R]) send(msg func(*loopState[R])) bool {
	select {
	case c.inbox <- msg:
		return true
	case <-c.done:
		return false
	}
}

// Submit starts a new request and returns the session as it stands right
// after: Pending, or Failed when q did not validate. Any earlier outstanding
// request is superseded and its response will be ignored.
func (c *Controller[Q, R]) Submit(q Q) Session[R] {
	reply := make(chan Session[R], 1)
	if !c.send(func(st *loopState[R]) { reply <- c.submit(st, q) }) {
		return c.final
	}
	return <-reply
}

func (c *Controller[Q, R]) submit(st *loopState[R], q Q) Session[R] {
	now := time.Now()
	st.session = Session[R]{
		Status:      StatusPending,
		Token:       uuid.NewString(),
		SubmittedAt: now,
	}

	if c.cfg.Validate != nil {
		if err := c.cfg.Validate(q); err != nil {
			st.session.Status = StatusFailed
			st.session.Error = utils.UserMessage(err, err.Error())
			st.session.Fault = utils.FaultValidation
			st.session.CompletedAt = now
			c.logger.Debug("submission rejected", slog.String("reason", st.session.Error))
			c.observe(st.session.Token, metrics.OutcomeValidation, 0)
			publish(st)
			return st.session
		}
	}

	token := st.session.Token
	c.logger.Debug("submission dispatched", slog.String("token", token))
	go c.dispatch(token, q)
	publish(st)
	return st.session
}

func (c *Controller[Q, R]) dispatch(token string, q Q) {
	var (
		raw any
		err error
	)
	if c.cfg.Dispatch == nil {
		err = utils.NewAppError(utils.FaultTransport, c.cfg.Name, "", errNoDispatcher)
	} else {
		raw, err = c.cfg.Dispatch(c.ctx, q)
	}
	c.send(func(st *loopState[R]) { c.complete(st, token, q, raw, err) })
}

func (c *Controller[Q, R]) complete(st *loopState[R], token string, q Q, raw any, err error) {
	if token != st.session.Token {
		c.logger.Debug("stale response dropped", slog.String("token", token), slog.String("current", st.session.Token))
		c.observe(token, metrics.OutcomeStale, 0)
		return
	}

	now := time.Now()
	elapsed := now.Sub(st.session.SubmittedAt)
	st.session.CompletedAt = now
	if err != nil {
		st.session.Status = StatusFailed
		st.session.Error = utils.UserMessage(err, c.cfg.FallbackMessage)
		st.session.Fault = utils.KindOf(err)
		c.logger.Warn("analysis request failed", slog.String("token", token), slog.Any("error", err))
		c.observe(token, metrics.OutcomeTransport, elapsed)
	} else {
		result := c.cfg.Normalize(q, raw)
		st.session.Status = StatusSucceeded
		st.session.Result = &result
		c.observe(token, metrics.OutcomeSuccess, elapsed)
	}
	publish(st)
}

func (c *Controller[Q, R]) observe(token, outcome string, elapsed time.Duration) {
	if c.cfg.Observer == nil {
		return
	}
	c.cfg.Observer(Event{Screen: c.cfg.Name, Token: token, Outcome: outcome, Elapsed: elapsed})
}

// Snapshot returns the current session.
func (c *Controller[Q, R]) Snapshot() Session[R] {
	reply := make(chan Session[R], 1)
	if !c.send(func(st *loopState[R]) { reply <- st.session }) {
		return c.final
	}
	return <-reply
}

// Subscribe returns a channel receiving the current session and every later
// change. Delivery is latest-wins: a slow reader sees the newest state, not
// every intermediate one. The channel closes when the controller does or the
// returned cancel func is called.
func (c *Controller[Q, R]) Subscribe() (<-chan Session[R], func()) {
	ch := make(chan Session[R], 1)
	idCh := make(chan int, 1)
	ok := c.send(func(st *loopState[R]) {
		id := st.nextSub
		st.nextSub++
		st.subscribers[id] = ch
		ch <- st.session
		idCh <- id
	})
	if !ok {
		close(ch)
		return ch, func() {}
	}
	id := <-idCh
	cancel := func() {
		c.send(func(st *loopState[R]) {
			if sub, ok := st.subscribers[id]; ok {
				close(sub)
				delete(st.subscribers, id)
			}
		})
	}
	return ch, cancel
}

// Close stops the loop and abandons any outstanding request. Later
// completions are dropped. Close is idempotent.
func (c *Controller[Q, R]) Close() {
	c.cancel()
	<-c.done
}

// Done is closed once the controller has stopped.
func (c *Controller[Q, R]) Done() <-chan struct{} { return c.done }

func publish[R any](st *loopState[R]) {
	for _, ch := range st.subscribers {
		pushLatest(ch, st.session)
	}
}

// pushLatest replaces whatever is buffered in ch with s.
func pushLatest[R any](ch chan Session[R], s Session[R]) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
