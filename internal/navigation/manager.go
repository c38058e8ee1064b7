// Package navigation runs car navigation sessions that re-plan the route on a
// timer and push each result to the session's stream topic.
package navigation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"backend-barrierfree/internal/observability"
	"backend-barrierfree/internal/routing"
	"backend-barrierfree/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval = 30 * time.Second
	recordTimeout   = 5 * time.Second
)

var (
	ErrNotFound  = errors.New("navigation session not found")
	ErrForbidden = errors.New("navigation session belongs to another user")
	ErrClosed    = errors.New("navigation is shutting down")
)

type Planner interface {
	Plan(ctx context.Context, key string, req routing.PlanRequest) (routing.Plan, error)
}

type Broadcaster interface {
	Broadcast(topic string, payload []byte)
}

// Recorder persists the positions a session moves through. Failures are
// logged and never stop navigation.
type Recorder interface {
	Begin(ctx context.Context, sessionID, userID string, start geo.Point) error
	Record(ctx context.Context, sessionID string, pos geo.Point) error
	Finish(ctx context.Context, sessionID string) error
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Position  geo.Point `json:"position"`
	End       geo.Point `json:"end"`
	Topic     string    `json:"topic"`
	StartedAt time.Time `json:"started_at"`
}

// Update is the payload pushed on every recompute.
type Update struct {
	SessionID string          `json:"session_id"`
	Seq       int             `json:"seq"`
	At        time.Time       `json:"at"`
	Option    *routing.Option `json:"option,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func Topic(sessionID string) string { return "navigation:" + sessionID }

type running struct {
	mu      sync.Mutex
	session Session
	cancel  context.CancelFunc
	kick    chan struct{}
}

func (r *running) snapshot() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Manager owns at most one session per user; starting another supersedes it.
type Manager struct {
	planner  Planner
	out      Broadcaster
	interval time.Duration
	log      logrus.FieldLogger
	recorder Recorder

	mu       sync.Mutex
	sessions map[string]*running
	byUser   map[string]string
	closed   bool
	wg       sync.WaitGroup
}

type Option func(*Manager)

func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

func NewManager(planner Planner, out Broadcaster, interval time.Duration, log logrus.FieldLogger, opts ...Option) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Manager{
		planner:  planner,
		out:      out,
		interval: interval,
		log:      log,
		sessions: map[string]*running{},
		byUser:   map[string]string{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Start(userID string, from, to geo.Point) (Session, error) {
	if err := from.Validate(); err != nil {
		return Session{}, err
	}
	if err := to.Validate(); err != nil {
		return Session{}, err
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{
		session: Session{ID: id, UserID: userID, Position: from, End: to, Topic: Topic(id), StartedAt: time.Now().UTC()},
		cancel:  cancel,
		kick:    make(chan struct{}, 1),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return Session{}, ErrClosed
	}
	if prevID, ok := m.byUser[userID]; ok {
		m.stopLocked(prevID)
	}
	m.sessions[id] = r
	m.byUser[userID] = id
	m.wg.Add(1)
	m.mu.Unlock()

	observability.NavigationSessions.Inc()
	m.record(id, "begin", func(ctx context.Context) error {
		return m.recorder.Begin(ctx, id, userID, from)
	})
	go m.run(ctx, r)
	return r.snapshot(), nil
}

// UpdatePosition moves the session origin and triggers an immediate re-plan.
func (m *Manager) UpdatePosition(userID, id string, pos geo.Point) (Session, error) {
	if err := pos.Validate(); err != nil {
		return Session{}, err
	}
	r, err := m.owned(userID, id)
	if err != nil {
		return Session{}, err
	}
	r.mu.Lock()
	r.session.Position = pos
	r.mu.Unlock()
	m.record(id, "position", func(ctx context.Context) error {
		return m.recorder.Record(ctx, id, pos)
	})
	select {
	case r.kick <- struct{}{}:
	default:
	}
	return r.snapshot(), nil
}

func (m *Manager) Get(userID, id string) (Session, error) {
	r, err := m.owned(userID, id)
	if err != nil {
		return Session{}, err
	}
	return r.snapshot(), nil
}

func (m *Manager) Stop(userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if r.session.UserID != userID {
		return ErrForbidden
	}
	m.stopLocked(id)
	return nil
}

// Active reports the number of running sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close cancels every session and waits for the workers to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for id := range m.sessions {
		m.stopLocked(id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) owned(userID, id string) (*running, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.session.UserID != userID {
		return nil, ErrForbidden
	}
	return r, nil
}

func (m *Manager) stopLocked(id string) {
	r, ok := m.sessions[id]
	if !ok {
		return
	}
	r.cancel()
	delete(m.sessions, id)
	if m.byUser[r.session.UserID] == id {
		delete(m.byUser, r.session.UserID)
	}
}

func (m *Manager) record(sessionID, step string, fn func(ctx context.Context) error) {
	if m.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{"session_id": sessionID, "step": step}).Warn("navigation trail not recorded")
	}
}

func (m *Manager) run(ctx context.Context, r *running) {
	defer m.wg.Done()
	defer observability.NavigationSessions.Dec()
	defer m.record(r.session.ID, "finish", func(ctx context.Context) error {
		return m.recorder.Finish(ctx, r.session.ID)
	})

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	seq := 0
	for {
		seq++
		m.refresh(ctx, r, seq)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.kick:
			ticker.Reset(m.interval)
		}
	}
}

func (m *Manager) refresh(ctx context.Context, r *running, seq int) {
	s := r.snapshot()
	plan, err := m.planner.Plan(ctx, "nav:"+s.ID, routing.PlanRequest{
		Start: s.Position,
		End:   s.End,
		Modes: []routing.Mode{routing.ModeCar},
	})
	if ctx.Err() != nil {
		return
	}

	upd := Update{SessionID: s.ID, Seq: seq, At: time.Now().UTC()}
	switch {
	case err != nil:
		m.log.WithError(err).WithField("session_id", s.ID).Warn("navigation refresh failed")
		upd.Error = err.Error()
	case len(plan.Options) == 0:
		upd.Error = routing.ErrNoRoute.Error()
	default:
		upd.Option = &plan.Options[0]
	}
	payload, err := json.Marshal(upd)
	if err != nil {
		m.log.WithError(err).Error("marshal navigation update")
		return
	}
	m.out.Broadcast(s.Topic, payload)
}
