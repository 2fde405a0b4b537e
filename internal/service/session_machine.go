package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
)

// DefaultInitTimeout bounds one identity initialization cycle.
const DefaultInitTimeout = 10 * time.Second

// State is the lifecycle state of a SessionMachine.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition reasons.
const (
	ReasonInitialize = "initialize"
	ReasonLogin      = "login"
	ReasonLogout     = "logout"
	ReasonTimeout    = "timeout"
)

// Transition is delivered to listeners on every state change.
// Session is the complete snapshot after the change.
type Transition struct {
	From    State
	To      State
	Session domainauth.Session
	Reason  string
	// Elapsed and Err are set when an initialization cycle completes.
	Elapsed time.Duration
	Err     error
	At      time.Time
}

// Listener observes transitions. Listeners run synchronously while the
// machine holds its notification lock and must not call mutating methods.
type Listener func(Transition)

// IdentitySource resolves and clears one client's identity.
type IdentitySource interface {
	Resolve(ctx context.Context) (domainauth.Session, error)
	Logout(ctx context.Context) string
}

// SessionMachineConfig tunes a SessionMachine.
type SessionMachineConfig struct {
	InitTimeout time.Duration
}

// SessionMachineOptions groups dependencies for SessionMachine.
type SessionMachineOptions struct {
	Source IdentitySource
	Config SessionMachineConfig
	Logger *slog.Logger
}

type subscription struct {
	id int
	fn Listener
}

// SessionMachine owns one client's session: Uninitialized → Initializing → Ready.
// Concurrent Initialize calls share a single identity round trip.
type SessionMachine struct {
	source  IdentitySource
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	// notifyMu is held across mutate and deliver so listeners see transitions in order.
	notifyMu sync.Mutex

	mu        sync.Mutex
	state     State
	session   domainauth.Session
	inflight  chan struct{}
	listeners []subscription
	nextID    int
}

// NewSessionMachine constructs a SessionMachine in StateUninitialized.
func NewSessionMachine(opts SessionMachineOptions) *SessionMachine {
	if opts.Source == nil {
		panic("session machine requires an identity source")
	}
	timeout := opts.Config.InitTimeout
	if timeout <= 0 {
		timeout = DefaultInitTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionMachine{
		source:  opts.Source,
		timeout: timeout,
		logger:  logger.With("component", "session_machine"),
		now:     time.Now,
		session: domainauth.Anonymous(false),
	}
}

// Snapshot returns the current session. It is always valid; check Initialized.
func (m *SessionMachine) Snapshot() domainauth.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Clone()
}

// State returns the current lifecycle state.
func (m *SessionMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers l for every subsequent transition.
func (m *SessionMachine) Subscribe(l Listener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, subscription{id: id, fn: l})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.listeners {
			if s.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Initialize resolves the session once. The first caller starts the cycle,
// concurrent callers join it, and callers after Ready get the cached snapshot.
// If ctx ends first the current, possibly uninitialized, snapshot is returned
// while the cycle carries on in the background.
func (m *SessionMachine) Initialize(ctx context.Context) domainauth.Session {
	done, _ := m.cycle(ctx, false)
	if done == nil {
		return m.Snapshot()
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
	return m.Snapshot()
}

// Start begins initialization without waiting for it.
func (m *SessionMachine) Start() {
	m.cycle(context.Background(), false)
}

// Await waits up to d for the machine to become Ready and returns the current snapshot.
func (m *SessionMachine) Await(ctx context.Context, d time.Duration) domainauth.Session {
	m.mu.Lock()
	state, done := m.state, m.inflight
	m.mu.Unlock()
	if state == StateReady || done == nil || d <= 0 {
		return m.Snapshot()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
	return m.Snapshot()
}

// Reinitialize runs a fresh cycle after new tokens were stored (Ready →
// Initializing → Ready). A cycle already in flight may predate the tokens,
// so it is awaited and followed by a new one.
func (m *SessionMachine) Reinitialize(ctx context.Context) domainauth.Session {
	for {
		done, fresh := m.cycle(ctx, true)
		if done == nil {
			return m.Snapshot()
		}
		select {
		case <-done:
		case <-ctx.Done():
			return m.Snapshot()
		}
		if fresh {
			return m.Snapshot()
		}
	}
}

// Logout clears the client's identity and moves to Ready(anonymous).
// It returns the ID token hint for provider-side logout.
func (m *SessionMachine) Logout(ctx context.Context) string {
	// Holding notifyMu keeps a new cycle from starting until the anonymous
	// snapshot is applied; a cycle already in flight is awaited first so its
	// result cannot overwrite the logout. Waits are bounded by the init timeout.
	for {
		m.notifyMu.Lock()
		m.mu.Lock()
		if m.state != StateInitializing {
			m.mu.Unlock()
			break
		}
		done := m.inflight
		m.mu.Unlock()
		m.notifyMu.Unlock()
		<-done
	}
	defer m.notifyMu.Unlock()

	hint := m.source.Logout(ctx)

	m.mu.Lock()
	if m.state == StateReady && !m.session.Authenticated {
		m.mu.Unlock()
		return hint
	}
	tr := m.applyLocked(StateReady, domainauth.Anonymous(true), ReasonLogout)
	listeners := m.listenersLocked()
	m.mu.Unlock()
	deliver(listeners, tr)
	return hint
}

// cycle returns the channel closed when the relevant cycle completes, or nil
// when the machine is Ready and restart is false. fresh reports whether this
// call started the cycle.
func (m *SessionMachine) cycle(ctx context.Context, restart bool) (<-chan struct{}, bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	switch {
	case m.state == StateInitializing:
		done := m.inflight
		m.mu.Unlock()
		return done, false
	case m.state == StateReady && !restart:
		m.mu.Unlock()
		return nil, false
	}

	reason := ReasonInitialize
	if m.state == StateReady {
		reason = ReasonLogin
	}
	done := make(chan struct{})
	m.inflight = done
	tr := m.applyLocked(StateInitializing, domainauth.Anonymous(false), reason)
	listeners := m.listenersLocked()
	m.mu.Unlock()

	deliver(listeners, tr)
	go m.run(ctx, done, reason)
	return done, true
}

// run performs the single identity round trip of a cycle.
func (m *SessionMachine) run(parent context.Context, done chan struct{}, reason string) {
	start := m.now()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), m.timeout)
	defer cancel()

	type result struct {
		sess domainauth.Session
		err  error
	}
	results := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				results <- result{sess: domainauth.Anonymous(true), err: fmt.Errorf("identity source panic: %v", rec)}
			}
		}()
		s, err := m.source.Resolve(ctx)
		results <- result{sess: s, err: err}
	}()

	var res result
	select {
	case res = <-results:
	case <-ctx.Done():
		res = result{sess: domainauth.Anonymous(true), err: ctx.Err()}
		reason = ReasonTimeout
		m.logger.WarnContext(parent, "identity initialization timed out", "timeout", m.timeout)
	}
	if !res.sess.Initialized {
		res.sess = domainauth.Anonymous(true)
	}

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.mu.Lock()
	tr := m.applyLocked(StateReady, res.sess, reason)
	tr.Elapsed = m.now().Sub(start)
	tr.Err = res.err
	m.inflight = nil
	listeners := m.listenersLocked()
	m.mu.Unlock()

	deliver(listeners, tr)
	close(done)
}

func (m *SessionMachine) applyLocked(to State, sess domainauth.Session, reason string) Transition {
	tr := Transition{
		From:    m.state,
		To:      to,
		Session: sess.Clone(),
		Reason:  reason,
		At:      m.now(),
	}
	m.state = to
	m.session = sess.Clone()
	return tr
}

func (m *SessionMachine) listenersLocked() []Listener {
	out := make([]Listener, len(m.listeners))
	for i, s := range m.listeners {
		out[i] = s.fn
	}
	return out
}

func deliver(listeners []Listener, tr Transition) {
	for _, l := range listeners {
		c := tr
		c.Session = tr.Session.Clone()
		l(c)
	}
}
