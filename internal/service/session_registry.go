package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/observability/metrics"
	"github.com/target/microshop-ui/internal/ports"
)

const (
	// DefaultClientIdleTTL evicts clients not seen for this long.
	DefaultClientIdleTTL = 30 * time.Minute
	auditQueueSize       = 256
	auditWriteTimeout    = 5 * time.Second
)

// Client is one browser client's session machine and identity adapter.
type Client struct {
	ID      string
	Machine *SessionMachine
	Adapter *IdentityAdapter

	lastSeen atomic.Int64
}

// LastSeen reports when the client was last resolved through the registry.
func (c *Client) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Client) touch(now time.Time) {
	c.lastSeen.Store(now.UnixNano())
}

// SessionRegistryConfig tunes machines created by the registry and idle eviction.
type SessionRegistryConfig struct {
	InitTimeout time.Duration
	IdleTTL     time.Duration
}

// RegistryObservers are attached to every machine the registry creates.
// All fields are optional.
type RegistryObservers struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder
	Audit   ports.AuthEventRepository
}

// SessionRegistryOptions groups dependencies for SessionRegistry.
type SessionRegistryOptions struct {
	Identity  IdentityDeps
	Config    SessionRegistryConfig
	Observers RegistryObservers
}

// SessionRegistry maps client ids to their session machines.
type SessionRegistry struct {
	identity IdentityDeps
	config   SessionRegistryConfig
	logger   *slog.Logger
	metrics  metrics.Recorder
	audit    ports.AuthEventRepository
	auditCh  chan ports.AuthEvent
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]*Client
}

// NewSessionRegistry constructs a SessionRegistry.
func NewSessionRegistry(opts SessionRegistryOptions) *SessionRegistry {
	if opts.Identity.Provider == nil || opts.Identity.Tokens == nil || opts.Identity.Claims == nil {
		panic("session registry requires provider, token repository and claims mapper")
	}
	cfg := opts.Config
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = DefaultInitTimeout
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultClientIdleTTL
	}
	logger := opts.Observers.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &SessionRegistry{
		identity: opts.Identity,
		config:   cfg,
		logger:   logger.With("component", "session_registry"),
		metrics:  metrics.OrNop(opts.Observers.Metrics),
		audit:    opts.Observers.Audit,
		now:      time.Now,
		clients:  make(map[string]*Client),
	}
	if r.audit != nil {
		r.auditCh = make(chan ports.AuthEvent, auditQueueSize)
	}
	return r
}

// Client returns the client for id, creating its machine on first use.
func (r *SessionRegistry) Client(id string) *Client {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		c.touch(now)
		return c
	}
	c := r.newClientLocked(id)
	c.touch(now)
	r.clients[id] = c
	return c
}

// Lookup returns the client for id without creating it.
func (r *SessionRegistry) Lookup(id string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	return c, ok
}

// Resolve returns the client's current snapshot, starting initialization if needed
// and waiting up to wait for the machine to become Ready.
func (r *SessionRegistry) Resolve(ctx context.Context, id string, wait time.Duration) domainauth.Session {
	m := r.Client(id).Machine
	m.Start()
	return m.Await(ctx, wait)
}

// StateOf reports the lifecycle state of id's machine; unknown clients are Uninitialized.
func (r *SessionRegistry) StateOf(id string) State {
	c, ok := r.Lookup(id)
	if !ok {
		return StateUninitialized
	}
	return c.Machine.State()
}

// Forget drops the client for id.
func (r *SessionRegistry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
}

// Len reports how many clients are tracked.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep evicts clients idle for longer than idle and returns how many were removed.
// Stored tokens are kept, so a returning client re-initializes from them.
func (r *SessionRegistry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, c := range r.clients {
		if c.LastSeen().Before(cutoff) && c.Machine.State() != StateInitializing {
			delete(r.clients, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle clients and drains the audit queue until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context) {
	interval := r.config.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.drainAudit()
			return
		case <-ticker.C:
			if n := r.Sweep(r.config.IdleTTL); n > 0 {
				r.logger.DebugContext(ctx, "evicted idle clients", "count", n)
			}
			r.metrics.ClientsActive(r.Len())
		case ev := <-r.auditCh:
			r.writeAudit(ev)
		}
	}
}

func (r *SessionRegistry) newClientLocked(id string) *Client {
	adapter := NewIdentityAdapter(IdentityAdapterOptions{
		ClientID: id,
		Deps:     r.identity,
		Logger:   r.logger,
	})
	machine := NewSessionMachine(SessionMachineOptions{
		Source: adapter,
		Config: SessionMachineConfig{InitTimeout: r.config.InitTimeout},
		Logger: r.logger.With("client_id", id),
	})
	machine.Subscribe(r.logListener(id))
	machine.Subscribe(r.metricsListener())
	if r.auditCh != nil {
		machine.Subscribe(r.auditListener(id))
	}
	return &Client{ID: id, Machine: machine, Adapter: adapter}
}

func (r *SessionRegistry) logListener(id string) Listener {
	return func(tr Transition) {
		attrs := []any{
			"client_id", id,
			"from", tr.From.String(),
			"to", tr.To.String(),
			"reason", tr.Reason,
			"authenticated", tr.Session.Authenticated,
		}
		if tr.Session.Authenticated {
			attrs = append(attrs, "username", tr.Session.Username, "roles", tr.Session.Roles.Strings())
		}
		if tr.Elapsed > 0 {
			attrs = append(attrs, "elapsed", tr.Elapsed)
		}
		if tr.To != StateReady {
			r.logger.Debug("session transition", attrs...)
			return
		}
		r.logger.Info("session transition", attrs...)
	}
}

func (r *SessionRegistry) metricsListener() Listener {
	return func(tr Transition) {
		r.metrics.SessionTransition(metrics.TransitionMetric{
			From:          tr.From.String(),
			To:            tr.To.String(),
			Authenticated: tr.Session.Authenticated,
		})
		if tr.From != StateInitializing || tr.To != StateReady {
			return
		}
		result := metrics.ResultSuccess
		switch {
		case tr.Reason == ReasonTimeout:
			result = metrics.ResultTimeout
		case tr.Err != nil:
			result = metrics.ResultError
		case !tr.Session.Authenticated:
			result = metrics.ResultNoop
		}
		r.metrics.SessionInit(metrics.InitMetric{Result: result, Duration: tr.Elapsed, Err: tr.Err})
	}
}

func (r *SessionRegistry) auditListener(id string) Listener {
	return func(tr Transition) {
		ev := ports.AuthEvent{
			ID:            uuid.NewString(),
			ClientID:      id,
			FromState:     tr.From.String(),
			ToState:       tr.To.String(),
			Authenticated: tr.Session.Authenticated,
			Username:      tr.Session.Username,
			Roles:         tr.Session.Roles.Strings(),
			OccurredAt:    tr.At,
		}
		select {
		case r.auditCh <- ev:
		default:
			r.logger.Warn("audit queue full, dropping session event", "client_id", id)
		}
	}
}

func (r *SessionRegistry) drainAudit() {
	for {
		select {
		case ev := <-r.auditCh:
			r.writeAudit(ev)
		default:
			return
		}
	}
}

func (r *SessionRegistry) writeAudit(ev ports.AuthEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	if err := r.audit.Record(ctx, ev); err != nil {
		r.logger.Warn("failed to record session event", "client_id", ev.ClientID, "error", err)
	}
}
