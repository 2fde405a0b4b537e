package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mockauth "github.com/target/microshop-ui/internal/mocks/auth"
	"github.com/target/microshop-ui/internal/observability/metrics"
	"github.com/target/microshop-ui/internal/ports"
)

type recordingMetrics struct {
	mu          sync.Mutex
	transitions []metrics.TransitionMetric
	inits       []metrics.InitMetric
}

func (r *recordingMetrics) SessionTransition(in metrics.TransitionMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, in)
}

func (r *recordingMetrics) SessionInit(in metrics.InitMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits = append(r.inits, in)
}

func (r *recordingMetrics) GuardDecision(string, string)     {}
func (r *recordingMetrics) GatewayCall(metrics.GatewayMetric) {}
func (r *recordingMetrics) ClientsActive(int)                 {}

type memoryAudit struct {
	mu     sync.Mutex
	events []ports.AuthEvent
}

func (m *memoryAudit) Record(_ context.Context, ev ports.AuthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryAudit) ListByClient(_ context.Context, clientID string, _ int) ([]ports.AuthEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ports.AuthEvent
	for _, ev := range m.events {
		if ev.ClientID == clientID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memoryAudit) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func newTestRegistry(t *testing.T, obs RegistryObservers) (*SessionRegistry, *mockauth.FakeProvider, *mockauth.MemoryTokenStore) {
	t.Helper()
	provider := mockauth.NewFakeProvider("alice", "CLIENT")
	store := mockauth.NewMemoryTokenStore()
	reg := NewSessionRegistry(SessionRegistryOptions{
		Identity:  IdentityDeps{Provider: provider, Tokens: store, Claims: mockauth.StaticClaimsMapper{}},
		Config:    SessionRegistryConfig{InitTimeout: time.Second, IdleTTL: time.Minute},
		Observers: obs,
	})
	return reg, provider, store
}

func TestSessionRegistry_ClientIsStablePerID(t *testing.T) {
	reg, _, _ := newTestRegistry(t, RegistryObservers{})

	a := reg.Client("a")
	assert.Same(t, a, reg.Client("a"))
	assert.NotSame(t, a, reg.Client("b"))
	assert.Equal(t, 2, reg.Len())

	got, ok := reg.Lookup("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	reg.Forget("a")
	_, ok = reg.Lookup("a")
	assert.False(t, ok)
}

func TestSessionRegistry_ClientsAreIsolated(t *testing.T) {
	reg, _, store := newTestRegistry(t, RegistryObservers{})
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "a", mockauth.FreshTokens("tok-a")))

	assert.True(t, reg.Client("a").Machine.Initialize(ctx).Authenticated)
	assert.False(t, reg.Client("b").Machine.Initialize(ctx).Authenticated)
}

func TestSessionRegistry_Resolve(t *testing.T) {
	reg, provider, store := newTestRegistry(t, RegistryObservers{})
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "a", mockauth.FreshTokens("tok-a")))

	assert.Equal(t, StateUninitialized, reg.StateOf("a"))

	s := reg.Resolve(ctx, "a", time.Second)
	assert.True(t, s.Initialized)
	assert.True(t, s.Authenticated)
	assert.Equal(t, StateReady, reg.StateOf("a"))

	again := reg.Resolve(ctx, "a", time.Second)
	assert.Equal(t, s.Username, again.Username)
	assert.Equal(t, 1, provider.VerifyCalls())
}

func TestSessionRegistry_StateOfUnknownClient(t *testing.T) {
	reg, _, _ := newTestRegistry(t, RegistryObservers{})
	assert.Equal(t, StateUninitialized, reg.StateOf("nobody"))
	assert.Equal(t, 0, reg.Len())
}

func TestSessionRegistry_Sweep(t *testing.T) {
	reg, _, _ := newTestRegistry(t, RegistryObservers{})
	now := time.Now()
	reg.now = func() time.Time { return now }

	reg.Client("old")
	now = now.Add(10 * time.Minute)
	reg.Client("fresh")

	assert.Equal(t, 1, reg.Sweep(5*time.Minute))
	_, ok := reg.Lookup("old")
	assert.False(t, ok)
	_, ok = reg.Lookup("fresh")
	assert.True(t, ok)
}

func TestSessionRegistry_MetricsListener(t *testing.T) {
	rec := &recordingMetrics{}
	reg, _, store := newTestRegistry(t, RegistryObservers{Metrics: rec})
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "a", mockauth.FreshTokens("tok")))

	reg.Client("a").Machine.Initialize(ctx)
	reg.Client("b").Machine.Initialize(ctx)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.transitions, 4)
	require.Len(t, rec.inits, 2)
	results := []string{rec.inits[0].Result, rec.inits[1].Result}
	assert.ElementsMatch(t, []string{metrics.ResultSuccess, metrics.ResultNoop}, results)
}

func TestSessionRegistry_AuditEventsAreWrittenByRun(t *testing.T) {
	audit := &memoryAudit{}
	reg, _, store := newTestRegistry(t, RegistryObservers{Audit: audit})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, store.Save(ctx, "a", mockauth.FreshTokens("tok")))

	go reg.Run(ctx)
	reg.Client("a").Machine.Initialize(ctx)

	require.Eventually(t, func() bool { return audit.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	events, err := audit.ListByClient(ctx, "a", 10)
	require.NoError(t, err)
	assert.Equal(t, "initializing", events[0].ToState)
	assert.Equal(t, "ready", events[1].ToState)
	assert.True(t, events[1].Authenticated)
	assert.Equal(t, "alice", events[1].Username)
	assert.Equal(t, []string{"CLIENT"}, events[1].Roles)
	assert.NotEmpty(t, events[1].ID)
}
