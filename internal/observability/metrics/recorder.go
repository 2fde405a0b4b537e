package metrics

// Package metrics defines the storefront's metric vocabulary and a StatsD-backed recorder.
// The Prometheus implementation lives in internal/observability/prom.

import (
	"maps"
	"strconv"
	"time"

	obserrors "github.com/target/microshop-ui/internal/observability/errors"
	"github.com/target/microshop-ui/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultTimeout = "timeout"
	ResultNoop    = "noop"
)

// Recorder receives the storefront's metric events.
// Implementations must be safe for concurrent use and must never block.
type Recorder interface {
	// SessionTransition counts a session state machine transition.
	SessionTransition(in TransitionMetric)
	// SessionInit records how long one initialization cycle took.
	SessionInit(in InitMetric)
	// GuardDecision counts route guard outcomes per section.
	GuardDecision(section, decision string)
	// GatewayCall records one gateway round trip.
	GatewayCall(in GatewayMetric)
	// ClientsActive reports how many browser clients hold a session machine.
	ClientsActive(n int)
}

// TransitionMetric describes one session state change.
type TransitionMetric struct {
	From          string
	To            string
	Authenticated bool
}

// InitMetric describes one identity round trip.
type InitMetric struct {
	Result   string
	Duration time.Duration
	Err      error
}

// GatewayMetric describes one gateway request.
type GatewayMetric struct {
	Operation string
	Status    int
	Duration  time.Duration
	Err       error
}

// Nop discards every event.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) SessionTransition(TransitionMetric) {}
func (Nop) SessionInit(InitMetric)             {}
func (Nop) GuardDecision(string, string)       {}
func (Nop) GatewayCall(GatewayMetric)          {}
func (Nop) ClientsActive(int)                  {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// StatsD emits events through a statsd.Sink.
type StatsD struct {
	Sink statsd.Sink
}

var _ Recorder = StatsD{}

// SessionTransition emits session.transition.
func (s StatsD) SessionTransition(in TransitionMetric) {
	if s.Sink == nil {
		return
	}
	s.Sink.Count("session.transition", 1, map[string]string{
		"from":          in.From,
		"to":            in.To,
		"authenticated": strconv.FormatBool(in.Authenticated),
	})
}

// SessionInit emits session.init and session.init.duration.
func (s StatsD) SessionInit(in InitMetric) {
	if s.Sink == nil {
		return
	}
	tags := map[string]string{"result": in.Result}
	if in.Err != nil && in.Result != ResultSuccess {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	s.Sink.Count("session.init", 1, tags)
	if in.Duration > 0 {
		s.Sink.Timing("session.init.duration", in.Duration, CloneTags(tags))
	}
}

// GuardDecision emits guard.decision.
func (s StatsD) GuardDecision(section, decision string) {
	if s.Sink == nil {
		return
	}
	s.Sink.Count("guard.decision", 1, map[string]string{"section": section, "decision": decision})
}

// GatewayCall emits gateway.request and gateway.request.duration.
func (s StatsD) GatewayCall(in GatewayMetric) {
	if s.Sink == nil {
		return
	}
	tags := map[string]string{
		"operation": in.Operation,
		"status":    StatusClass(in.Status),
	}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	s.Sink.Count("gateway.request", 1, tags)
	if in.Duration > 0 {
		s.Sink.Timing("gateway.request.duration", in.Duration, CloneTags(tags))
	}
}

// ClientsActive emits the clients.active gauge.
func (s StatsD) ClientsActive(n int) {
	if s.Sink == nil {
		return
	}
	s.Sink.Gauge("clients.active", float64(n), nil)
}

// StatusClass buckets an HTTP status as "2xx", "4xx" and so on; 0 means no response.
func StatusClass(status int) string {
	if status <= 0 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
