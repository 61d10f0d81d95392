package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/MrEthical07/tenantAuth/internal/logging"
)

// Event is one security-relevant occurrence: a login, a lockout, a revocation
// or a tenant violation.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	TenantID  string            `json:"tenant_id,omitempty"`
	TokenID   string            `json:"token_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// TenantSink routes each event to the sink registered for its TenantID.
// Events of unrouted tenants, and events carrying no tenant such as a
// missing-tenant rejection, go to the fallback.
type TenantSink struct {
	mu       sync.RWMutex
	routes   map[string]Sink
	fallback Sink
}

// NewTenantSink returns a router whose unrouted events go to fallback. A nil
// fallback discards them.
func NewTenantSink(fallback Sink) *TenantSink {
	if fallback == nil {
		fallback = NoOpSink{}
	}
	return &TenantSink{routes: make(map[string]Sink), fallback: fallback}
}

// Route sends the events of tenantID to sink. A nil sink removes the route.
func (s *TenantSink) Route(tenantID string, sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sink == nil {
		delete(s.routes, tenantID)
		return
	}
	s.routes[tenantID] = sink
}

func (s *TenantSink) Emit(ctx context.Context, event Event) {
	s.mu.RLock()
	sink, ok := s.routes[event.TenantID]
	s.mu.RUnlock()
	if !ok || event.TenantID == "" {
		sink = s.fallback
	}
	sink.Emit(ctx, event)
}

// LogSink writes each event as one structured pslog entry, audit.event on
// success and audit.event.failure otherwise.
type LogSink struct {
	logger pslog.Logger
}

// NewLogSink returns a sink writing to logger under the audit subsystem.
func NewLogSink(logger pslog.Logger) *LogSink {
	return &LogSink{logger: logging.WithSubsystem(logger, "audit")}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	fields := []any{
		"event_type", event.EventType,
		"tenant_id", event.TenantID,
		"user_id", event.UserID,
		"token_id", event.TokenID,
		"ip", event.IP,
		"at", event.Timestamp,
	}
	for k, v := range event.Metadata {
		fields = append(fields, "meta."+k, v)
	}
	if event.Success {
		s.logger.Info("audit.event", fields...)
		return
	}
	s.logger.Warn("audit.event.failure", append(fields, "error", event.Error)...)
}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink returns a sink whose channel holds up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
