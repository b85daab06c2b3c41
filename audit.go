package goFaceAuth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/MrEthical07/goFaceAuth/internal/stores"
	"github.com/go-logr/logr"
)

// AuditRecord is one immutable entry of the biometric audit trail.
type AuditRecord struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	Identity   string            `json:"identity,omitempty"`
	Origin     string            `json:"origin,omitempty"`
	Success    bool              `json:"success"`
	Confidence float64           `json:"confidence"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit records from the engine's dispatcher goroutine.
// Emit must not retain ctx.
type AuditSink interface {
	Emit(ctx context.Context, record AuditRecord)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditRecord) {}

type ChannelSink struct {
	records chan AuditRecord
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		records: make(chan AuditRecord, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, record AuditRecord) {
	select {
	case s.records <- record:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Records() <-chan AuditRecord {
	return s.records
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, record AuditRecord) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// MultiSink fans every record out to each sink in order.
type MultiSink []AuditSink

func (m MultiSink) Emit(ctx context.Context, record AuditRecord) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, record)
		}
	}
}

// redisAuditSink keeps the per-identity history served by
// Engine.AuditHistory.
type redisAuditSink struct {
	log    *stores.AuditLogStore
	logger logr.Logger
}

func (s *redisAuditSink) Emit(ctx context.Context, record AuditRecord) {
	if record.Identity == "" {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		s.logger.Error(err, "encode audit record", "event", record.EventType)
		return
	}
	if _, err := s.log.Append(ctx, record.Identity, payload); err != nil {
		s.logger.Error(err, "append audit record", "event", record.EventType, "identity", record.Identity)
	}
}
