// Package natssink publishes audit events to NATS as JSON, one message
// per event on "<prefix>.<event_type>".
package natssink

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/MrEthical07/classgate"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is used when Options.SubjectPrefix is empty.
const DefaultSubjectPrefix = "classgate.audit"

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

type Options struct {
	SubjectPrefix string
	Logger        *slog.Logger
}

// Sink implements classgate.AuditSink. Publish failures are logged and
// dropped; the dispatcher never sees them.
type Sink struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
}

func New(pub Publisher, opts Options) *Sink {
	prefix := strings.TrimSuffix(strings.TrimSpace(opts.SubjectPrefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{pub: pub, prefix: prefix, logger: logger}
}

// Subject returns the NATS subject for eventType.
func (s *Sink) Subject(eventType string) string {
	if eventType == "" {
		eventType = "unknown"
	}
	return s.prefix + "." + eventType
}

func (s *Sink) Emit(ctx context.Context, event classgate.AuditEvent) {
	if s == nil || s.pub == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode audit event", "event_type", event.EventType, "error", err)
		return
	}

	msg := nats.NewMsg(s.Subject(event.EventType))
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set("Classgate-Event", event.EventType)

	if err := s.pub.PublishMsg(msg); err != nil {
		s.logger.WarnContext(ctx, "publish audit event", "subject", msg.Subject, "error", err)
	}
}

// Connect dials url with reconnect settings suited to a long-running
// publisher.
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
}
