package cuenta

import (
	"io"

	"github.com/gestionlocal/cuenta/internal/audit"
)

// AuditEvent is one recorded step of an account operation.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine. Emit must
// not block for long: with DropIfFull set, a slow sink loses events.
type AuditSink = audit.Sink

type NoOpSink = audit.NoOpSink

type ChannelSink = audit.ChannelSink

type JSONWriterSink = audit.JSONWriterSink

// MultiSink fans one event out to several sinks in order.
type MultiSink = audit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
