package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Stats() != (Stats{}) {
		t.Fatal("nil dispatcher must report zero stats")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "pin_requested"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and buffer of one")
	}
	close(sink.release)
	d.Close()

	st := d.Stats()
	if st.Emitted+st.Dropped != 10 {
		t.Fatalf("expected every event to be delivered or dropped, got %+v", st)
	}
}

func TestDispatcherFlushesOnClose(t *testing.T) {
	ch := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, ch)
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "pin_verified", Field: "email"})
	}
	d.Close()
	d.Emit(context.Background(), Event{EventType: "after_close"})

	if got := len(ch.Events()); got != 5 {
		t.Fatalf("expected 5 delivered events, got %d", got)
	}
}

func TestJSONWriterSinkAndMulti(t *testing.T) {
	var buf bytes.Buffer
	ch := NewChannelSink(1)
	sink := MultiSink{NewJSONWriterSink(&buf), nil, ch}
	sink.Emit(context.Background(), Event{
		Timestamp: time.Unix(0, 0).UTC(),
		EventType: "mutation_submitted",
		FlowID:    "f-1",
		PersonaID: 41,
		Field:     "username",
		Success:   true,
	})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("invalid json line %q: %v", line, err)
	}
	if decoded["field"] != "username" || decoded["flow_id"] != "f-1" {
		t.Fatalf("unexpected json: %v", decoded)
	}
	if e := <-ch.Events(); e.EventType != "mutation_submitted" {
		t.Fatalf("channel sink missed event: %+v", e)
	}
}
