package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq atomic.Uint64

// OperationStats aggregates every observation of one operation.
type OperationStats struct {
	Calls   int64   `json:"calls"`
	Errors  int64   `json:"errors"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// ExpvarMetricsSnapshot is the document published under the recorder's
// expvar name.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// ExpvarMetricsRecorder aggregates operation stats and publishes them on
// /debug/vars.
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]OperationStats
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated unique name when empty. expvar panics on duplicate names.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("procureflow_operations_%d", expvarSeq.Add(1))
	}
	rec := &ExpvarMetricsRecorder{name: name, ops: make(map[string]OperationStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name is the expvar key.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot copies the current stats.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ExpvarMetricsSnapshot{Operations: maps.Clone(r.ops), RecordedAt: time.Now().UTC()}
}

// Observe folds one outcome into the operation's stats. Unnamed operations
// are dropped.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.ops[operation]
	st.Calls++
	if !success {
		st.Errors++
	}
	st.TotalMS += ms
	st.MaxMS = max(st.MaxMS, ms)
	r.ops[operation] = st
}

func outcomeLabel(success bool) string {
	if success {
		return string(AuditStatusSuccess)
	}
	return string(AuditStatusError)
}

// SpanRecord is one finished span as written by JSONTracer.
type SpanRecord struct {
	Operation  string    `json:"operation"`
	RequestID  string    `json:"request_id,omitempty"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// JSONTracer writes one JSON line per finished span and keeps the most
// recent spans in memory.
type JSONTracer struct {
	mu     sync.Mutex
	enc    *json.Encoder
	retain int
	recent []SpanRecord
}

// NewJSONTracer writes spans to w, which may be nil, and retains the last
// retain spans for Recent.
func NewJSONTracer(w io.Writer, retain int) *JSONTracer {
	t := &JSONTracer{retain: max(retain, 0)}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Recent returns the retained spans, oldest first.
func (t *JSONTracer) Recent() []SpanRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SpanRecord(nil), t.recent...)
}

// Start opens a span tagged with the context's request id.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{
		tracer: t,
		record: SpanRecord{Operation: operation, RequestID: RequestIDFromContext(ctx), StartedAt: time.Now().UTC()},
	}
}

func (t *JSONTracer) finish(rec SpanRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.retain > 0 {
		if len(t.recent) == t.retain {
			t.recent = append(t.recent[:0], t.recent[1:]...)
		}
		t.recent = append(t.recent, rec)
	}
	if t.enc != nil {
		_ = t.enc.Encode(rec)
	}
}

type jsonSpan struct {
	tracer *JSONTracer
	record SpanRecord
}

func (s *jsonSpan) End(err error) {
	rec := s.record
	rec.DurationMS = float64(time.Since(rec.StartedAt)) / float64(time.Millisecond)
	rec.Status = outcomeLabel(err == nil)
	if err != nil {
		rec.Error = err.Error()
	}
	s.tracer.finish(rec)
}
