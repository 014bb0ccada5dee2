package domain

import (
	"context"
	"time"
)

type dockingTraceKey struct{}

// DockingTrace collects per-request docking facts for response headers and the request log line.
// The HTTP layer puts a mutable pointer into the context before calling the service,
// the engine chain writes to it and the HTTP layer reads it afterwards.
type DockingTrace struct {
	CacheChecked bool
	CacheHit     bool
	EngineTime   time.Duration
}

// NewContextWithTrace returns a context with an embedded trace collector.
func NewContextWithTrace(ctx context.Context) (context.Context, *DockingTrace) {
	t := &DockingTrace{}
	return context.WithValue(ctx, dockingTraceKey{}, t), t
}

// TraceFromContext extracts the trace collector from context. Returns nil if not set.
func TraceFromContext(ctx context.Context) *DockingTrace {
	t, _ := ctx.Value(dockingTraceKey{}).(*DockingTrace)
	return t
}

// RecordCache records a cache lookup outcome.
func (t *DockingTrace) RecordCache(hit bool) {
	if t != nil {
		t.CacheChecked = true
		t.CacheHit = hit
	}
}

// RecordEngineTime records time spent inside the engine.
func (t *DockingTrace) RecordEngineTime(d time.Duration) {
	if t != nil {
		t.EngineTime += d
	}
}
