// Package stats tracks assistant activity counters.
package stats

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Collector collects activity counters. It is safe for concurrent use and a
// nil *Collector ignores every record call.
type Collector struct {
	startTime     time.Time
	turns         atomic.Int64
	rounds        atomic.Int64
	toolCalls     atomic.Int64
	toolFailures  atomic.Int64
	modelErrors   atomic.Int64
	ceilingHits   atomic.Int64
	tokens        atomic.Int64
	totalDuration atomic.Int64 // nanoseconds
}

// NewCollector creates a new stats collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
	}
}

// Snapshot is the state of a collector at a point in time.
type Snapshot struct {
	Uptime       string  `json:"uptime"`
	Goroutines   int     `json:"goroutines"`
	HeapAllocMB  float64 `json:"heap_alloc_mb"`
	Turns        int64   `json:"turns"`
	Rounds       int64   `json:"rounds"`
	ToolCalls    int64   `json:"tool_calls"`
	ToolFailures int64   `json:"tool_failures"`
	ModelErrors  int64   `json:"model_errors"`
	CeilingHits  int64   `json:"ceiling_hits"`
	Tokens       int64   `json:"tokens"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Snapshot returns the current counters.
func (c *Collector) Snapshot() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s := Snapshot{
		Uptime:       time.Since(c.startTime).Round(time.Second).String(),
		Goroutines:   runtime.NumGoroutine(),
		HeapAllocMB:  bytesToMB(int64(m.HeapAlloc)),
		Turns:        c.turns.Load(),
		Rounds:       c.rounds.Load(),
		ToolCalls:    c.toolCalls.Load(),
		ToolFailures: c.toolFailures.Load(),
		ModelErrors:  c.modelErrors.Load(),
		CeilingHits:  c.ceilingHits.Load(),
		Tokens:       c.tokens.Load(),
	}
	if s.Turns > 0 {
		s.AvgLatencyMs = float64(c.totalDuration.Load()) / float64(s.Turns) / 1e6
	}
	return s
}

// RecordTurn records a completed turn.
func (c *Collector) RecordTurn(tokens int, duration time.Duration) {
	if c == nil {
		return
	}
	c.turns.Add(1)
	c.tokens.Add(int64(tokens))
	c.totalDuration.Add(duration.Nanoseconds())
}

// RecordRound records one model round trip.
func (c *Collector) RecordRound() {
	if c != nil {
		c.rounds.Add(1)
	}
}

// RecordToolCall records a tool invocation and whether it failed.
func (c *Collector) RecordToolCall(failed bool) {
	if c == nil {
		return
	}
	c.toolCalls.Add(1)
	if failed {
		c.toolFailures.Add(1)
	}
}

// RecordModelError records a failed model call.
func (c *Collector) RecordModelError() {
	if c != nil {
		c.modelErrors.Add(1)
	}
}

// RecordCeilingHit records a turn stopped by the round ceiling.
func (c *Collector) RecordCeilingHit() {
	if c != nil {
		c.ceilingHits.Add(1)
	}
}

// StartTime returns when the collector started.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// bytesToMB converts bytes to megabytes.
func bytesToMB(b int64) float64 {
	return float64(b) / 1024 / 1024
}
