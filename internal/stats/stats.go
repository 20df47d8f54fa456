// Package stats collects request/response telemetry for generation requests:
// one Response handle per request, aggregated into running totals.
// Safe for concurrent use from multiple in-flight message handlers.
package stats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Response tracks a single request/response cycle. Obtain one from
// Aggregate.LogRequestArrived and report it back exactly once via
// LogResponseSuccess or LogResponseFailure.
type Response struct {
	RequestID uuid.UUID

	mu          sync.Mutex
	promptChars int
	startedAt   time.Time
	firstPartAt time.Time
	parts       int
}

// LogResponsePart records one sent reply fragment.
func (r *Response) LogResponsePart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parts == 0 {
		r.firstPartAt = time.Now()
	}
	r.parts++
}

// Parts returns the number of fragments recorded so far.
func (r *Response) Parts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parts
}

// Duration returns the elapsed time since the request arrived.
func (r *Response) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.startedAt)
}

// Latency returns the time from request arrival to the first sent fragment,
// or zero if nothing was sent.
func (r *Response) Latency() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.firstPartAt.IsZero() {
		return 0
	}
	return r.firstPartAt.Sub(r.startedAt)
}

// WriteToLog emits a completion line for this response.
func (r *Response) WriteToLog(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latency := time.Duration(0)
	if !r.firstPartAt.IsZero() {
		latency = r.firstPartAt.Sub(r.startedAt)
	}
	slog.Info(msg,
		"request_id", r.RequestID,
		"duration", time.Since(r.startedAt).Round(time.Millisecond),
		"latency", latency.Round(time.Millisecond),
		"parts", r.parts,
		"prompt_chars", r.promptChars,
	)
}

// Aggregate accumulates totals across all requests.
type Aggregate struct {
	mu            sync.Mutex
	requests      int
	successes     int
	failures      int
	totalParts    int
	totalDuration time.Duration
	totalLatency  time.Duration
}

// NewAggregate creates an empty stats collector.
func NewAggregate() *Aggregate {
	return &Aggregate{}
}

// LogRequestArrived registers a new generation request and returns its
// per-request handle.
func (a *Aggregate) LogRequestArrived(prompt string) *Response {
	a.mu.Lock()
	a.requests++
	a.mu.Unlock()

	return &Response{
		RequestID:   uuid.New(),
		promptChars: len(prompt),
		startedAt:   time.Now(),
	}
}

// LogResponseSuccess folds a completed response into the totals.
func (a *Aggregate) LogResponseSuccess(r *Response) {
	r.mu.Lock()
	parts := r.parts
	duration := time.Since(r.startedAt)
	latency := time.Duration(0)
	if !r.firstPartAt.IsZero() {
		latency = r.firstPartAt.Sub(r.startedAt)
	}
	r.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.successes++
	a.totalParts += parts
	a.totalDuration += duration
	a.totalLatency += latency
}

// LogResponseFailure records a request that ended in an error.
func (a *Aggregate) LogResponseFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures++
}

// Requests returns the total number of requests seen.
func (a *Aggregate) Requests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests
}

// Successes returns the number of successfully completed responses.
func (a *Aggregate) Successes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.successes
}

// Failures returns the number of failed responses.
func (a *Aggregate) Failures() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failures
}

// WriteSummaryToLog emits the running totals. Called on shutdown.
func (a *Aggregate) WriteSummaryToLog() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.successes == 0 {
		slog.Info("response stats", "requests", a.requests, "failures", a.failures)
		return
	}

	avgDuration := a.totalDuration / time.Duration(a.successes)
	avgLatency := a.totalLatency / time.Duration(a.successes)
	slog.Info("response stats",
		"requests", a.requests,
		"successes", a.successes,
		"failures", a.failures,
		"avg_duration", avgDuration.Round(time.Millisecond),
		"avg_latency", avgLatency.Round(time.Millisecond),
		"avg_parts", float64(a.totalParts)/float64(a.successes),
	)
}
