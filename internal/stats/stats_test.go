package stats

import (
	"sync"
	"testing"
)

func TestAggregateCounts(t *testing.T) {
	agg := NewAggregate()

	r1 := agg.LogRequestArrived("prompt one")
	r1.LogResponsePart()
	r1.LogResponsePart()
	agg.LogResponseSuccess(r1)

	_ = agg.LogRequestArrived("prompt two")
	agg.LogResponseFailure()

	if got := agg.Requests(); got != 2 {
		t.Errorf("Requests() = %d, want 2", got)
	}
	if got := agg.Successes(); got != 1 {
		t.Errorf("Successes() = %d, want 1", got)
	}
	if got := agg.Failures(); got != 1 {
		t.Errorf("Failures() = %d, want 1", got)
	}
	if got := r1.Parts(); got != 2 {
		t.Errorf("Parts() = %d, want 2", got)
	}
}

func TestResponseLatencyZeroWithoutParts(t *testing.T) {
	agg := NewAggregate()
	r := agg.LogRequestArrived("p")
	if r.Latency() != 0 {
		t.Errorf("Latency() = %v, want 0 before any part", r.Latency())
	}
	r.LogResponsePart()
	if r.Latency() < 0 {
		t.Errorf("Latency() = %v, want >= 0", r.Latency())
	}
}

func TestRequestIDsUnique(t *testing.T) {
	agg := NewAggregate()
	a := agg.LogRequestArrived("a")
	b := agg.LogRequestArrived("b")
	if a.RequestID == b.RequestID {
		t.Error("request ids must be unique")
	}
}

// Handlers for different messages report concurrently; the collector must
// tolerate that without external locking.
func TestAggregateConcurrent(t *testing.T) {
	agg := NewAggregate()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			r := agg.LogRequestArrived("p")
			r.LogResponsePart()
			if fail {
				agg.LogResponseFailure()
			} else {
				agg.LogResponseSuccess(r)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	if got := agg.Requests(); got != 50 {
		t.Errorf("Requests() = %d, want 50", got)
	}
	if got := agg.Successes() + agg.Failures(); got != 50 {
		t.Errorf("Successes+Failures = %d, want 50", got)
	}
}
