package queue

import "time"

// Metrics captures queue-level telemetry.
type Metrics interface {
	// ObserveFlushDuration records the time a lock-held pass took.
	ObserveFlushDuration(duration time.Duration)
	// AddOutcome counts one consume result.
	AddOutcome(outcome Outcome)
	// SetPending updates the current pending event count.
	SetPending(count int)
	// AddPermissionFix counts event files whose mode had to be corrected.
	AddPermissionFix()
	// AddCleaned counts files removed by Cleanup.
	AddCleaned(count int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

func (NopMetrics) ObserveFlushDuration(time.Duration) {}
func (NopMetrics) AddOutcome(Outcome)                 {}
func (NopMetrics) SetPending(int)                     {}
func (NopMetrics) AddPermissionFix()                  {}
func (NopMetrics) AddCleaned(int)                     {}
