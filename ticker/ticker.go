// Package ticker measures elapsed monotonic time.
package ticker

import "time"

var Start time.Time

// Initialize records the process start used by Get.
func Initialize() {
	Start = time.Now()
}

// Get returns the time elapsed since Initialize.
func Get() time.Duration {
	return time.Since(Start)
}

func GetAsMS() uint32 {
	return uint32(Get() / time.Millisecond)
}

// Stopwatch measures the time since it was started.
type Stopwatch struct {
	start time.Time
}

// NewStopwatch starts a stopwatch.
func NewStopwatch() Stopwatch {
	return Stopwatch{start: time.Now()}
}

// Get returns the time elapsed since the stopwatch started.
func (s Stopwatch) Get() time.Duration {
	return time.Since(s.start)
}

// GetAsMS returns the elapsed time in whole milliseconds.
func (s Stopwatch) GetAsMS() uint32 {
	return uint32(s.Get() / time.Millisecond)
}
