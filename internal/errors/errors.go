package errors

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// TargetFailure records one failed target of a batch build.
type TargetFailure struct {
	Target    string
	Err       error
	Timestamp time.Time
}

// Error implements the error interface
func (tf TargetFailure) Error() string {
	return fmt.Sprintf("target %s: %v", tf.Target, tf.Err)
}

// Unwrap returns the underlying failure.
func (tf TargetFailure) Unwrap() error {
	return tf.Err
}

// ErrorCollector gathers per-target failures when several targets are built
// in one invocation. It is safe for concurrent use.
type ErrorCollector struct {
	failures []TargetFailure
	mutex    sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		failures: make([]TargetFailure, 0),
	}
}

// Add records a failure for target. Nil errors are ignored.
func (ec *ErrorCollector) Add(target string, err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = append(ec.failures, TargetFailure{
		Target:    target,
		Err:       err,
		Timestamp: time.Now(),
	})
}

// Failures returns a copy of the recorded failures ordered by target name.
func (ec *ErrorCollector) Failures() []TargetFailure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]TargetFailure, len(ec.failures))
	copy(result, ec.failures)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Target < result[j].Target
	})
	return result
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.failures) > 0
}

// Count returns the number of failed targets.
func (ec *ErrorCollector) Count() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.failures)
}

// Err joins every failure into a single error, or returns nil.
func (ec *ErrorCollector) Err() error {
	failures := ec.Failures()
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = ec.failures[:0]
}
