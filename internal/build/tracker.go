package build

import (
	"path/filepath"
	"sort"
	"sync"
)

// Tracker keeps the latest result of every target. Register Record as a
// pipeline callback. It is safe for concurrent use.
type Tracker struct {
	results map[string]Result
	mutex   sync.RWMutex
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{results: make(map[string]Result)}
}

// Record stores result as the latest result of its target.
func (t *Tracker) Record(result Result) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.results[result.Target] = result
}

// Result returns the latest result of target.
func (t *Tracker) Result(target string) (Result, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	r, ok := t.results[target]
	return r, ok
}

// Forget drops the results of every target not in keep.
func (t *Tracker) Forget(keep []string) {
	kept := make(map[string]struct{}, len(keep))
	for _, name := range keep {
		kept[name] = struct{}{}
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()
	for name := range t.results {
		if _, ok := kept[name]; !ok {
			delete(t.results, name)
		}
	}
}

// Affected returns, in name order, the targets among candidates that must be
// rebuilt after the given files changed: targets that read one of them,
// targets that failed last time, and targets never built.
func (t *Tracker) Affected(changed []string, candidates []string) []string {
	changedSet := make(map[string]struct{}, len(changed))
	for _, path := range changed {
		changedSet[absPath(path)] = struct{}{}
	}

	t.mutex.RLock()
	defer t.mutex.RUnlock()

	var affected []string
	for _, target := range candidates {
		r, ok := t.results[target]
		if !ok || r.Error != nil || readsAny(r.Documents, changedSet) {
			affected = append(affected, target)
		}
	}
	sort.Strings(affected)
	return affected
}

func readsAny(documents []string, changed map[string]struct{}) bool {
	for _, doc := range documents {
		if _, ok := changed[absPath(doc)]; ok {
			return true
		}
	}
	return false
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
