// Package stuck flags runs that keep repeating the same few actions.
package stuck

import (
	"strings"
	"sync"
)

const (
	DefaultWindow    = 10
	DefaultThreshold = 5
	maxDistinct      = 2
)

type Strategy string

const (
	TryAlternativeSearch Strategy = "try_alternative_search"
	ChangeSearchQuery    Strategy = "change_search_query"
	GoToSearch           Strategy = "go_to_search"
)

type Detector struct {
	mu        sync.Mutex
	window    int
	threshold int
	recent    []string
}

func New(window, threshold int) *Detector {
	if window <= 0 {
		window = DefaultWindow
	}
	if threshold <= 0 || threshold > window {
		threshold = DefaultThreshold
	}
	return &Detector{window: window, threshold: threshold}
}

// Record adds an action descriptor such as "click link[3]".
func (d *Detector) Record(action string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent = append(d.recent, action)
	if len(d.recent) > d.window {
		d.recent = d.recent[len(d.recent)-d.window:]
	}
}

// Stuck reports whether the last threshold actions hold at most two
// distinct descriptors.
func (d *Detector) Stuck() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.recent) < d.threshold {
		return false
	}
	distinct := make(map[string]struct{})
	for _, a := range d.recent[len(d.recent)-d.threshold:] {
		distinct[a] = struct{}{}
	}
	return len(distinct) <= maxDistinct
}

// RecoveryStrategy suggests a way out based on the most frequent action
// class in the window.
func (d *Detector) RecoveryStrategy() Strategy {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, a := range d.recent {
		class := a
		if i := strings.IndexByte(a, ' '); i >= 0 {
			class = a[:i]
		}
		counts[class]++
		if counts[class] > bestCount {
			best, bestCount = class, counts[class]
		}
	}

	switch {
	case strings.Contains(best, "click"):
		return TryAlternativeSearch
	case strings.Contains(best, "scroll"):
		return ChangeSearchQuery
	default:
		return GoToSearch
	}
}

func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent = nil
}
