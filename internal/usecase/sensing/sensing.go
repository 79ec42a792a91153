// Package sensing turns the current tab into an indexed element snapshot.
package sensing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"
)

const DefaultSettle = time.Second

type Sensor struct {
	logger output.LoggerPort
	settle time.Duration

	mu     sync.Mutex
	nextID int
}

func New(logger output.LoggerPort, settle time.Duration) *Sensor {
	if settle < 0 {
		settle = 0
	}
	return &Sensor{logger: logger, settle: settle}
}

// Sense annotates the page, reads the element list and removes the overlay.
// On failure the returned snapshot is empty but still carries a fresh ID.
func (s *Sensor) Sense(ctx context.Context, page output.PagePort) (entity.Snapshot, error) {
	snap := entity.Snapshot{ID: s.newID(), URL: page.URL()}

	if s.settle > 0 {
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-time.After(s.settle):
		}
	}

	elements, err := page.Annotate(ctx)
	if cleanupErr := page.RemoveAnnotations(ctx); cleanupErr != nil {
		s.logger.Warn("Failed to remove annotations", "url", snap.URL, "error", cleanupErr)
	}
	if err != nil {
		return snap, fmt.Errorf("sense %s: %w", snap.URL, err)
	}

	snap.Elements = elements
	snap.IsDocument = len(elements) > 0 && elements[0].Type == entity.DocumentSentinel

	s.logger.Debug("Page sensed", "url", snap.URL, "elements", len(elements), "document", snap.IsDocument, "snapshot", snap.ID)
	return snap, nil
}

func (s *Sensor) newID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}
