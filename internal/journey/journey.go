// Package journey implements the per-customer memoization layer (component
// D): a concurrent map from document name to an in-flight or settled
// future, with atomic put-if-absent so two concurrent requests for the same
// document converge on one future and produce exactly one issued event.
package journey

import (
	"context"
	"sync"

	"github.com/anthropics/bureaucracy-sim/internal/future"
)

// Driver resolves a single document request. Implemented by the document
// orchestrator (component E); kept as an interface here so journey has no
// dependency on orchestrator, avoiding an import cycle (E depends on D). ctx
// carries the reentrancy marker (see office.WithinOffice) when the request
// originates from inside another task's own work body, so a dependency at
// the same office resolves inline instead of deadlocking on its own queue.
type Driver interface {
	Drive(ctx context.Context, j *Journey, documentName string, f *future.Future)
}

// Journey tracks, for one customer, which documents have been requested and
// the future each request resolves to. A document present in the map is
// either in flight or already completed; existence in the map, regardless
// of outcome, claims the slot.
type Journey struct {
	CustomerID string

	driver Driver

	mu        sync.Mutex
	documents map[string]*future.Future
}

// New constructs a Journey for one customer, driven by the given orchestrator.
func New(customerID string, driver Driver) *Journey {
	return &Journey{
		CustomerID: customerID,
		driver:     driver,
		documents:  make(map[string]*future.Future),
	}
}

// RequestDocument returns the future for documentName, installing a fresh
// placeholder and invoking the driver on it if this is the first request.
// If the document has already been requested (settled or in flight), the
// existing future is returned without invoking the driver again. ctx is
// forwarded to the driver verbatim so a reentrancy marker set by a calling
// worker survives the hand-off to the goroutine that drives resolution.
func (j *Journey) RequestDocument(ctx context.Context, documentName string) *future.Future {
	j.mu.Lock()
	if existing, ok := j.documents[documentName]; ok {
		j.mu.Unlock()
		return existing
	}
	f := future.New()
	j.documents[documentName] = f
	j.mu.Unlock()

	go j.driver.Drive(ctx, j, documentName, f)
	return f
}

// HasDocument returns true only if documentName has a future installed AND
// it has settled successfully. Never blocks.
func (j *Journey) HasDocument(documentName string) bool {
	j.mu.Lock()
	f, ok := j.documents[documentName]
	j.mu.Unlock()
	if !ok {
		return false
	}
	return f.Peek() == future.Succeeded
}

// RequestedDocuments returns the name of every document requested so far on
// this journey, whether still in flight or already settled.
func (j *Journey) RequestedDocuments() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	names := make([]string, 0, len(j.documents))
	for name := range j.documents {
		names = append(names, name)
	}
	return names
}

// CompletedDocuments returns the name of every document that has settled
// successfully so far on this journey.
func (j *Journey) CompletedDocuments() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	names := make([]string, 0, len(j.documents))
	for name, f := range j.documents {
		if f.Peek() == future.Succeeded {
			names = append(names, name)
		}
	}
	return names
}
