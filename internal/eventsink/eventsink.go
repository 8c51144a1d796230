// Package eventsink defines the narrow interface the simulation core pushes
// structured events into (component B). Every method takes primitive fields
// and returns nothing; implementations MUST be safe to call from any
// worker, customer, or scheduler goroutine, and MUST NOT let an internal
// error corrupt core state — callers never check a return value.
package eventsink

import (
	"strconv"
	"strings"
	"sync"

	"github.com/anthropics/bureaucracy-sim/internal/domain"
)

// EventSink is the capability the core holds to narrate its own execution.
// All operations are best-effort.
type EventSink interface {
	// System reports an engine-level lifecycle event.
	System(msg string)
	// Office reports an office-internal log line.
	Office(officeName, msg string)
	// Customer reports per-customer narration.
	Customer(customerID, msg string)
	// OfficeArrival reports that a request is about to be submitted.
	OfficeArrival(office, customer, doc string)
	// RequestAccepted reports that the office has admitted a request to its queue.
	RequestAccepted(office, customer, doc string)
	// Queue reports the office's queue contents, in FIFO order, after an enqueue.
	Queue(office, customer, doc string, snapshot []string)
	// CounterStart reports that a worker has begun service.
	CounterStart(office string, counterIndex int, customer, doc string)
	// Transport reports that a dependency is being sought at another office.
	Transport(fromOffice, toOffice, doc string)
	// Cancel reports that a submission was rejected for missing prerequisites.
	Cancel(office, customer, doc, reason string)
	// CounterFinish reports that service completed successfully.
	CounterFinish(office string, counterIndex int, customer, doc string)
	// Issued reports that a document was produced, with its service duration known.
	Issued(result domain.IssuanceResult)
}

// NopSink discards every event. Used as the zero-value default and in tests
// that don't assert on the event stream.
type NopSink struct{}

func (NopSink) System(string)                             {}
func (NopSink) Office(string, string)                      {}
func (NopSink) Customer(string, string)                    {}
func (NopSink) OfficeArrival(string, string, string)       {}
func (NopSink) RequestAccepted(string, string, string)     {}
func (NopSink) Queue(string, string, string, []string)     {}
func (NopSink) CounterStart(string, int, string, string)   {}
func (NopSink) Transport(string, string, string)           {}
func (NopSink) Cancel(string, string, string, string)      {}
func (NopSink) CounterFinish(string, int, string, string)  {}
func (NopSink) Issued(domain.IssuanceResult)               {}

// RecordingSink appends every call to an in-memory log as a canonical line
// (see spec.md §6), for assertions in tests. Safe for concurrent use.
type RecordingSink struct {
	mu   sync.Mutex
	logs []string
}

func (s *RecordingSink) record(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, line)
}

// Lines returns a snapshot of every recorded line, in call order.
func (s *RecordingSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *RecordingSink) System(msg string) {
	s.record("system " + msg)
}

func (s *RecordingSink) Office(officeName, msg string) {
	s.record("office " + officeName + " " + msg)
}

func (s *RecordingSink) Customer(customerID, msg string) {
	s.record("customer " + customerID + " " + msg)
}

func (s *RecordingSink) OfficeArrival(office, customer, doc string) {
	s.record("ARRIVE office " + office + " person " + customer + " asking for " + doc)
}

func (s *RecordingSink) RequestAccepted(office, customer, doc string) {
	s.record("REQUEST office " + office + " person " + customer + " -> " + doc + " in progress")
}

func (s *RecordingSink) Queue(office, customer, doc string, snapshot []string) {
	s.record("QUEUE office " + office + " person " + customer + " waiting for " + doc + " | line: " + strings.Join(snapshot, ","))
}

func (s *RecordingSink) CounterStart(office string, counterIndex int, customer, doc string) {
	s.record("COUNTER office " + office + " counter " + strconv.Itoa(counterIndex) + " now processing person " + customer + " for " + doc)
}

func (s *RecordingSink) Transport(fromOffice, toOffice, doc string) {
	s.record("TRANSPORTING from counter: " + fromOffice + " to counter: " + toOffice + " document: " + doc)
}

func (s *RecordingSink) Cancel(office, customer, doc, reason string) {
	s.record("CANCELLED at office " + office + " person " + customer + " request " + doc + " -> " + reason)
}

func (s *RecordingSink) CounterFinish(office string, counterIndex int, customer, doc string) {
	s.record("FINISHED person " + customer + " got " + doc + " from " + office + " counter " + strconv.Itoa(counterIndex) + " LEAVING...")
}

func (s *RecordingSink) Issued(result domain.IssuanceResult) {
	suffix := ""
	if result.ServiceDuration > 0 {
		suffix = " in " + strconv.FormatInt(result.ServiceDuration.Milliseconds(), 10) + " ms"
	}
	s.record("DOC:" + result.CustomerID + " received " + result.DocumentName + " from " + result.IssuingOffice + suffix)
}
