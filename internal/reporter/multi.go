package reporter

import (
	"github.com/anthropics/bureaucracy-sim/internal/domain"
	"github.com/anthropics/bureaucracy-sim/internal/eventsink"
)

// MultiSink fans one event out to every wrapped sink. Per §4.2, all
// operations are best-effort: a panicking sink is recovered and swallowed
// so it cannot corrupt core state or take down other sinks in the chain.
type MultiSink struct {
	sinks []eventsink.EventSink
}

// NewMulti composes sinks into a single EventSink.
func NewMulti(sinks ...eventsink.EventSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func safely(f func()) {
	defer func() { recover() }()
	f()
}

func (m *MultiSink) System(msg string) {
	for _, s := range m.sinks {
		s := s
		safely(func() { s.System(msg) })
	}
}

func (m *MultiSink) Office(officeName, msg string) {
	for _, s := range m.sinks {
		s := s
		safely(func() { s.Office(officeName, msg) })
	}
}

func (m *MultiSink) Customer(customerID, msg string) {
	for _, s := range m.sinks {
		s := s
		safely(func() { s.Customer(customerID, msg) })
	}
}

func (m *MultiSink) OfficeArrival(office, customer, doc string) {
	for _, s := range m.sinks {
		s := s
		safely(func() { s.OfficeArrival(office, customer, doc) })
	}
}

func (m *MultiSink) RequestAccepted(office, customer, doc string) {
	for _, s := range m.sinks {
		s := s
		safely(func() { s.RequestAccepted(office, customer, doc) })
	}
}

func (m *MultiSink) Queue(office, customer, doc string, snapshot []string) {
	for _, s := range m.sinks {
		s := s
		safely(func() { s.Queue(office, customer, doc, snapshot) })
	}
}

func (m *MultiSink) CounterStart(office string, counterIndex int, customer, doc string) {
	for _, s := range m.sinks {
		s := s
		safely(func() { s.CounterStart(office, counterIndex, customer, doc) })
	}
}

func (m *MultiSink) Transport(fromOffice, toOffice, doc string) {
	for _, s := range m.sinks {
		s := s
		safely(func() { s.Transport(fromOffice, toOffice, doc) })
	}
}

func (m *MultiSink) Cancel(office, customer, doc, reason string) {
	for _, s := range m.sinks {
		s := s
		safely(func() { s.Cancel(office, customer, doc, reason) })
	}
}

func (m *MultiSink) CounterFinish(office string, counterIndex int, customer, doc string) {
	for _, s := range m.sinks {
		s := s
		safely(func() { s.CounterFinish(office, counterIndex, customer, doc) })
	}
}

func (m *MultiSink) Issued(result domain.IssuanceResult) {
	for _, s := range m.sinks {
		s := s
		safely(func() { s.Issued(result) })
	}
}
