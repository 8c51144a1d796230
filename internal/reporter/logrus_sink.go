package reporter

import (
	"github.com/sirupsen/logrus"

	"github.com/anthropics/bureaucracy-sim/internal/domain"
)

// LogrusSink emits one structured logrus entry per event, for machine
// consumption alongside the human-facing ConsoleReporter.
type LogrusSink struct {
	log *logrus.Logger
}

// NewLogrusSink wraps a *logrus.Logger as an EventSink. Pass logrus.New()
// for a default JSON-less text logger, or a logger configured with
// &logrus.JSONFormatter{} for structured output.
func NewLogrusSink(log *logrus.Logger) *LogrusSink {
	return &LogrusSink{log: log}
}

func (s *LogrusSink) System(msg string) {
	s.log.WithField("kind", "system").Info(msg)
}

func (s *LogrusSink) Office(officeName, msg string) {
	s.log.WithFields(logrus.Fields{"kind": "office", "office": officeName}).Info(msg)
}

func (s *LogrusSink) Customer(customerID, msg string) {
	s.log.WithFields(logrus.Fields{"kind": "customer", "customer": customerID}).Info(msg)
}

func (s *LogrusSink) OfficeArrival(office, customer, doc string) {
	s.log.WithFields(logrus.Fields{"kind": "office_arrival", "office": office, "customer": customer, "document": doc}).Info("arrival")
}

func (s *LogrusSink) RequestAccepted(office, customer, doc string) {
	s.log.WithFields(logrus.Fields{"kind": "request_accepted", "office": office, "customer": customer, "document": doc}).Info("accepted")
}

func (s *LogrusSink) Queue(office, customer, doc string, snapshot []string) {
	s.log.WithFields(logrus.Fields{"kind": "queue", "office": office, "customer": customer, "document": doc, "line": snapshot}).Info("queued")
}

func (s *LogrusSink) CounterStart(office string, counterIndex int, customer, doc string) {
	s.log.WithFields(logrus.Fields{"kind": "counter_start", "office": office, "counter": counterIndex, "customer": customer, "document": doc}).Info("service started")
}

func (s *LogrusSink) Transport(fromOffice, toOffice, doc string) {
	s.log.WithFields(logrus.Fields{"kind": "transport", "from": fromOffice, "to": toOffice, "document": doc}).Info("transporting")
}

func (s *LogrusSink) Cancel(office, customer, doc, reason string) {
	s.log.WithFields(logrus.Fields{"kind": "cancel", "office": office, "customer": customer, "document": doc, "reason": reason}).Warn("cancelled")
}

func (s *LogrusSink) CounterFinish(office string, counterIndex int, customer, doc string) {
	s.log.WithFields(logrus.Fields{"kind": "counter_finish", "office": office, "counter": counterIndex, "customer": customer, "document": doc}).Info("service finished")
}

func (s *LogrusSink) Issued(result domain.IssuanceResult) {
	s.log.WithFields(logrus.Fields{
		"kind":              "issued",
		"customer":          result.CustomerID,
		"document":          result.DocumentName,
		"office":            result.IssuingOffice,
		"dependencies":      result.Dependencies,
		"serviceDurationMs": result.ServiceDuration.Milliseconds(),
	}).Info("issued")
}
