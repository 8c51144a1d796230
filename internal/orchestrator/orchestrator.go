// Package orchestrator implements the document orchestrator (component E):
// it chooses the office for a document, submits the task, and, when the
// task's own work body finds prerequisites missing, resolves them through
// the journey and retries — bounded by the acyclic dependency graph's depth.
// The retry happens inside the task's own work body so it runs under the
// same reentrancy marker as the original submission: a prerequisite at the
// same office resolves inline, with no second admission or queue event.
package orchestrator

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/anthropics/bureaucracy-sim/internal/config"
	"github.com/anthropics/bureaucracy-sim/internal/domain"
	"github.com/anthropics/bureaucracy-sim/internal/eventsink"
	"github.com/anthropics/bureaucracy-sim/internal/future"
	"github.com/anthropics/bureaucracy-sim/internal/journey"
	"github.com/anthropics/bureaucracy-sim/internal/simerr"
)

// OfficeSubmitter is the subset of office.Office the orchestrator depends
// on, so tests can substitute a fake office.
type OfficeSubmitter interface {
	Submit(ctx context.Context, task domain.IssuanceTask) *future.Future
}

// Orchestrator drives journeys to completion against a fixed configuration
// and office set.
type Orchestrator struct {
	cfg     *config.Configuration
	sink    eventsink.EventSink
	offices map[string]OfficeSubmitter
}

// New constructs an Orchestrator bound to a configuration, event sink, and
// the running offices keyed by name.
func New(cfg *config.Configuration, sink eventsink.EventSink, offices map[string]OfficeSubmitter) *Orchestrator {
	return &Orchestrator{cfg: cfg, sink: sink, offices: offices}
}

// NewJourney constructs a Journey driven by this orchestrator.
func (o *Orchestrator) NewJourney(customerID string) *journey.Journey {
	return journey.New(customerID, o)
}

// Drive implements journey.Driver: it resolves documentName for journey j
// and settles f with the outcome. ctx is Background for a customer's
// top-level request and carries the reentrancy marker when this call was
// triggered by a dependency lookup from inside another task's work body.
func (o *Orchestrator) Drive(ctx context.Context, j *journey.Journey, documentName string, f *future.Future) {
	o.resolve(ctx, j, documentName, f)
}

// resolve looks up the document and its issuing office and submits a single
// task. The task's own work body (see workBody) is responsible for noticing
// missing prerequisites, resolving them through the journey, and retrying
// before it ever returns — so resolve itself only submits once and reports
// whatever the task ultimately produces.
func (o *Orchestrator) resolve(ctx context.Context, j *journey.Journey, documentName string, f *future.Future) {
	doc, ok := o.cfg.Document(documentName)
	if !ok {
		f.Fail(simerr.NewUnknownDocument(documentName))
		return
	}
	off, ok := o.offices[doc.IssuingOffice]
	if !ok {
		f.Fail(simerr.NewUnknownOffice(doc.IssuingOffice))
		return
	}

	o.sink.OfficeArrival(doc.IssuingOffice, j.CustomerID, documentName)

	taskID := uuid.NewString()
	task := domain.IssuanceTask{
		CustomerID:   j.CustomerID,
		DocumentName: documentName,
		Work:         o.workBody(j, doc, taskID),
		TaskID:       taskID,
	}

	officeFuture := off.Submit(ctx, task)
	o.sink.RequestAccepted(doc.IssuingOffice, j.CustomerID, documentName)

	result, err := officeFuture.Wait()
	if err != nil {
		f.Fail(err)
		return
	}
	o.sink.Issued(result)
	f.Settle(result)
}

// workBody builds the deferred work closure a task's office runs at the head
// of the queue. It checks the journey for missing prerequisites; if any are
// missing it emits cancel and transport events and resolves each one through
// the journey using the same ctx it was called with, so a prerequisite at
// this task's own office takes the reentrant inline path (see
// office.WithinOffice) instead of queuing behind itself. Once every
// prerequisite is held it loops back and produces the result — the
// resubmission the spec's algorithm calls for happens as a retry within this
// single call, never as a second office.Submit.
func (o *Orchestrator) workBody(j *journey.Journey, doc config.DocumentSpec, taskID string) func(ctx context.Context) (domain.IssuanceResult, error) {
	return func(ctx context.Context) (domain.IssuanceResult, error) {
		for {
			var missing []string
			for _, dep := range doc.Dependencies {
				if !j.HasDocument(dep) {
					missing = append(missing, dep)
				}
			}
			if len(missing) == 0 {
				return domain.IssuanceResult{
					CustomerID:    j.CustomerID,
					DocumentName:  doc.Name,
					IssuingOffice: doc.IssuingOffice,
					Dependencies:  doc.Dependencies,
					TaskID:        taskID,
				}, nil
			}

			o.sink.Cancel(doc.IssuingOffice, j.CustomerID, doc.Name, "needs "+strings.Join(missing, ","))

			for _, dep := range missing {
				toOffice := ""
				if depSpec, ok := o.cfg.Document(dep); ok {
					toOffice = depSpec.IssuingOffice
				}
				o.sink.Transport(doc.IssuingOffice, toOffice, dep)

				depFuture := j.RequestDocument(ctx, dep)
				if _, err := depFuture.Wait(); err != nil {
					return domain.IssuanceResult{}, err
				}
			}
		}
	}
}
