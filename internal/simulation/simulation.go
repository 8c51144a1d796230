// Package simulation is the driver (component F): it constructs offices
// from config, launches customer workflows, schedules break cycles,
// awaits completion, and tears everything down.
package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/anthropics/bureaucracy-sim/internal/config"
	"github.com/anthropics/bureaucracy-sim/internal/domain"
	"github.com/anthropics/bureaucracy-sim/internal/eventsink"
	"github.com/anthropics/bureaucracy-sim/internal/journey"
	"github.com/anthropics/bureaucracy-sim/internal/office"
	"github.com/anthropics/bureaucracy-sim/internal/orchestrator"
	"github.com/anthropics/bureaucracy-sim/internal/status"
)

// breakWindow is the fixed window spec.md §4.6 step 4 schedules the next
// takeBreak() call within, per office, after each break completes.
var breakWindow = [2]time.Duration{6 * time.Second, 10 * time.Second}

// CustomerOutcome records one customer's overall run.
type CustomerOutcome struct {
	CustomerID string
	Obtained   []string
	Err        error
	Elapsed    time.Duration
}

// OfficeSummary is the end-of-run tally for one office, used by the CLI's
// summary table.
type OfficeSummary struct {
	Name           string
	Counters       int
	FinalQueueSize int
	DocumentsIssued int
}

// Simulation owns the running offices, the orchestrator, and every
// customer's journey for one run.
type Simulation struct {
	cfg    *config.Configuration
	sink   eventsink.EventSink
	offices map[string]*office.Office
	orc    *orchestrator.Orchestrator

	mu       sync.Mutex
	journeys map[string]*journey.Journey
	issuedCount map[string]int

	breakStop chan struct{}
	breakWG   sync.WaitGroup
}

// New constructs offices from cfg and wires the orchestrator against them.
func New(cfg *config.Configuration, sink eventsink.EventSink) *Simulation {
	offices := make(map[string]*office.Office)
	submitters := make(map[string]orchestrator.OfficeSubmitter)
	for _, spec := range cfg.Offices() {
		o := office.New(spec, sink)
		offices[spec.Name] = o
		submitters[spec.Name] = o
	}

	return &Simulation{
		cfg:         cfg,
		sink:        sink,
		offices:     offices,
		orc:         orchestrator.New(cfg, sink, submitters),
		journeys:    make(map[string]*journey.Journey),
		issuedCount: make(map[string]int),
		breakStop:   make(chan struct{}),
	}
}

// Run drives every customer profile to completion and returns their
// outcomes in submission order. Break scheduling starts before the first
// customer arrives and keeps running after Run returns, until Shutdown.
func (s *Simulation) Run(customers []domain.CustomerProfile) []CustomerOutcome {
	for name, o := range s.offices {
		s.scheduleBreaks(name, o)
	}

	outcomes := make([]CustomerOutcome, len(customers))
	var wg sync.WaitGroup
	for i, c := range customers {
		wg.Add(1)
		go func(i int, c domain.CustomerProfile) {
			defer wg.Done()
			outcomes[i] = s.runCustomer(c)
		}(i, c)
	}
	wg.Wait()

	return outcomes
}

// runCustomer waits arrivalDelay, creates a Journey, fans out its requested
// documents, and awaits all of them.
func (s *Simulation) runCustomer(c domain.CustomerProfile) CustomerOutcome {
	time.Sleep(c.ArrivalDelay)

	j := s.orc.NewJourney(c.CustomerID)
	s.mu.Lock()
	s.journeys[c.CustomerID] = j
	s.mu.Unlock()

	start := time.Now()
	s.sink.Customer(c.CustomerID, fmt.Sprintf("requesting %v", c.RequestedDocuments))

	type pending struct {
		doc string
		f   interface {
			Wait() (domain.IssuanceResult, error)
		}
	}
	var futures []pending
	for _, doc := range c.RequestedDocuments {
		futures = append(futures, pending{doc: doc, f: j.RequestDocument(context.Background(), doc)})
	}

	var obtained []string
	var firstErr error
	for _, p := range futures {
		result, err := p.f.Wait()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		obtained = append(obtained, result.DocumentName)
		s.recordIssued(result.IssuingOffice)
	}

	elapsed := time.Since(start)
	if firstErr != nil {
		s.sink.Customer(c.CustomerID, fmt.Sprintf("journey failed: %v", firstErr))
	} else {
		s.sink.Customer(c.CustomerID, fmt.Sprintf("journey complete in %s, obtained %v", elapsed, obtained))
	}

	return CustomerOutcome{CustomerID: c.CustomerID, Obtained: obtained, Err: firstErr, Elapsed: elapsed}
}

func (s *Simulation) recordIssued(officeName string) {
	s.mu.Lock()
	s.issuedCount[officeName]++
	s.mu.Unlock()
}

// scheduleBreaks starts a goroutine that repeatedly waits a random delay in
// breakWindow, invokes TakeBreak, and reschedules — grounded on the
// ticker+stopCh lifecycle used for periodic background work in the pack.
func (s *Simulation) scheduleBreaks(name string, o *office.Office) {
	s.breakWG.Add(1)
	go func() {
		defer s.breakWG.Done()
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(len(name))))
		for {
			delay := breakWindow[0] + time.Duration(rng.Int63n(int64(breakWindow[1]-breakWindow[0])))
			timer := time.NewTimer(delay)
			select {
			case <-s.breakStop:
				timer.Stop()
				return
			case <-timer.C:
				o.TakeBreak()
			}
		}
	}()
}

// Shutdown cancels the break scheduler and shuts down every office. Safe to
// call once after Run returns.
func (s *Simulation) Shutdown() {
	close(s.breakStop)
	s.breakWG.Wait()
	for _, o := range s.offices {
		o.Shutdown()
	}
}

// Offices returns a live snapshot of every office's state, for the status endpoint.
func (s *Simulation) Offices() []status.OfficeView {
	views := make([]status.OfficeView, 0, len(s.offices))
	for name, o := range s.offices {
		views = append(views, status.OfficeView{
			Name:      name,
			State:     o.State(),
			QueueSize: o.QueueSize(),
		})
	}
	return views
}

// Journeys returns a live snapshot of every tracked customer's journey, for
// the status endpoint.
func (s *Simulation) Journeys() []status.JourneyView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]status.JourneyView, 0, len(s.journeys))
	for id, j := range s.journeys {
		views = append(views, status.JourneyView{
			CustomerID: id,
			Requested:  j.RequestedDocuments(),
			Completed:  j.CompletedDocuments(),
		})
	}
	return views
}

// Summaries returns the end-of-run per-office tally for the CLI's summary table.
func (s *Simulation) Summaries() []OfficeSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]OfficeSummary, 0, len(s.offices))
	for name, o := range s.offices {
		spec, _ := s.cfg.Office(name)
		out = append(out, OfficeSummary{
			Name:            name,
			Counters:        spec.Counters,
			FinalQueueSize:  o.QueueSize(),
			DocumentsIssued: s.issuedCount[name],
		})
	}
	return out
}
