package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/bureaucracy-sim/internal/config"
	"github.com/anthropics/bureaucracy-sim/internal/domain"
	"github.com/anthropics/bureaucracy-sim/internal/eventsink"
	"github.com/anthropics/bureaucracy-sim/internal/office"
)

func fastOffice(name string) config.OfficeSpec {
	return config.OfficeSpec{
		Name:       name,
		Counters:   1,
		MinService: time.Millisecond,
		MaxService: 2 * time.Millisecond,
	}
}

// buildOrchestrator wires an Orchestrator with one real office.Office per
// OfficeSpec, satisfying OfficeSubmitter directly.
func buildOrchestrator(t *testing.T, cfg *config.Configuration, sink eventsink.EventSink) (*Orchestrator, map[string]*office.Office) {
	t.Helper()
	offices := make(map[string]*office.Office)
	submitters := make(map[string]OfficeSubmitter)
	for _, spec := range cfg.Offices() {
		o := office.New(spec, sink)
		offices[spec.Name] = o
		submitters[spec.Name] = o
	}
	return New(cfg, sink, submitters), offices
}

func teardown(offices map[string]*office.Office) {
	for _, o := range offices {
		o.Shutdown()
	}
}

// S1 — leaf document.
func TestOrchestrator_LeafDocument(t *testing.T) {
	cfg, err := config.New(
		[]config.OfficeSpec{fastOffice("A")},
		[]config.DocumentSpec{{Name: "X", IssuingOffice: "A"}},
	)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	sink := &eventsink.RecordingSink{}
	orc, offices := buildOrchestrator(t, cfg, sink)
	defer teardown(offices)

	j := orc.NewJourney("u")
	f := j.RequestDocument(context.Background(), "X")
	result, err := f.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result.DocumentName != "X" {
		t.Errorf("DocumentName = %q, want X", result.DocumentName)
	}
	if !j.HasDocument("X") {
		t.Error("HasDocument(X) = false after successful issue")
	}
}

// S2 — single dependency at the same office; the dependency resolves inline.
func TestOrchestrator_SingleDependencySameOffice(t *testing.T) {
	cfg, err := config.New(
		[]config.OfficeSpec{fastOffice("A")},
		[]config.DocumentSpec{
			{Name: "X", IssuingOffice: "A"},
			{Name: "Y", IssuingOffice: "A", Dependencies: []string{"X"}},
		},
	)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	sink := &eventsink.RecordingSink{}
	orc, offices := buildOrchestrator(t, cfg, sink)
	defer teardown(offices)

	j := orc.NewJourney("u")
	f := j.RequestDocument(context.Background(), "Y")
	result, err := f.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result.DocumentName != "Y" {
		t.Errorf("DocumentName = %q, want Y", result.DocumentName)
	}
	if !j.HasDocument("X") || !j.HasDocument("Y") {
		t.Error("expected both X and Y to be held by the journey")
	}

	// X shares Y's office, so it must resolve inline on Y's own worker: one
	// QUEUE admission (Y's only) but a COUNTER pair for each of X and Y — the
	// reentrancy escape hatch skips the queue slot, not the service events.
	var queueLines, counterLines int
	for _, line := range sink.Lines() {
		if strings.HasPrefix(line, "QUEUE ") {
			queueLines++
		}
		if strings.HasPrefix(line, "COUNTER ") {
			counterLines++
		}
	}
	if queueLines != 1 {
		t.Errorf("QUEUE events = %d, want exactly 1 (X must resolve inline, no new admission)", queueLines)
	}
	if counterLines != 2 {
		t.Errorf("COUNTER events = %d, want exactly 2 (one CounterStart/Finish pair per document)", counterLines)
	}
}

// S3 — cross-office dependency.
func TestOrchestrator_CrossOfficeDependency(t *testing.T) {
	cfg, err := config.New(
		[]config.OfficeSpec{fastOffice("A"), fastOffice("B")},
		[]config.DocumentSpec{
			{Name: "X", IssuingOffice: "A"},
			{Name: "Y", IssuingOffice: "B", Dependencies: []string{"X"}},
		},
	)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	sink := &eventsink.RecordingSink{}
	orc, offices := buildOrchestrator(t, cfg, sink)
	defer teardown(offices)

	j := orc.NewJourney("u")
	f := j.RequestDocument(context.Background(), "Y")
	if _, err := f.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !j.HasDocument("X") || !j.HasDocument("Y") {
		t.Error("expected both X and Y to be held by the journey")
	}
}

// S4 — shared prerequisite: X is issued exactly once even though both Y and
// Z depend on it and are requested concurrently.
func TestOrchestrator_SharedPrerequisiteIssuedOnce(t *testing.T) {
	cfg, err := config.New(
		[]config.OfficeSpec{fastOffice("A")},
		[]config.DocumentSpec{
			{Name: "X", IssuingOffice: "A"},
			{Name: "Y", IssuingOffice: "A", Dependencies: []string{"X"}},
			{Name: "Z", IssuingOffice: "A", Dependencies: []string{"X"}},
		},
	)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}

	var issuedX int64
	sink := &countingSink{RecordingSink: &eventsink.RecordingSink{}, onIssue: func(doc string) {
		if doc == "X" {
			atomic.AddInt64(&issuedX, 1)
		}
	}}
	orc, offices := buildOrchestrator(t, cfg, sink)
	defer teardown(offices)

	j := orc.NewJourney("u")
	var wg sync.WaitGroup
	wg.Add(2)
	var yErr, zErr error
	go func() { defer wg.Done(); _, yErr = j.RequestDocument(context.Background(), "Y").Wait() }()
	go func() { defer wg.Done(); _, zErr = j.RequestDocument(context.Background(), "Z").Wait() }()
	wg.Wait()

	if yErr != nil || zErr != nil {
		t.Fatalf("Y err = %v, Z err = %v", yErr, zErr)
	}
	if got := atomic.LoadInt64(&issuedX); got != 1 {
		t.Errorf("X issued %d times, want exactly 1", got)
	}
}

// countingSink wraps RecordingSink to observe Issued calls.
type countingSink struct {
	*eventsink.RecordingSink
	onIssue func(doc string)
}

func (c *countingSink) Issued(result domain.IssuanceResult) {
	c.onIssue(result.DocumentName)
	c.RecordingSink.Issued(result)
}
