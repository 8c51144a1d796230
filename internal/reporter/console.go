// Package reporter provides EventSink implementations that narrate a
// running simulation: a colorized console-plus-file reporter matching the
// canonical line format, a structured logrus sink, and a fan-out combinator.
package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/anthropics/bureaucracy-sim/internal/domain"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorBlue   = "\033[34m"
)

// ConsoleReporter writes the canonical line format from spec.md §6 to
// stdout, colorized when stdout is a terminal, and additionally to a
// simulation.log file, mirroring ConsoleSimulationReporter.java.
type ConsoleReporter struct {
	out       io.Writer
	logFile   io.WriteCloser
	colorize  bool
	mu        sync.Mutex
}

// NewConsole opens logPath (truncating any prior run's log, matching the
// original's CREATE+TRUNCATE_EXISTING open mode) and returns a
// ConsoleReporter that writes to stdout and that file.
func NewConsole(logPath string) (*ConsoleReporter, error) {
	f, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("open simulation log: %w", err)
	}
	return &ConsoleReporter{
		out:      os.Stdout,
		logFile:  f,
		colorize: isatty.IsTerminal(os.Stdout.Fd()),
	}, nil
}

// Close flushes and closes the underlying log file.
func (r *ConsoleReporter) Close() error {
	return r.logFile.Close()
}

func (r *ConsoleReporter) emit(channel, color, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.colorize && color != "" {
		fmt.Fprintln(r.out, color+text+colorReset)
	} else {
		fmt.Fprintln(r.out, text)
	}
	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(r.logFile, "%s [%s] %s\n", timestamp, channel, text)
}

func (r *ConsoleReporter) System(msg string) {
	r.emit("SYS", colorBlue, msg)
}

func (r *ConsoleReporter) Office(officeName, msg string) {
	r.emit("OFF:"+officeName, "", msg)
}

func (r *ConsoleReporter) Customer(customerID, msg string) {
	r.emit("CUS:"+customerID, "", msg)
}

func (r *ConsoleReporter) OfficeArrival(office, customer, doc string) {
	r.emit("ARRIVE", colorCyan, fmt.Sprintf("ARRIVE office %s person %s asking for %s", office, customer, doc))
}

func (r *ConsoleReporter) RequestAccepted(office, customer, doc string) {
	r.emit("REQUEST", "", fmt.Sprintf("REQUEST office %s person %s -> %s in progress", office, customer, doc))
}

func (r *ConsoleReporter) Queue(office, customer, doc string, snapshot []string) {
	people := "(now being served)"
	if len(snapshot) > 0 {
		people = strings.Join(snapshot, ", ")
	}
	r.emit("QUEUE", "", fmt.Sprintf("QUEUE office %s person %s waiting for %s | line: %s", office, customer, doc, people))
}

func (r *ConsoleReporter) CounterStart(office string, counterIndex int, customer, doc string) {
	r.emit("ARRIVAL", colorYellow, fmt.Sprintf("COUNTER office %s counter %d now processing person %s for %s", office, counterIndex, customer, doc))
}

func (r *ConsoleReporter) Transport(fromOffice, toOffice, doc string) {
	r.emit("TRANSPORT", colorCyan, fmt.Sprintf("TRANSPORTING from counter: %s to counter: %s document: %s", fromOffice, toOffice, doc))
}

func (r *ConsoleReporter) Cancel(office, customer, doc, reason string) {
	r.emit("CANCEL", colorRed, fmt.Sprintf("CANCELLED at office %s person %s request %s -> %s", office, customer, doc, reason))
}

func (r *ConsoleReporter) CounterFinish(office string, counterIndex int, customer, doc string) {
	r.emit("FINISH", colorGreen, fmt.Sprintf("FINISHED person %s got %s from %s counter %d LEAVING...", customer, doc, office, counterIndex))
}

func (r *ConsoleReporter) Issued(result domain.IssuanceResult) {
	suffix := ""
	if result.ServiceDuration > 0 {
		suffix = " in " + humanize.Comma(result.ServiceDuration.Milliseconds()) + " ms"
	}
	deps := ""
	if len(result.Dependencies) > 0 {
		deps = " (deps: " + strings.Join(result.Dependencies, ", ") + ")"
	}
	r.emit("DOC:"+result.CustomerID, "", fmt.Sprintf("received %s from %s%s%s", result.DocumentName, result.IssuingOffice, suffix, deps))
}
