// Package main is the entry point for the bureaucracy document-issuance
// simulation.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/anthropics/bureaucracy-sim/internal/config"
	"github.com/anthropics/bureaucracy-sim/internal/domain"
	"github.com/anthropics/bureaucracy-sim/internal/eventlog"
	"github.com/anthropics/bureaucracy-sim/internal/reporter"
	"github.com/anthropics/bureaucracy-sim/internal/simulation"
	"github.com/anthropics/bureaucracy-sim/internal/status"
)

// arrivalStagger spaces out sample-fixture customer arrivals so counters
// don't all admit their first customer in the same instant.
const arrivalStagger = 200 * time.Millisecond

var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := &cobra.Command{
		Use:   "bureaucracy",
		Short: "Simulate a bureaucracy of document-issuing offices",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newRunCmd())

	if err := root.Execute(); err != nil {
		fatal(err.Error())
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("bureaucracy %s (commit=%s)\n", version, commit)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		logPath    string
		dbPath     string
		noStatus   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, listenAddr, logPath, dbPath, noStatus)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to office/document configuration YAML file")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "address for the read-only status endpoint, empty disables it")
	cmd.Flags().StringVar(&logPath, "log", "simulation.log", "path to the narration log file")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the write-only event log database, empty picks a run-scoped default")
	cmd.Flags().BoolVar(&noStatus, "no-status", false, "disable the status endpoint even if --listen is set")

	return cmd
}

// run resolves configuration, wires the reporter chain, drives the
// simulation to completion, and prints a summary table.
func run(configPath, listenAddr, logPath, dbPath string, noStatus bool) error {
	runID := uuid.NewString()

	cfg, customers, err := resolveConfig(configPath)
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "bureaucracy-"+runID+".db")
	}
	elog, err := eventlog.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer elog.Close()

	console, err := reporter.NewConsole(logPath)
	if err != nil {
		return fmt.Errorf("open console reporter: %w", err)
	}
	defer console.Close()

	logrusLog := logrus.New()
	logrusLog.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	sink := reporter.NewMulti(console, reporter.NewLogrusSink(logrusLog), elog)

	sink.System(fmt.Sprintf("run %s starting with %d offices, %d documents, %d customers", runID, len(cfg.Offices()), len(cfg.Documents()), len(customers)))

	sim := simulation.New(cfg, sink)

	var statusServer *status.Server
	if listenAddr != "" && !noStatus {
		statusServer = status.NewServer(sim, listenAddr)
		go func() {
			if err := statusServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Printf("status server error: %v", err)
			}
		}()
		log.Printf("status endpoint listening on %s", listenAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	interrupted := make(chan struct{})
	go func() {
		<-sigCh
		log.Println("shutting down...")
		close(interrupted)
	}()

	done := make(chan []simulation.CustomerOutcome, 1)
	go func() { done <- sim.Run(customers) }()

	var outcomes []simulation.CustomerOutcome
	select {
	case outcomes = <-done:
	case <-interrupted:
		log.Println("interrupted before all customers settled")
	}

	sim.Shutdown()
	if statusServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = statusServer.Shutdown(ctx)
	}

	sink.System(fmt.Sprintf("run %s complete", runID))
	printSummary(outcomes, sim.Summaries())
	return nil
}

// resolveConfig loads office/document data from --config, else from
// $BUREAUCRACY_CONFIG, else from a discovered config.yaml, falling back to
// the built-in sample fixture when none is found. Customers always come from the
// sample fixture; the config file only describes offices and documents.
func resolveConfig(configPath string) (*config.Configuration, []domain.CustomerProfile, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("BUREAUCRACY_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}
	if path == "" {
		return config.Sample(), toProfiles(config.SampleCustomers()), nil
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, toProfiles(config.SampleCustomers()), nil
}

// toProfiles converts the CLI's zero-config customer fixture into
// domain.CustomerProfile values with staggered arrival delays.
func toProfiles(customers []config.Customer) []domain.CustomerProfile {
	profiles := make([]domain.CustomerProfile, len(customers))
	for i, c := range customers {
		profiles[i] = domain.CustomerProfile{
			CustomerID:         c.CustomerID,
			RequestedDocuments: c.RequestedDocuments,
			ArrivalDelay:       time.Duration(i) * arrivalStagger,
		}
	}
	return profiles
}

// discoverConfig looks for config.yaml next to the executable, then in the
// current working directory.
func discoverConfig() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func printSummary(outcomes []simulation.CustomerOutcome, offices []simulation.OfficeSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Customers")
	t.AppendHeader(table.Row{"Customer", "Obtained", "Elapsed", "Error"})
	for _, o := range outcomes {
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}
		t.AppendRow(table.Row{o.CustomerID, o.Obtained, o.Elapsed.Round(time.Millisecond), errText})
	}
	t.Render()

	ot := table.NewWriter()
	ot.SetOutputMirror(os.Stdout)
	ot.SetTitle("Offices")
	ot.AppendHeader(table.Row{"Office", "Counters", "Final Queue", "Issued"})
	for _, s := range offices {
		ot.AppendRow(table.Row{s.Name, s.Counters, s.FinalQueueSize, s.DocumentsIssued})
	}
	ot.Render()
}

func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	os.Exit(1)
}
