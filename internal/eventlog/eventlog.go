// Package eventlog adapts the teacher's WAL-mode SQLite bootstrap into a
// write-only durable EventSink: every core event is appended as a row and
// never read back. Opening the log always starts a fresh table, so it
// cannot be used to resume or recover simulation state — persistence and
// crash recovery remain explicit non-goals; this sink exists purely so a
// completed run leaves a queryable trace on disk.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anthropics/bureaucracy-sim/internal/domain"
)

const schemaV1 = `
CREATE TABLE IF NOT EXISTS events (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_unix_nano INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	office       TEXT NOT NULL DEFAULT '',
	customer     TEXT NOT NULL DEFAULT '',
	document     TEXT NOT NULL DEFAULT '',
	payload_json TEXT NOT NULL DEFAULT '{}'
);
`

// Log is a write-only, append-only SQLite event sink.
type Log struct {
	db  *sql.DB
	seq atomic.Int64
}

// Open creates (or truncates, if it already exists as a events table from a
// prior run) a SQLite database at path with the recommended WAL pragmas,
// matching the teacher's NewDB bootstrap.
func Open(path string) (*Log, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), "DROP TABLE IF EXISTS events"); err != nil {
		db.Close()
		return nil, fmt.Errorf("reset event log schema: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schemaV1); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate event log schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) insert(kind, office, customer, document string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte("{}")
	}
	const q = `INSERT INTO events (seq, ts_unix_nano, kind, office, customer, document, payload_json)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, _ = l.db.ExecContext(context.Background(), q,
		l.seq.Add(1), time.Now().UnixNano(), kind, office, customer, document, string(body))
}

func (l *Log) System(msg string) {
	l.insert("system", "", "", "", map[string]string{"msg": msg})
}

func (l *Log) Office(officeName, msg string) {
	l.insert("office", officeName, "", "", map[string]string{"msg": msg})
}

func (l *Log) Customer(customerID, msg string) {
	l.insert("customer", "", customerID, "", map[string]string{"msg": msg})
}

func (l *Log) OfficeArrival(office, customer, doc string) {
	l.insert("office_arrival", office, customer, doc, nil)
}

func (l *Log) RequestAccepted(office, customer, doc string) {
	l.insert("request_accepted", office, customer, doc, nil)
}

func (l *Log) Queue(office, customer, doc string, snapshot []string) {
	l.insert("queue", office, customer, doc, map[string]any{"snapshot": snapshot})
}

func (l *Log) CounterStart(office string, counterIndex int, customer, doc string) {
	l.insert("counter_start", office, customer, doc, map[string]int{"counter": counterIndex})
}

func (l *Log) Transport(fromOffice, toOffice, doc string) {
	l.insert("transport", fromOffice, "", doc, map[string]string{"to": toOffice})
}

func (l *Log) Cancel(office, customer, doc, reason string) {
	l.insert("cancel", office, customer, doc, map[string]string{"reason": reason})
}

func (l *Log) CounterFinish(office string, counterIndex int, customer, doc string) {
	l.insert("counter_finish", office, customer, doc, map[string]int{"counter": counterIndex})
}

func (l *Log) Issued(result domain.IssuanceResult) {
	l.insert("issued", result.IssuingOffice, result.CustomerID, result.DocumentName, map[string]any{
		"dependencies":      result.Dependencies,
		"serviceDurationMs": result.ServiceDuration.Milliseconds(),
		"taskId":            result.TaskID,
	})
}
