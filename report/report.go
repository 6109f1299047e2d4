// Package report delivers periodic evaluation records to a sink. The core
// emits one record per evaluation interval; where it lands (CSV file, SQLite
// table, both) is the caller's choice.
package report

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	_ "modernc.org/sqlite"
)

// Record is one evaluation result: smoothed losses over sampled batches from
// each split at a given optimizer step.
type Record struct {
	Iter      int
	TrainLoss float64
	ValLoss   float64
}

// Reporter consumes evaluation records.
type Reporter interface {
	Report(Record) error
	Close() error
}

// ---------- CSV ----------

// CSVReporter appends records to a CSV stream with a header row, the shape
// of the training_log.csv files these runs have always produced.
type CSVReporter struct {
	w *csv.Writer
	c io.Closer
}

// NewCSVReporter writes the header immediately. If w is also an io.Closer it
// is closed by Close.
func NewCSVReporter(w io.Writer) (*CSVReporter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"iter", "train_loss", "val_loss"}); err != nil {
		return nil, fmt.Errorf("report: writing csv header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("report: writing csv header: %w", err)
	}
	r := &CSVReporter{w: cw}
	if c, ok := w.(io.Closer); ok {
		r.c = c
	}
	return r, nil
}

func (r *CSVReporter) Report(rec Record) error {
	err := r.w.Write([]string{
		strconv.Itoa(rec.Iter),
		strconv.FormatFloat(rec.TrainLoss, 'f', 6, 64),
		strconv.FormatFloat(rec.ValLoss, 'f', 6, 64),
	})
	if err != nil {
		return fmt.Errorf("report: writing csv record: %w", err)
	}
	r.w.Flush()
	return r.w.Error()
}

func (r *CSVReporter) Close() error {
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return err
	}
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}

// ---------- SQLite ----------

// SQLiteReporter persists records to an eval_log table so runs can be
// compared after the fact with plain SQL.
type SQLiteReporter struct {
	db *sql.DB
}

const createEvalLog = `
CREATE TABLE IF NOT EXISTS eval_log (
	iter       INTEGER NOT NULL,
	train_loss REAL    NOT NULL,
	val_loss   REAL    NOT NULL,
	created_at TEXT    NOT NULL DEFAULT (datetime('now'))
)`

// NewSQLiteReporter opens (or creates) the database at path.
func NewSQLiteReporter(path string) (*SQLiteReporter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("report: opening sqlite db: %w", err)
	}
	if _, err := db.Exec(createEvalLog); err != nil {
		db.Close()
		return nil, fmt.Errorf("report: creating eval_log table: %w", err)
	}
	return &SQLiteReporter{db: db}, nil
}

func (r *SQLiteReporter) Report(rec Record) error {
	_, err := r.db.Exec(
		`INSERT INTO eval_log (iter, train_loss, val_loss) VALUES (?, ?, ?)`,
		rec.Iter, rec.TrainLoss, rec.ValLoss,
	)
	if err != nil {
		return fmt.Errorf("report: inserting eval record: %w", err)
	}
	return nil
}

func (r *SQLiteReporter) Close() error {
	return r.db.Close()
}

// ---------- fan-out ----------

type multi []Reporter

// Multi fans each record out to every reporter.
func Multi(rs ...Reporter) Reporter {
	return multi(rs)
}

func (m multi) Report(rec Record) error {
	for _, r := range m {
		if err := r.Report(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) Close() error {
	var first error
	for _, r := range m {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard ignores every record; used when no sink is configured.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(Record) error { return nil }
func (discard) Close() error        { return nil }
