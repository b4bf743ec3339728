package loop

import (
	"fmt"

	"github.com/grindloop/grind/pkg/models"
)

// Log is the append-only record of completed iterations for one run.
// Indices are dense: record N is always the (N+1)th successful call.
type Log struct {
	start   int
	records []models.IterationRecord
}

// NewLog creates a log whose first record must carry index start.
// Resumed runs pass the checkpoint's iteration count.
func NewLog(start int) *Log {
	if start < 0 {
		start = 0
	}
	return &Log{start: start}
}

// Append adds a record, enforcing the dense-index invariant.
func (l *Log) Append(rec models.IterationRecord) error {
	want := l.start + len(l.records)
	if rec.Index != want {
		return fmt.Errorf("iteration record index %d out of order (want %d)", rec.Index, want)
	}
	l.records = append(l.records, rec)
	return nil
}

// Len returns the number of records appended this run.
func (l *Log) Len() int {
	return len(l.records)
}

// Last returns the most recent record, if any.
func (l *Log) Last() (models.IterationRecord, bool) {
	if len(l.records) == 0 {
		return models.IterationRecord{}, false
	}
	return l.records[len(l.records)-1], true
}

// Records returns a copy of all records in append order.
func (l *Log) Records() []models.IterationRecord {
	out := make([]models.IterationRecord, len(l.records))
	copy(out, l.records)
	return out
}
