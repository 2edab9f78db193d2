package mylog

import (
	"context"
	"fmt"
	"sync"
)

type Record struct {
	TraceLabel string
	Severity   Severity
	Message    string
}

// Recorder keeps log records in memory so tests can make assertions on them.
type Recorder struct {
	sync.Mutex
	records []Record
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Log(c context.Context, traceLabel string, severity Severity, format string, a ...any) {
	r.Lock()
	defer r.Unlock()

	r.records = append(r.records, Record{
		TraceLabel: traceLabel,
		Severity:   severity,
		Message:    fmt.Sprintf(format, a...),
	})
}

func (r *Recorder) Records(severity Severity) []Record {
	r.Lock()
	defer r.Unlock()

	result := []Record{}
	for _, rec := range r.records {
		if rec.Severity == severity {
			result = append(result, rec)
		}
	}
	return result
}
