package telemetry

import (
	"strings"
	"sync"
)

type ReportKind int

const (
	REPORT_BROKEN ReportKind = iota
	REPORT_WARNING
	REPORT_DEBUG
	REPORT_COUNT
)

type Report struct {
	Kind   ReportKind
	ID     string
	Params []any
	Count  int64
}

// RecorderAPI keeps every report in memory so tests can assert on them.
// It optionally forwards to another API.
type RecorderAPI struct {
	forward API

	mutex   sync.Mutex
	reports []Report
}

func NewRecorderAPI(forward API) *RecorderAPI {
	return &RecorderAPI{forward: forward}
}

func (r *RecorderAPI) record(report Report) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, report)
}

func (r *RecorderAPI) ReportBroken(id string, params ...any) {
	r.record(Report{Kind: REPORT_BROKEN, ID: id, Params: params})
	if r.forward != nil {
		r.forward.ReportBroken(id, params...)
	}
}

func (r *RecorderAPI) ReportWarning(id string, params ...any) {
	r.record(Report{Kind: REPORT_WARNING, ID: id, Params: params})
	if r.forward != nil {
		r.forward.ReportWarning(id, params...)
	}
}

func (r *RecorderAPI) ReportDebug(msg string, params ...any) {
	r.record(Report{Kind: REPORT_DEBUG, ID: msg, Params: params})
	if r.forward != nil {
		r.forward.ReportDebug(msg, params...)
	}
}

func (r *RecorderAPI) ReportCount(id string, count int64) {
	r.record(Report{Kind: REPORT_COUNT, ID: id, Count: count})
	if r.forward != nil {
		r.forward.ReportCount(id, count)
	}
}

// Reports returns all reports of the given kind whose id contains `idPart`.
func (r *RecorderAPI) Reports(kind ReportKind, idPart string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range r.reports {
		if report.Kind == kind && strings.Contains(report.ID, idPart) {
			out = append(out, report)
		}
	}
	return out
}

// Counted sums all counts reported under ids containing `idPart`.
func (r *RecorderAPI) Counted(idPart string) int64 {
	var total int64
	for _, report := range r.Reports(REPORT_COUNT, idPart) {
		total += report.Count
	}
	return total
}
