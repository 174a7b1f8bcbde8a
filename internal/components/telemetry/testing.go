package telemetry

import (
	"fmt"
	"sync"
	"testing"
)

// Report is a single call recorded by TestAPI.
type Report struct {
	Kind   string
	Id     string
	Params []any
}

// TestAPI logs every report to the test log and keeps them for assertions.
type TestAPI struct {
	t       testing.TB
	lock    *sync.Mutex
	reports *[]Report
}

func NewTestAPI(t testing.TB) TestAPI {
	return TestAPI{
		t:       t,
		lock:    &sync.Mutex{},
		reports: &[]Report{},
	}
}

func (a TestAPI) record(kind, id string, params []any) {
	a.lock.Lock()
	defer a.lock.Unlock()
	*a.reports = append(*a.reports, Report{Kind: kind, Id: id, Params: params})
	a.t.Log(kind, id, fmt.Sprint(params...))
}

func (a TestAPI) ReportBroken(id string, params ...any) {
	a.record("broken", id, params)
}

func (a TestAPI) ReportWarning(id string, params ...any) {
	a.record("warning", id, params)
}

func (a TestAPI) ReportDebug(msg string, params ...any) {
	a.record("debug", msg, params)
}

func (a TestAPI) ReportCount(id string, count int64) {
	a.record("count", id, []any{count})
}

// Reports returns the recorded reports of the given kind.
func (a TestAPI) Reports(kind string) []Report {
	a.lock.Lock()
	defer a.lock.Unlock()
	var out []Report
	for _, r := range *a.reports {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
