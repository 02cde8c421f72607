package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/reports"
)

type fakeExporter struct {
	dir    string
	mu     sync.Mutex
	calls  []core.Month
	noData map[core.Month]bool
	err    error
}

func (f *fakeExporter) Path(month core.Month) string {
	return filepath.Join(f.dir, month.String()+"_report.json")
}

func (f *fakeExporter) Export(_ context.Context, month core.Month) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, month)
	f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	if f.noData[month] {
		return "", reports.ErrNoData
	}
	path := f.Path(month)
	return path, os.WriteFile(path, []byte("{}"), 0o644)
}

func (f *fakeExporter) ExportedMonths() ([]core.Month, error) {
	paths, err := filepath.Glob(filepath.Join(f.dir, "*_report.json"))
	if err != nil {
		return nil, err
	}
	var out []core.Month
	for _, p := range paths {
		out = append(out, core.Month(strings.TrimSuffix(filepath.Base(p), "_report.json")))
	}
	return out, nil
}

func (f *fakeExporter) exported() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, m := range f.calls {
		out = append(out, m.String())
	}
	sort.Strings(out)
	return out
}

type fakeMonths struct {
	months []core.Month
	err    error
}

func (f fakeMonths) ListMonths(context.Context) ([]core.Month, error) {
	return f.months, f.err
}

func newTestWorker(t *testing.T, months []core.Month) (*ReportWorker, *fakeExporter) {
	t.Helper()
	exp := &fakeExporter{dir: t.TempDir(), noData: map[core.Month]bool{}}
	w := NewReportWorker(exp, fakeMonths{months: months}, 2)
	w.now = func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }
	return w, exp
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHandleLedgerEvent_SingleMonth(t *testing.T) {
	w, exp := newTestWorker(t, []core.Month{"2025-01", "2025-03"})

	ev := amqp.NewLedgerEvent(amqp.EventExpenseAdded, "2025-03", 1)
	if err := w.HandleLedgerEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := exp.exported(); !equal(got, []string{"2025-03"}) {
		t.Fatalf("exported %v, want only 2025-03", got)
	}
}

func TestHandleLedgerEvent_AllMonths(t *testing.T) {
	w, exp := newTestWorker(t, []core.Month{"2025-01", "2025-03"})

	for _, kind := range []amqp.EventKind{amqp.EventSalarySet, amqp.EventFixedToggled} {
		exp.calls = nil
		if err := w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEvent(kind, "", 0)); err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		want := []string{"2025-01", "2025-03", "2025-06"}
		if got := exp.exported(); !equal(got, want) {
			t.Fatalf("%s: exported %v, want %v", kind, got, want)
		}
	}
}

func TestRegenerateAll_CurrentMonthNotDuplicated(t *testing.T) {
	w, exp := newTestWorker(t, []core.Month{"2025-06"})

	if err := w.RegenerateAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := exp.exported(); !equal(got, []string{"2025-06"}) {
		t.Fatalf("exported %v", got)
	}
}

func TestExportMonths_NoDataRemovesStaleReport(t *testing.T) {
	w, exp := newTestWorker(t, nil)
	stale := exp.Path("2025-02")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed stale report: %v", err)
	}
	exp.noData["2025-02"] = true
	exp.noData["2025-04"] = true

	if err := w.ExportMonths(context.Background(), []core.Month{"2025-02", "2025-04"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale report should be removed, stat err = %v", err)
	}
}

func TestRegenerateAll_RevisitsMonthsOnDisk(t *testing.T) {
	// 2024-11 and 2025-02 hold no expenses, only artifacts from fixed rules.
	w, exp := newTestWorker(t, []core.Month{"2025-03"})
	for _, m := range []core.Month{"2024-11", "2025-02"} {
		if err := os.WriteFile(exp.Path(m), []byte("old"), 0o644); err != nil {
			t.Fatalf("seed report %s: %v", m, err)
		}
	}
	exp.noData["2024-11"] = true

	if err := w.RegenerateAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"2024-11", "2025-02", "2025-03", "2025-06"}
	if got := exp.exported(); !equal(got, want) {
		t.Fatalf("exported %v, want %v", got, want)
	}
	if _, err := os.Stat(exp.Path("2024-11")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale 2024-11 report should be removed, stat err = %v", err)
	}
	body, err := os.ReadFile(exp.Path("2025-02"))
	if err != nil || string(body) != "{}" {
		t.Fatalf("2025-02 report not rewritten: %q, %v", body, err)
	}
}

func TestExportMonths_PropagatesErrors(t *testing.T) {
	w, exp := newTestWorker(t, nil)
	exp.err = errors.New("disk full")

	err := w.ExportMonths(context.Background(), []core.Month{"2025-01", "2025-02"})
	if err == nil || !errors.Is(err, exp.err) {
		t.Fatalf("expected wrapped export error, got %v", err)
	}
}

func TestRegenerateAll_ListError(t *testing.T) {
	exp := &fakeExporter{dir: t.TempDir()}
	w := NewReportWorker(exp, fakeMonths{err: errors.New("db locked")}, 0)

	if err := w.RegenerateAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if w.concurrency != 1 {
		t.Fatalf("concurrency = %d, want 1", w.concurrency)
	}
}

type fakeSource struct {
	events []*amqp.LedgerEvent
	errs   chan error
}

func (s *fakeSource) ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error {
	for _, ev := range s.events {
		s.errs <- handler(ctx, ev)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	w, exp := newTestWorker(t, []core.Month{"2025-01"})
	source := &fakeSource{
		events: []*amqp.LedgerEvent{amqp.NewLedgerEvent(amqp.EventExpenseDeleted, "2025-01", 9)},
		errs:   make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, source, time.Hour) }()

	select {
	case err := <-source.errs:
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event was not handled")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v after cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	// startup pass (2025-01, 2025-06) plus the event (2025-01)
	if got := exp.exported(); !equal(got, []string{"2025-01", "2025-01", "2025-06"}) {
		t.Fatalf("exported %v", got)
	}
}
