package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/reports"
)

// Exporter writes the artifact for one month.
type Exporter interface {
	Export(ctx context.Context, month core.Month) (string, error)
	Path(month core.Month) string
	ExportedMonths() ([]core.Month, error)
}

// MonthLister enumerates the months that hold expenses.
type MonthLister interface {
	ListMonths(ctx context.Context) ([]core.Month, error)
}

// EventSource delivers ledger events until its context ends.
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// ReportWorker keeps the report artifacts in the reports directory in
// step with the ledger.
type ReportWorker struct {
	exporter    Exporter
	months      MonthLister
	concurrency int
	now         func() time.Time
}

func NewReportWorker(exporter Exporter, months MonthLister, concurrency int) *ReportWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReportWorker{
		exporter:    exporter,
		months:      months,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// HandleLedgerEvent regenerates the months an event can affect.
func (w *ReportWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldEventKind, ev.Kind,
		applog.FieldMonth, ev.Month,
		applog.FieldID, ev.ID)

	if !ev.AffectsAllMonths() {
		return w.ExportMonths(ctx, []core.Month{ev.Month})
	}
	return w.RegenerateAll(ctx)
}

// RegenerateAll rewrites the artifact of every month with expenses, the
// current month, which fixed rules alone can populate, and every month
// that already has an artifact on disk so stale ones get refreshed or
// removed.
func (w *ReportWorker) RegenerateAll(ctx context.Context) error {
	listed, err := w.months.ListMonths(ctx)
	if err != nil {
		return fmt.Errorf("list months: %w", err)
	}
	exported, err := w.exporter.ExportedMonths()
	if err != nil {
		return fmt.Errorf("list exported months: %w", err)
	}

	seen := make(map[core.Month]bool, len(listed)+len(exported)+1)
	var months []core.Month
	for _, group := range [][]core.Month{listed, {core.CurrentMonth(w.now())}, exported} {
		for _, m := range group {
			if !seen[m] {
				seen[m] = true
				months = append(months, m)
			}
		}
	}

	return w.ExportMonths(ctx, months)
}

// ExportMonths exports the given months in parallel, bounded by the
// configured concurrency. A month without data has its stale artifact
// removed.
func (w *ReportWorker) ExportMonths(ctx context.Context, months []core.Month) error {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, month := range months {
		g.Go(func() error {
			return w.exportMonth(gctx, month)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.DebugContext(ctx, "Reports regenerated",
		applog.FieldComponent, applog.ComponentWorker,
		"months", len(months),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (w *ReportWorker) exportMonth(ctx context.Context, month core.Month) error {
	path, err := w.exporter.Export(ctx, month)
	if errors.Is(err, reports.ErrNoData) {
		return w.removeStale(ctx, month)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", month, err)
	}

	slog.DebugContext(ctx, "Month exported",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldMonth, month,
		applog.FieldPath, path)
	return nil
}

func (w *ReportWorker) removeStale(ctx context.Context, month core.Month) error {
	path := w.exporter.Path(month)
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.DebugContext(ctx, "No data for month, nothing to export",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldMonth, month)
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove stale report %s: %w", path, err)
	}

	slog.InfoContext(ctx, "Stale report removed",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldMonth, month,
		applog.FieldPath, path)
	return nil
}

// Run regenerates everything once, then follows events (when source is
// non-nil) and a periodic full refresh until ctx is cancelled. Handler
// errors are left to the source's redelivery; refresh errors are logged.
func (w *ReportWorker) Run(ctx context.Context, source EventSource, refresh time.Duration) error {
	if err := w.RegenerateAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup report regeneration failed",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if source != nil {
		g.Go(func() error {
			return source.ConsumeLedgerEvents(gctx, w.HandleLedgerEvent)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := w.RegenerateAll(gctx); err != nil && gctx.Err() == nil {
					slog.ErrorContext(gctx, "Periodic report refresh failed",
						applog.FieldComponent, applog.ComponentWorker,
						applog.FieldError, err)
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
