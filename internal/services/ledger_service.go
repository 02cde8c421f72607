package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/storage"
)

// Publisher delivers ledger events to report consumers.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
	Close() error
}

// LedgerService applies ledger mutations to SQLite and announces each
// committed change. Publishing is best effort: a failed publish is logged
// and never undoes or fails the mutation.
type LedgerService struct {
	storage        *storage.SQLiteRepository
	publisher      Publisher
	publishTimeout time.Duration
}

// NewLedgerService wires the store with an optional publisher. A nil
// publisher disables events.
func NewLedgerService(storage *storage.SQLiteRepository, publisher Publisher, publishTimeout time.Duration) *LedgerService {
	if publishTimeout <= 0 {
		publishTimeout = 5 * time.Second
	}
	return &LedgerService{
		storage:        storage,
		publisher:      publisher,
		publishTimeout: publishTimeout,
	}
}

// AddExpense stores a variable expense and returns its ID.
func (s *LedgerService) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	id, err := s.storage.AddExpense(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("save expense: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventExpenseAdded, e.Month(), id))
	return id, nil
}

// DeleteExpense removes an expense and reports whether it existed.
func (s *LedgerService) DeleteExpense(ctx context.Context, id int64) (bool, error) {
	e, found, err := s.storage.GetExpense(ctx, id)
	if err != nil {
		return false, fmt.Errorf("load expense: %w", err)
	}
	if !found {
		return false, nil
	}

	deleted, err := s.storage.DeleteExpense(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete expense: %w", err)
	}
	if deleted {
		s.publish(ctx, amqp.NewLedgerEvent(amqp.EventExpenseDeleted, e.Month(), id))
	}
	return deleted, nil
}

// AddFixedExpense stores a recurring rule and returns its ID.
func (s *LedgerService) AddFixedExpense(ctx context.Context, f core.FixedExpense) (int64, error) {
	id, err := s.storage.AddFixedExpense(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("save fixed expense: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventFixedAdded, "", id))
	return id, nil
}

// DeleteFixedExpense removes a rule and reports whether it existed.
func (s *LedgerService) DeleteFixedExpense(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.storage.DeleteFixedExpense(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete fixed expense: %w", err)
	}
	if deleted {
		s.publish(ctx, amqp.NewLedgerEvent(amqp.EventFixedDeleted, "", id))
	}
	return deleted, nil
}

// SetFixedActive toggles whether a rule counts toward fixed totals.
func (s *LedgerService) SetFixedActive(ctx context.Context, id int64, active bool) error {
	if err := s.storage.SetFixedActive(ctx, id, active); err != nil {
		return fmt.Errorf("toggle fixed expense: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventFixedToggled, "", id))
	return nil
}

// SetGlobalSalary overwrites the salary applied to every month.
func (s *LedgerService) SetGlobalSalary(ctx context.Context, salary core.Money) error {
	if err := s.storage.SetGlobalSalary(ctx, salary); err != nil {
		return fmt.Errorf("save salary: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventSalarySet, "", 0))
	return nil
}

func (s *LedgerService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "Ledger events disabled, skipping publish",
			applog.FieldComponent, applog.ComponentLedger,
			applog.FieldEventKind, ev.Kind)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	if err := s.publisher.PublishLedgerEvent(pubCtx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger event",
			applog.NewFields().
				WithComponent(applog.ComponentLedger).
				WithOperation(applog.OpPublish).
				WithErrorType(applog.ErrorTypeNetwork).
				WithError(err).
				ToSlice()...)
		return
	}

	slog.InfoContext(ctx, "Ledger event published",
		applog.FieldComponent, applog.ComponentLedger,
		applog.FieldEventKind, ev.Kind,
		applog.FieldMonth, ev.Month,
		applog.FieldID, ev.ID)
}

// Close closes both storage and the publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
