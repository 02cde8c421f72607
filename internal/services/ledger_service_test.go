package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakePublisher struct {
	mu       sync.Mutex
	events   []*amqp.LedgerEvent
	err      error
	deadline bool
	closed   bool
}

func (p *fakePublisher) PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, p.deadline = ctx.Deadline()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func (p *fakePublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]amqp.EventKind, 0, len(p.events))
	for _, ev := range p.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type LedgerServiceTestSuite struct {
	suite.Suite
	repo      *storage.SQLiteRepository
	publisher *fakePublisher
	service   *LedgerService
	ctx       context.Context
}

func (s *LedgerServiceTestSuite) SetupTest() {
	repo, err := storage.NewSQLiteRepository(filepath.Join(s.T().TempDir(), "expenses.db"))
	require.NoError(s.T(), err)
	s.repo = repo
	s.publisher = &fakePublisher{}
	s.service = NewLedgerService(repo, s.publisher, time.Second)
	s.ctx = context.Background()
}

func (s *LedgerServiceTestSuite) TearDownTest() {
	s.repo.Close()
}

func (s *LedgerServiceTestSuite) TestAddExpensePublishesMonth() {
	e, err := core.NewExpense(1250, "Food", "2025-03-14", nil)
	require.NoError(s.T(), err)

	id, err := s.service.AddExpense(s.ctx, e)
	require.NoError(s.T(), err)

	require.Len(s.T(), s.publisher.events, 1)
	ev := s.publisher.events[0]
	assert.Equal(s.T(), amqp.EventExpenseAdded, ev.Kind)
	assert.Equal(s.T(), core.Month("2025-03"), ev.Month)
	assert.Equal(s.T(), id, ev.ID)
	assert.True(s.T(), s.publisher.deadline, "publish should be bounded by the publish timeout")
}

func (s *LedgerServiceTestSuite) TestInvalidExpenseIsNotPublished() {
	_, err := s.service.AddExpense(s.ctx, core.Expense{Amount: core.Money{Cents: 0}, Category: "Food"})
	require.Error(s.T(), err)
	assert.True(s.T(), core.IsValidation(err))
	assert.Empty(s.T(), s.publisher.events)
}

func (s *LedgerServiceTestSuite) TestDeleteExpense() {
	e, err := core.NewExpense(500, "Food", "2025-04-01", nil)
	require.NoError(s.T(), err)
	id, err := s.service.AddExpense(s.ctx, e)
	require.NoError(s.T(), err)

	deleted, err := s.service.DeleteExpense(s.ctx, id)
	require.NoError(s.T(), err)
	assert.True(s.T(), deleted)

	deleted, err = s.service.DeleteExpense(s.ctx, id)
	require.NoError(s.T(), err)
	assert.False(s.T(), deleted)

	assert.Equal(s.T(), []amqp.EventKind{amqp.EventExpenseAdded, amqp.EventExpenseDeleted}, s.publisher.kinds())
	assert.Equal(s.T(), core.Month("2025-04"), s.publisher.events[1].Month)
}

func (s *LedgerServiceTestSuite) TestFixedExpenseLifecycle() {
	f, err := core.NewFixedExpense("Flat", 80000, "Rent", "2025-01", "")
	require.NoError(s.T(), err)

	id, err := s.service.AddFixedExpense(s.ctx, f)
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.service.SetFixedActive(s.ctx, id, false))

	total, err := s.repo.FixedTotalForMonth(s.ctx, "2025-02")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), total.Cents)

	deleted, err := s.service.DeleteFixedExpense(s.ctx, id)
	require.NoError(s.T(), err)
	assert.True(s.T(), deleted)

	assert.Equal(s.T(), []amqp.EventKind{amqp.EventFixedAdded, amqp.EventFixedToggled, amqp.EventFixedDeleted}, s.publisher.kinds())
	for _, ev := range s.publisher.events {
		assert.True(s.T(), ev.AffectsAllMonths())
	}
}

func (s *LedgerServiceTestSuite) TestSetGlobalSalary() {
	require.NoError(s.T(), s.service.SetGlobalSalary(s.ctx, core.Money{Cents: 250000}))

	salary, err := s.repo.GlobalSalary(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(250000), salary.Cents)
	assert.Equal(s.T(), []amqp.EventKind{amqp.EventSalarySet}, s.publisher.kinds())

	err = s.service.SetGlobalSalary(s.ctx, core.Money{Cents: -1})
	require.Error(s.T(), err)
	assert.True(s.T(), core.IsValidation(err))
	assert.Len(s.T(), s.publisher.events, 1)
}

func (s *LedgerServiceTestSuite) TestPublishFailureDoesNotFailMutation() {
	s.publisher.err = errors.New("connection refused")

	e, err := core.NewExpense(900, "Fun", "2025-05-05", nil)
	require.NoError(s.T(), err)
	id, err := s.service.AddExpense(s.ctx, e)
	require.NoError(s.T(), err)

	got, found, err := s.repo.GetExpense(s.ctx, id)
	require.NoError(s.T(), err)
	require.True(s.T(), found)
	assert.Equal(s.T(), int64(900), got.Amount.Cents)
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}

func TestLedgerServiceWithoutPublisher(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "expenses.db"))
	require.NoError(t, err)
	service := NewLedgerService(repo, nil, 0)
	defer service.Close()

	require.NoError(t, service.SetGlobalSalary(context.Background(), core.Money{Cents: 100}))
	assert.Equal(t, 5*time.Second, service.publishTimeout)
}

func TestLedgerService_Close(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		service := &LedgerService{}
		assert.NoError(t, service.Close())
	})

	t.Run("closes publisher", func(t *testing.T) {
		p := &fakePublisher{}
		service := &LedgerService{publisher: p}
		assert.NoError(t, service.Close())
		assert.True(t, p.closed)
	})
}
