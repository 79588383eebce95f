package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

const (
	reportPeople     = "people"
	reportCategories = "categories"
)

// ReportService computes totals per person and per category from one
// consistent snapshot of the store. It never writes.
type ReportService struct {
	store  storage.Store
	logger *log.Logger

	// generation is bumped by every committed mutation. Cache keys carry
	// it, so a computation that raced a mutation is never served.
	generation atomic.Uint64
	group      singleflight.Group
	people     *cache.LRUCache[core.PersonTotalsReport]
	categories *cache.LRUCache[core.CategoryTotalsReport]
}

func newReportService(store storage.Store, ttl time.Duration, size int, logger *log.Logger) *ReportService {
	s := &ReportService{store: store, logger: logger}
	if ttl > 0 {
		s.people = cache.NewLRUCache[core.PersonTotalsReport](size, ttl)
		s.categories = cache.NewLRUCache[core.CategoryTotalsReport](size, ttl)
	}
	return s
}

// Caches returns the report caches so a cache.Manager can sweep them.
func (s *ReportService) Caches() []cache.Cleaner {
	if s.people == nil {
		return nil
	}
	return []cache.Cleaner{s.people, s.categories}
}

// Invalidate drops cached reports. Called after every committed mutation.
func (s *ReportService) Invalidate() {
	s.generation.Add(1)
	if s.people != nil {
		s.people.Purge()
		s.categories.Purge()
	}
}

func (s *ReportService) key(kind string) string {
	return fmt.Sprintf("%s@%d", kind, s.generation.Load())
}

// PersonTotals returns every person, ordered by name, with their income,
// expense and balance, plus grand totals. People without transactions
// appear with zero totals.
func (s *ReportService) PersonTotals(ctx context.Context) (core.PersonTotalsReport, error) {
	return cached(ctx, s, s.people, reportPeople, s.computePersonTotals)
}

// CategoryTotals is PersonTotals grouped by category, ordered by
// description.
func (s *ReportService) CategoryTotals(ctx context.Context) (core.CategoryTotalsReport, error) {
	return cached(ctx, s, s.categories, reportCategories, s.computeCategoryTotals)
}

func cached[T any](ctx context.Context, s *ReportService, c *cache.LRUCache[T], kind string, compute func(context.Context) (T, error)) (T, error) {
	key := s.key(kind)
	if c != nil {
		if r, ok := c.Get(key); ok {
			return r, nil
		}
	}

	// Callers joining the flight share its result, so one caller going
	// away must not cancel it for the rest.
	v, err, _ := s.group.Do(key, func() (any, error) {
		r, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return r, err
		}
		if c != nil {
			c.Set(key, r)
		}
		return r, nil
	})
	if err != nil {
		var zero T
		s.logger.ErrorContext(ctx, "Report failed", log.FieldReport, kind, log.FieldError, err)
		return zero, fmt.Errorf("%s report: %w", kind, err)
	}
	return v.(T), nil
}

func (s *ReportService) computePersonTotals(ctx context.Context) (core.PersonTotalsReport, error) {
	var (
		people       []core.Person
		transactions []core.TransactionDetail
	)
	err := s.store.WithReadTx(ctx, func(tx storage.Tx) error {
		var err error
		if people, err = tx.ListPeople(ctx, storage.AllPeople); err != nil {
			return err
		}
		transactions, err = tx.ListTransactions(ctx, storage.TransactionFilter{})
		return err
	})
	if err != nil {
		return core.PersonTotalsReport{}, err
	}

	byPerson := make(map[int64]*core.Totals, len(people))
	for _, p := range people {
		byPerson[p.ID] = &core.Totals{}
	}
	for _, t := range transactions {
		if tot, ok := byPerson[t.PersonID]; ok {
			tot.Add(t.Type, t.Amount)
		}
	}

	report := core.PersonTotalsReport{People: make([]core.PersonTotals, 0, len(people))}
	var grand core.Totals
	for _, p := range people {
		tot := byPerson[p.ID]
		report.People = append(report.People, core.PersonTotals{
			PersonID:     p.ID,
			Name:         p.Name,
			Age:          p.Age,
			IsMinor:      p.IsMinor(),
			TotalIncome:  tot.Income,
			TotalExpense: tot.Expense,
			Balance:      tot.Balance(),
		})
		grand.Income = grand.Income.Add(tot.Income)
		grand.Expense = grand.Expense.Add(tot.Expense)
	}
	report.GrandTotalIncome = grand.Income
	report.GrandTotalExpense = grand.Expense
	report.GrandBalance = grand.Balance()
	return report, nil
}

func (s *ReportService) computeCategoryTotals(ctx context.Context) (core.CategoryTotalsReport, error) {
	var (
		categories   []core.Category
		transactions []core.TransactionDetail
	)
	err := s.store.WithReadTx(ctx, func(tx storage.Tx) error {
		var err error
		if categories, err = tx.ListCategories(ctx, nil); err != nil {
			return err
		}
		transactions, err = tx.ListTransactions(ctx, storage.TransactionFilter{})
		return err
	})
	if err != nil {
		return core.CategoryTotalsReport{}, err
	}

	byCategory := make(map[int64]*core.Totals, len(categories))
	for _, c := range categories {
		byCategory[c.ID] = &core.Totals{}
	}
	for _, t := range transactions {
		if tot, ok := byCategory[t.CategoryID]; ok {
			tot.Add(t.Type, t.Amount)
		}
	}

	report := core.CategoryTotalsReport{Categories: make([]core.CategoryTotals, 0, len(categories))}
	var grand core.Totals
	for _, c := range categories {
		tot := byCategory[c.ID]
		report.Categories = append(report.Categories, core.CategoryTotals{
			CategoryID:   c.ID,
			Description:  c.Description,
			Purpose:      c.Purpose,
			PurposeLabel: c.Purpose.Label(),
			TotalIncome:  tot.Income,
			TotalExpense: tot.Expense,
			Balance:      tot.Balance(),
		})
		grand.Income = grand.Income.Add(tot.Income)
		grand.Expense = grand.Expense.Add(tot.Expense)
	}
	report.GrandTotalIncome = grand.Income
	report.GrandTotalExpense = grand.Expense
	report.GrandBalance = grand.Balance()
	return report, nil
}
