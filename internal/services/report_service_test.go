package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func TestPersonTotalsScenario(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		pedro := mustPerson(t, svc, "Pedro", 20)
		mustPerson(t, svc, "Ana", 9)
		salary := mustCategory(t, svc, "Salary", core.PurposeIncome)
		rent := mustCategory(t, svc, "Rent", core.PurposeExpense)
		mustTx(t, svc, newTx(pedro, salary, core.TypeIncome, "5000.00"))
		mustTx(t, svc, newTx(pedro, rent, core.TypeExpense, "1000.00"))

		report, err := svc.Reports.PersonTotals(context.Background())
		require.NoError(t, err)
		require.Len(t, report.People, 2)

		ana, p := report.People[0], report.People[1]
		assert.Equal(t, "Ana", ana.Name)
		assert.True(t, ana.IsMinor)
		assert.True(t, ana.TotalIncome.IsZero())
		assert.True(t, ana.Balance.IsZero())

		assert.Equal(t, "Pedro", p.Name)
		assert.Equal(t, "5000.00", p.TotalIncome.String())
		assert.Equal(t, "1000.00", p.TotalExpense.String())
		assert.Equal(t, "4000.00", p.Balance.String())

		assert.Equal(t, "5000.00", report.GrandTotalIncome.String())
		assert.Equal(t, "1000.00", report.GrandTotalExpense.String())
		assert.Equal(t, "4000.00", report.GrandBalance.String())

		b, err := json.Marshal(p)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"totalIncome":5000.00`)
		assert.Contains(t, string(b), `"balance":4000.00`)
	})
}

func TestCategoryTotals(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		p := mustPerson(t, svc, "Pedro", 20)
		gifts := mustCategory(t, svc, "Gifts", core.PurposeBoth)
		mustCategory(t, svc, "Unused", core.PurposeExpense)
		mustTx(t, svc, newTx(p, gifts, core.TypeIncome, "30.10"))
		mustTx(t, svc, newTx(p, gifts, core.TypeExpense, "10.05"))

		report, err := svc.Reports.CategoryTotals(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Categories, 2)

		g := report.Categories[0]
		assert.Equal(t, "Gifts", g.Description)
		assert.Equal(t, "Both", g.PurposeLabel)
		assert.Equal(t, "20.05", g.Balance.String())

		u := report.Categories[1]
		assert.Equal(t, "Unused", u.Description)
		assert.Equal(t, "Expense", u.PurposeLabel)
		assert.True(t, u.TotalExpense.IsZero())

		assert.Equal(t, "20.05", report.GrandBalance.String())
	})
}

func TestGrandBalanceIsExact(t *testing.T) {
	svc := New(storage.NewMemoryStore())
	rng := rand.New(rand.NewSource(42))
	both := mustCategory(t, svc, "Anything", core.PurposeBoth)

	for i := 0; i < 5; i++ {
		p := mustPerson(t, svc, fmt.Sprintf("Person %c", 'A'+i), 30+i)
		for j := 0; j < 40; j++ {
			typ := core.TransactionType(rng.Intn(2))
			amount := core.MoneyFromCents(1 + rng.Int63n(1_000_000))
			in := newTx(p, both, typ, "1")
			in.Amount = amount
			mustTx(t, svc, in)
		}
	}

	report, err := svc.Reports.PersonTotals(context.Background())
	require.NoError(t, err)
	assert.True(t, report.GrandBalance.Equal(report.GrandTotalIncome.Sub(report.GrandTotalExpense)))

	sum := core.Zero
	for _, row := range report.People {
		assert.True(t, row.Balance.Equal(row.TotalIncome.Sub(row.TotalExpense)))
		sum = sum.Add(row.Balance)
	}
	assert.True(t, sum.Equal(report.GrandBalance))
}

func TestReportCacheInvalidatedByMutations(t *testing.T) {
	svc := New(storage.NewMemoryStore(), WithReportCache(time.Hour))
	ctx := context.Background()
	p := mustPerson(t, svc, "Pedro", 20)
	c := mustCategory(t, svc, "Salary", core.PurposeIncome)

	first, err := svc.Reports.PersonTotals(ctx)
	require.NoError(t, err)
	assert.True(t, first.GrandTotalIncome.IsZero())
	assert.Equal(t, 1, svc.Reports.people.Size())

	mustTx(t, svc, newTx(p, c, core.TypeIncome, "10"))
	assert.Equal(t, 0, svc.Reports.people.Size(), "mutation must purge cached reports")

	second, err := svc.Reports.PersonTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10.00", second.GrandTotalIncome.String())

	again, err := svc.Reports.PersonTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, again)
	assert.Len(t, svc.Reports.Caches(), 2)
}

func TestConcurrentReportsAgree(t *testing.T) {
	svc := New(storage.NewMemoryStore(), WithReportCache(time.Minute))
	p := mustPerson(t, svc, "Pedro", 20)
	c := mustCategory(t, svc, "Gifts", core.PurposeBoth)
	mustTx(t, svc, newTx(p, c, core.TypeIncome, "7.77"))

	var wg sync.WaitGroup
	results := make([]core.CategoryTotalsReport, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := svc.Reports.CategoryTotals(context.Background())
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "7.77", r.GrandBalance.String())
	}
}

func TestReportsWithoutCache(t *testing.T) {
	svc := New(storage.NewMemoryStore())
	assert.Nil(t, svc.Reports.Caches())

	report, err := svc.Reports.PersonTotals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.People)
	assert.True(t, report.GrandBalance.IsZero())
}

// gatedStore holds report reads until released.
type gatedStore struct {
	*storage.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) WithReadTx(ctx context.Context, fn func(storage.Tx) error) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return s.MemoryStore.WithReadTx(ctx, fn)
}

func TestReportSurvivesCancelledCaller(t *testing.T) {
	store := &gatedStore{
		MemoryStore: storage.NewMemoryStore(),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	svc := New(store, WithReportCache(time.Minute))
	p := mustPerson(t, svc, "Pedro", 20)
	c := mustCategory(t, svc, "Salary", core.PurposeIncome)
	mustTx(t, svc, newTx(p, c, core.TypeIncome, "42"))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.Reports.PersonTotals(ctx)
		first <- err
	}()
	<-store.entered

	second := make(chan core.PersonTotalsReport, 1)
	go func() {
		r, err := svc.Reports.PersonTotals(context.Background())
		assert.NoError(t, err)
		second <- r
	}()

	cancel()
	close(store.release)

	require.NoError(t, <-first)
	assert.Equal(t, "42.00", (<-second).GrandTotalIncome.String())
	assert.Equal(t, 1, svc.Reports.people.Size())
}
