package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func TestTransactionCreate(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		p := mustPerson(t, svc, "Pedro", 20)
		c := mustCategory(t, svc, "Salary", core.PurposeIncome)

		in := newTx(p, c, core.TypeIncome, "5000")
		in.Description = "  June salary "
		d := mustTx(t, svc, in)

		assert.NotZero(t, d.ID)
		assert.Equal(t, "June salary", d.Description)
		assert.Equal(t, "5000.00", d.Amount.String())
		assert.Equal(t, "Pedro", d.PersonName)
		assert.Equal(t, "Salary", d.CategoryDescription)
		assert.True(t, fixedNow.Equal(d.CreatedAt))
		assert.True(t, d.CreatedAt.Equal(d.UpdatedAt))
	})
}

func TestMinorCannotHaveIncome(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		joao := mustPerson(t, svc, "joão", 16)
		income := mustCategory(t, svc, "Allowance", core.PurposeIncome)

		_, err := svc.Transactions.Create(context.Background(), newTx(joao, income, core.TypeIncome, "20"))
		e := requireKind(t, err, core.ErrBusinessRule)
		assert.Equal(t, core.RuleMinorIncome, e.Rule)

		list, err := svc.Transactions.ListAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestCategoryPurposeMustMatchType(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		adult := mustPerson(t, svc, "Marta", 40)
		salary := mustCategory(t, svc, "Salary", core.PurposeIncome)
		rent := mustCategory(t, svc, "Rent", core.PurposeExpense)
		gifts := mustCategory(t, svc, "Gifts", core.PurposeBoth)
		ctx := context.Background()

		_, err := svc.Transactions.Create(ctx, newTx(adult, salary, core.TypeExpense, "10"))
		e := requireKind(t, err, core.ErrBusinessRule)
		assert.Equal(t, core.RuleCategoryType, e.Rule)

		_, err = svc.Transactions.Create(ctx, newTx(adult, rent, core.TypeIncome, "10"))
		requireKind(t, err, core.ErrBusinessRule)

		mustTx(t, svc, newTx(adult, gifts, core.TypeIncome, "10"))
		mustTx(t, svc, newTx(adult, gifts, core.TypeExpense, "10"))
	})
}

func TestTransactionCreateCheckOrder(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		ctx := context.Background()
		minor := mustPerson(t, svc, "Nina", 12)
		salary := mustCategory(t, svc, "Salary", core.PurposeIncome)
		missingPerson := core.Person{ID: 9999}
		missingCategory := core.Category{ID: 9999}

		cases := []struct {
			name  string
			in    NewTransaction
			kind  error
			field string
		}{
			{"zero amount beats missing person", newTx(missingPerson, salary, core.TypeIncome, "0"), core.ErrValidation, "amount"},
			{"negative amount", newTx(minor, salary, core.TypeIncome, "-3"), core.ErrValidation, "amount"},
			{"sub-cent amount rounds to zero", newTx(minor, salary, core.TypeExpense, "0.004"), core.ErrValidation, "amount"},
			{"missing person beats category", newTx(missingPerson, missingCategory, core.TypeIncome, "1"), core.ErrNotFound, "personId"},
			{"minor rule beats missing category", newTx(minor, missingCategory, core.TypeIncome, "1"), core.ErrBusinessRule, ""},
			{"missing category", newTx(minor, missingCategory, core.TypeExpense, "1"), core.ErrNotFound, "categoryId"},
			{"invalid type", newTx(minor, salary, core.TransactionType(2), "1"), core.ErrValidation, "type"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.Transactions.Create(ctx, tc.in)
				e := requireKind(t, err, tc.kind)
				assert.Equal(t, tc.field, e.Field)
			})
		}

		t.Run("description and date are required", func(t *testing.T) {
			in := newTx(minor, salary, core.TypeExpense, "1")
			in.Description = " "
			_, err := svc.Transactions.Create(ctx, in)
			requireKind(t, err, core.ErrValidation)

			in = newTx(minor, salary, core.TypeExpense, "1")
			in.Date = core.Date{}
			_, err = svc.Transactions.Create(ctx, in)
			requireKind(t, err, core.ErrValidation)
		})
	})
}

func TestTransactionUpdate(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		clock := fixedNow
		svc.Transactions.now = func() time.Time { return clock }
		ctx := context.Background()

		adult := mustPerson(t, svc, "Rafael", 35)
		minor := mustPerson(t, svc, "Tiago", 10)
		gifts := mustCategory(t, svc, "Gifts", core.PurposeBoth)
		rent := mustCategory(t, svc, "Rent", core.PurposeExpense)
		salary := mustCategory(t, svc, "Salary", core.PurposeIncome)

		d := mustTx(t, svc, newTx(adult, gifts, core.TypeIncome, "100"))
		clock = clock.Add(time.Hour)

		t.Run("amount only", func(t *testing.T) {
			got, err := svc.Transactions.Update(ctx, d.ID, TransactionUpdate{Amount: core.Some(mustMoney("12.345"))})
			require.NoError(t, err)
			assert.Equal(t, "12.35", got.Amount.String())
			assert.Equal(t, core.TypeIncome, got.Type)
			assert.True(t, got.CreatedAt.Equal(d.CreatedAt))
			assert.True(t, got.UpdatedAt.Equal(clock))
		})

		t.Run("non positive amount", func(t *testing.T) {
			_, err := svc.Transactions.Update(ctx, d.ID, TransactionUpdate{Amount: core.Some(core.Zero)})
			requireKind(t, err, core.ErrValidation)
		})

		t.Run("moving income to a minor", func(t *testing.T) {
			_, err := svc.Transactions.Update(ctx, d.ID, TransactionUpdate{PersonID: core.Some(minor.ID)})
			e := requireKind(t, err, core.ErrBusinessRule)
			assert.Equal(t, core.RuleMinorIncome, e.Rule)
		})

		t.Run("moving income to an expense category", func(t *testing.T) {
			_, err := svc.Transactions.Update(ctx, d.ID, TransactionUpdate{CategoryID: core.Some(rent.ID)})
			e := requireKind(t, err, core.ErrBusinessRule)
			assert.Equal(t, core.RuleCategoryType, e.Rule)
		})

		t.Run("type change checked against stored category", func(t *testing.T) {
			incomeOnly := mustTx(t, svc, newTx(adult, salary, core.TypeIncome, "1"))
			_, err := svc.Transactions.Update(ctx, incomeOnly.ID, TransactionUpdate{Type: core.Some(core.TypeExpense)})
			requireKind(t, err, core.ErrBusinessRule)
		})

		t.Run("type and category together", func(t *testing.T) {
			got, err := svc.Transactions.Update(ctx, d.ID, TransactionUpdate{
				Type:       core.Some(core.TypeExpense),
				CategoryID: core.Some(rent.ID),
			})
			require.NoError(t, err)
			assert.Equal(t, core.TypeExpense, got.Type)
			assert.Equal(t, "Rent", got.CategoryDescription)
		})

		t.Run("expense can move to a minor", func(t *testing.T) {
			got, err := svc.Transactions.Update(ctx, d.ID, TransactionUpdate{PersonID: core.Some(minor.ID)})
			require.NoError(t, err)
			assert.Equal(t, "Tiago", got.PersonName)
		})

		t.Run("minor transaction cannot become income", func(t *testing.T) {
			_, err := svc.Transactions.Update(ctx, d.ID, TransactionUpdate{
				Type:       core.Some(core.TypeIncome),
				CategoryID: core.Some(gifts.ID),
			})
			requireKind(t, err, core.ErrBusinessRule)
		})

		t.Run("unknown references", func(t *testing.T) {
			_, err := svc.Transactions.Update(ctx, d.ID, TransactionUpdate{PersonID: core.Some(int64(4242))})
			e := requireKind(t, err, core.ErrNotFound)
			assert.Equal(t, "personId", e.Field)

			_, err = svc.Transactions.Update(ctx, d.ID, TransactionUpdate{CategoryID: core.Some(int64(4242))})
			e = requireKind(t, err, core.ErrNotFound)
			assert.Equal(t, "categoryId", e.Field)
		})

		t.Run("null for required field", func(t *testing.T) {
			var u TransactionUpdate
			require.NoError(t, json.Unmarshal([]byte(`{"amount":null}`), &u))
			_, err := svc.Transactions.Update(ctx, d.ID, u)
			e := requireKind(t, err, core.ErrValidation)
			assert.Equal(t, "amount", e.Field)
		})

		t.Run("missing transaction", func(t *testing.T) {
			_, err := svc.Transactions.Update(ctx, 777777, TransactionUpdate{Amount: core.Some(mustMoney("1"))})
			requireKind(t, err, core.ErrNotFound)
		})

		t.Run("invariants hold for every stored transaction", func(t *testing.T) {
			list, err := svc.Transactions.ListAll(ctx)
			require.NoError(t, err)
			for _, tr := range list {
				p, err := svc.People.Get(ctx, tr.PersonID)
				require.NoError(t, err)
				c, err := svc.Categories.Get(ctx, tr.CategoryID)
				require.NoError(t, err)
				assert.True(t, c.Purpose.IsCompatible(tr.Type))
				if p.IsMinor() {
					assert.Equal(t, core.TypeExpense, tr.Type)
				}
				assert.True(t, tr.Amount.IsPositive())
			}
		})
	})
}

func TestTransactionDeleteAndLists(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		ctx := context.Background()
		a := mustPerson(t, svc, "Ana", 30)
		b := mustPerson(t, svc, "Bia", 30)
		c := mustCategory(t, svc, "Food", core.PurposeExpense)

		first := mustTx(t, svc, newTx(a, c, core.TypeExpense, "1"))
		second := mustTx(t, svc, newTx(b, c, core.TypeExpense, "2"))
		third := mustTx(t, svc, newTx(a, c, core.TypeExpense, "3"))

		all, err := svc.Transactions.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []int64{first.ID, second.ID, third.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

		mine, err := svc.Transactions.ListByPerson(ctx, a.ID)
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		_, err = svc.Transactions.ListByPerson(ctx, 31337)
		requireKind(t, err, core.ErrNotFound)

		ok, err := svc.Transactions.Delete(ctx, second.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = svc.Transactions.Delete(ctx, second.ID)
		requireKind(t, err, core.ErrNotFound)

		_, err = svc.Transactions.Get(ctx, second.ID)
		requireKind(t, err, core.ErrNotFound)
	})
}

func TestTransactionDetailJSON(t *testing.T) {
	svc := New(storage.NewMemoryStore(), WithClock(func() time.Time { return fixedNow }))
	p := mustPerson(t, svc, "Pedro", 20)
	c := mustCategory(t, svc, "Salary", core.PurposeIncome)
	d := mustTx(t, svc, newTx(p, c, core.TypeIncome, "5000"))

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 3,
		"description": "entry",
		"amount": 5000.00,
		"date": "2025-05-20",
		"type": 1,
		"personId": 1,
		"categoryId": 2,
		"createdAt": "2025-06-01T09:00:00Z",
		"updatedAt": "2025-06-01T09:00:00Z",
		"personName": "Pedro",
		"categoryDescription": "Salary"
	}`, string(b))
}

func TestTransactionAmountUpperBound(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		ctx := context.Background()
		p := mustPerson(t, svc, "Pedro", 20)
		salary := mustCategory(t, svc, "Salary", core.PurposeIncome)

		largest := mustTx(t, svc, newTx(p, salary, core.TypeIncome, core.MaxAmount.String()))
		got, err := svc.Transactions.Get(ctx, largest.ID)
		require.NoError(t, err)
		assert.Equal(t, "92233720368547758.07", got.Amount.String())

		for _, amount := range []string{"92233720368547758.08", "100000000000000000.00", "184467440737095516.17"} {
			_, err := svc.Transactions.Create(ctx, newTx(p, salary, core.TypeIncome, amount))
			e := requireKind(t, err, core.ErrValidation)
			assert.Equal(t, "amount", e.Field, amount)

			_, err = svc.Transactions.Update(ctx, largest.ID, TransactionUpdate{Amount: core.Some(mustMoney(amount))})
			e = requireKind(t, err, core.ErrValidation)
			assert.Equal(t, "amount", e.Field, amount)
		}

		all, err := svc.Transactions.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, core.MaxAmount.String(), all[0].Amount.String())

		report, err := svc.Reports.PersonTotals(ctx)
		require.NoError(t, err)
		assert.Equal(t, "92233720368547758.07", report.GrandTotalIncome.String())
	})
}
