package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func TestPersonCreateRoundTripsIsMinor(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		ctx := context.Background()
		for _, age := range []int{1, 17, 18, 150} {
			p := mustPerson(t, svc, fmt.Sprintf("person number %d", age), age)

			got, err := svc.People.Get(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, age, got.Age)
			assert.Equal(t, age < 18, got.IsMinor(), "age %d", age)

			b, err := json.Marshal(got)
			require.NoError(t, err)
			assert.Contains(t, string(b), fmt.Sprintf(`"isMinor":%t`, age < 18))
		}
	})
}

func TestPersonCreateNormalizesName(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		p := mustPerson(t, svc, "  joão   SILVA ", 30)
		assert.Equal(t, "João Silva", p.Name)
	})
}

func TestPersonCreateNormalizedCollision(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		mustPerson(t, svc, "joão silva", 30)

		_, err := svc.People.Create(context.Background(), "João Silva", 40)
		e := requireKind(t, err, core.ErrConflict)
		assert.Equal(t, core.RuleUniquePersonName, e.Rule)
		assert.Equal(t, "name", e.Field)

		_, err = svc.People.Create(context.Background(), "JOÃO   SILVA", 40)
		requireKind(t, err, core.ErrConflict)
	})
}

func TestPersonCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		age   int
		field string
	}{
		{"", 20, "name"},
		{"   ", 20, "name"},
		{"ab", 20, "name"},
		{strings.Repeat("x", 201), 20, "name"},
		{"Valid Name", 0, "age"},
		{"Valid Name", 151, "age"},
		{"Valid Name", -1, "age"},
	}
	svc := New(storage.NewMemoryStore())
	for _, tc := range cases {
		_, err := svc.People.Create(context.Background(), tc.name, tc.age)
		e := requireKind(t, err, core.ErrValidation)
		assert.Equal(t, tc.field, e.Field, "name=%q age=%d", tc.name, tc.age)
	}
}

func TestConcurrentCreatesWithSameNameAdmitOne(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := "maria clara"
				if i%2 == 1 {
					name = "MARIA CLARA"
				}
				_, err := svc.People.Create(context.Background(), name, 25)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case assert.ErrorIs(t, err, core.ErrConflict):
					conflicts++
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, workers-1, conflicts)
	})
}

func TestPersonUpdate(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		ctx := context.Background()
		p := mustPerson(t, svc, "Carlos", 30)
		mustPerson(t, svc, "Beatriz", 25)

		t.Run("absent fields are untouched", func(t *testing.T) {
			got, err := svc.People.Update(ctx, p.ID, PersonUpdate{Age: core.Some(31)})
			require.NoError(t, err)
			assert.Equal(t, "Carlos", got.Name)
			assert.Equal(t, 31, got.Age)
		})

		t.Run("name is normalized", func(t *testing.T) {
			got, err := svc.People.Update(ctx, p.ID, PersonUpdate{Name: core.Some("carlos  EDUARDO")})
			require.NoError(t, err)
			assert.Equal(t, "Carlos Eduardo", got.Name)
			assert.Equal(t, 31, got.Age)
		})

		t.Run("own name in another case is allowed", func(t *testing.T) {
			_, err := svc.People.Update(ctx, p.ID, PersonUpdate{Name: core.Some("CARLOS EDUARDO")})
			require.NoError(t, err)
		})

		t.Run("collision with another person", func(t *testing.T) {
			_, err := svc.People.Update(ctx, p.ID, PersonUpdate{Name: core.Some("beatriz")})
			requireKind(t, err, core.ErrConflict)
		})

		t.Run("invalid age", func(t *testing.T) {
			_, err := svc.People.Update(ctx, p.ID, PersonUpdate{Age: core.Some(200)})
			requireKind(t, err, core.ErrValidation)
		})

		t.Run("explicit null", func(t *testing.T) {
			var u PersonUpdate
			require.NoError(t, json.Unmarshal([]byte(`{"name":null}`), &u))
			_, err := svc.People.Update(ctx, p.ID, u)
			e := requireKind(t, err, core.ErrValidation)
			assert.Equal(t, "name", e.Field)
		})

		t.Run("missing person", func(t *testing.T) {
			_, err := svc.People.Update(ctx, 9999, PersonUpdate{Age: core.Some(40)})
			requireKind(t, err, core.ErrNotFound)
		})

		t.Run("failed update leaves record intact", func(t *testing.T) {
			got, err := svc.People.Get(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 31, got.Age)
			assert.Equal(t, "Carlos Eduardo", got.Name)
		})
	})
}

func TestPersonAgeCrossingThresholdKeepsIncome(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		ctx := context.Background()
		p := mustPerson(t, svc, "Lucas", 18)
		c := mustCategory(t, svc, "Allowance", core.PurposeIncome)
		d := mustTx(t, svc, newTx(p, c, core.TypeIncome, "50"))

		_, err := svc.People.Update(ctx, p.ID, PersonUpdate{Age: core.Some(17)})
		require.NoError(t, err)

		got, err := svc.Transactions.Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, core.TypeIncome, got.Type)
	})
}

func TestPersonDeleteCascades(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		ctx := context.Background()
		p := mustPerson(t, svc, "Pedro", 40)
		other := mustPerson(t, svc, "Paula", 40)
		c := mustCategory(t, svc, "Food", core.PurposeExpense)

		var ids []int64
		for i := 0; i < 3; i++ {
			ids = append(ids, mustTx(t, svc, newTx(p, c, core.TypeExpense, "10")).ID)
		}
		kept := mustTx(t, svc, newTx(other, c, core.TypeExpense, "5"))

		ok, err := svc.People.Delete(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		for _, id := range ids {
			_, err := svc.Transactions.Get(ctx, id)
			requireKind(t, err, core.ErrNotFound)
		}
		_, err = svc.Transactions.Get(ctx, kept.ID)
		require.NoError(t, err)

		_, err = svc.People.Get(ctx, p.ID)
		requireKind(t, err, core.ErrNotFound)

		_, err = svc.People.Delete(ctx, p.ID)
		requireKind(t, err, core.ErrNotFound)
	})
}

func TestPersonLists(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Services) {
		ctx := context.Background()
		mustPerson(t, svc, "Zilda", 70)
		mustPerson(t, svc, "Bruno", 10)
		mustPerson(t, svc, "Alice", 18)
		mustPerson(t, svc, "Caio", 17)

		names := func(people []core.Person, err error) []string {
			require.NoError(t, err)
			out := make([]string, len(people))
			for i, p := range people {
				out[i] = p.Name
			}
			return out
		}

		assert.Equal(t, []string{"Alice", "Bruno", "Caio", "Zilda"}, names(svc.People.ListAll(ctx)))
		assert.Equal(t, []string{"Bruno", "Caio"}, names(svc.People.ListMinors(ctx)))
		assert.Equal(t, []string{"Alice", "Zilda"}, names(svc.People.ListAdults(ctx)))
	})
}
