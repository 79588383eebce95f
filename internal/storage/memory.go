package storage

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"fintrack/internal/core"
)

// MemoryStore keeps records in process. A write transaction works on a
// copy of the state that replaces the live state on commit, so a failed
// operation leaves nothing behind.
type MemoryStore struct {
	mu     sync.RWMutex
	state  *memState
	closed atomic.Bool
}

type memState struct {
	people       map[int64]core.Person
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	nextID       int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		people:       map[int64]core.Person{},
		categories:   map[int64]core.Category{},
		transactions: map[int64]core.Transaction{},
	}}
}

func (s *memState) clone() *memState {
	return &memState{
		people:       maps.Clone(s.people),
		categories:   maps.Clone(s.categories),
		transactions: maps.Clone(s.transactions),
		nextID:       s.nextID,
	}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) WithReadTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{st: s.state, readOnly: true})
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// Close marks the store closed; records stay readable so in-flight
// requests can finish.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

type memTx struct {
	st       *memState
	readOnly bool
}

func (t *memTx) next() int64 {
	t.st.nextID++
	return t.st.nextID
}

func (t *memTx) CreatePerson(_ context.Context, p *core.Person) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if t.nameTaken(p.Name, 0) {
		return fmt.Errorf("insert person: %w", ErrDuplicate)
	}
	p.ID = t.next()
	t.st.people[p.ID] = *p
	return nil
}

func (t *memTx) GetPerson(_ context.Context, id int64) (core.Person, error) {
	p, ok := t.st.people[id]
	if !ok {
		return core.Person{}, fmt.Errorf("get person %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (t *memTx) nameTaken(name string, excludeID int64) bool {
	key := core.FoldKey(name)
	for id, p := range t.st.people {
		if id != excludeID && core.FoldKey(p.Name) == key {
			return true
		}
	}
	return false
}

func (t *memTx) PersonNameExists(_ context.Context, name string, excludeID int64) (bool, error) {
	return t.nameTaken(name, excludeID), nil
}

func (t *memTx) UpdatePerson(_ context.Context, p core.Person) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.st.people[p.ID]; !ok {
		return fmt.Errorf("update person %d: %w", p.ID, ErrNotFound)
	}
	if t.nameTaken(p.Name, p.ID) {
		return fmt.Errorf("update person %d: %w", p.ID, ErrDuplicate)
	}
	t.st.people[p.ID] = p
	return nil
}

func (t *memTx) DeletePerson(_ context.Context, id int64) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.st.people[id]; !ok {
		return fmt.Errorf("delete person %d: %w", id, ErrNotFound)
	}
	delete(t.st.people, id)
	// Mirrors ON DELETE CASCADE in the SQL schema.
	for tid, tr := range t.st.transactions {
		if tr.PersonID == id {
			delete(t.st.transactions, tid)
		}
	}
	return nil
}

func (t *memTx) ListPeople(_ context.Context, filter PersonFilter) ([]core.Person, error) {
	people := []core.Person{}
	for _, p := range t.st.people {
		if filter.match(p) {
			people = append(people, p)
		}
	}
	slices.SortFunc(people, func(a, b core.Person) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return people, nil
}

func (t *memTx) CreateCategory(_ context.Context, c *core.Category) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if exists, _ := t.CategoryDescriptionExists(context.Background(), c.Description); exists {
		return fmt.Errorf("insert category: %w", ErrDuplicate)
	}
	c.ID = t.next()
	t.st.categories[c.ID] = *c
	return nil
}

func (t *memTx) GetCategory(_ context.Context, id int64) (core.Category, error) {
	c, ok := t.st.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, ErrNotFound)
	}
	return c, nil
}

func (t *memTx) CategoryDescriptionExists(_ context.Context, description string) (bool, error) {
	key := core.FoldKey(description)
	for _, c := range t.st.categories {
		if core.FoldKey(c.Description) == key {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) ListCategories(_ context.Context, purpose *core.Purpose) ([]core.Category, error) {
	categories := []core.Category{}
	for _, c := range t.st.categories {
		if purpose == nil || c.Purpose == *purpose {
			categories = append(categories, c)
		}
	}
	slices.SortFunc(categories, func(a, b core.Category) int {
		if c := cmp.Compare(a.Description, b.Description); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return categories, nil
}

func (t *memTx) checkReferences(tr core.Transaction) error {
	if _, ok := t.st.people[tr.PersonID]; !ok {
		return ErrForeignKey
	}
	if _, ok := t.st.categories[tr.CategoryID]; !ok {
		return ErrForeignKey
	}
	return nil
}

func (t *memTx) CreateTransaction(_ context.Context, tr *core.Transaction) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if err := t.checkReferences(*tr); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	tr.ID = t.next()
	t.st.transactions[tr.ID] = *tr
	return nil
}

func (t *memTx) detail(tr core.Transaction) core.TransactionDetail {
	return core.TransactionDetail{
		Transaction:         tr,
		PersonName:          t.st.people[tr.PersonID].Name,
		CategoryDescription: t.st.categories[tr.CategoryID].Description,
	}
}

func (t *memTx) GetTransaction(_ context.Context, id int64) (core.TransactionDetail, error) {
	tr, ok := t.st.transactions[id]
	if !ok {
		return core.TransactionDetail{}, fmt.Errorf("get transaction %d: %w", id, ErrNotFound)
	}
	return t.detail(tr), nil
}

func (t *memTx) UpdateTransaction(_ context.Context, tr core.Transaction) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.st.transactions[tr.ID]; !ok {
		return fmt.Errorf("update transaction %d: %w", tr.ID, ErrNotFound)
	}
	if err := t.checkReferences(tr); err != nil {
		return fmt.Errorf("update transaction %d: %w", tr.ID, err)
	}
	t.st.transactions[tr.ID] = tr
	return nil
}

func (t *memTx) DeleteTransaction(_ context.Context, id int64) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.st.transactions[id]; !ok {
		return fmt.Errorf("delete transaction %d: %w", id, ErrNotFound)
	}
	delete(t.st.transactions, id)
	return nil
}

func (t *memTx) DeleteTransactionsByPerson(_ context.Context, personID int64) (int64, error) {
	if t.readOnly {
		return 0, ErrReadOnly
	}
	var n int64
	for id, tr := range t.st.transactions {
		if tr.PersonID == personID {
			delete(t.st.transactions, id)
			n++
		}
	}
	return n, nil
}

func (t *memTx) ListTransactions(_ context.Context, filter TransactionFilter) ([]core.TransactionDetail, error) {
	out := []core.TransactionDetail{}
	for _, tr := range t.st.transactions {
		if filter.PersonID == 0 || tr.PersonID == filter.PersonID {
			out = append(out, t.detail(tr))
		}
	}
	slices.SortFunc(out, func(a, b core.TransactionDetail) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
