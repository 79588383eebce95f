// Package storage is the record store for people, categories and
// transactions. Every rule engine operation runs inside exactly one store
// transaction obtained from Store.WithTx or Store.WithReadTx.
package storage

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("duplicate record")
	ErrForeignKey = errors.New("foreign key violation")
	ErrCheck      = errors.New("check constraint violation")
	ErrReadOnly   = errors.New("write in read-only transaction")
	ErrClosed     = errors.New("store closed")
)

// PersonFilter selects a subset of people by age band.
type PersonFilter int

const (
	AllPeople PersonFilter = iota
	MinorsOnly
	AdultsOnly
)

func (f PersonFilter) match(p core.Person) bool {
	switch f {
	case MinorsOnly:
		return p.IsMinor()
	case AdultsOnly:
		return !p.IsMinor()
	default:
		return true
	}
}

// TransactionFilter narrows ListTransactions. A zero PersonID lists all.
type TransactionFilter struct {
	PersonID int64
}

// Tx is the set of reads and writes available inside a store transaction.
//
// People are listed by name, categories by description (both binary
// collation, ties by id), transactions by id.
type Tx interface {
	CreatePerson(ctx context.Context, p *core.Person) error
	GetPerson(ctx context.Context, id int64) (core.Person, error)
	PersonNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	UpdatePerson(ctx context.Context, p core.Person) error
	DeletePerson(ctx context.Context, id int64) error
	ListPeople(ctx context.Context, filter PersonFilter) ([]core.Person, error)

	CreateCategory(ctx context.Context, c *core.Category) error
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	CategoryDescriptionExists(ctx context.Context, description string) (bool, error)
	ListCategories(ctx context.Context, purpose *core.Purpose) ([]core.Category, error)

	CreateTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, id int64) (core.TransactionDetail, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	DeleteTransactionsByPerson(ctx context.Context, personID int64) (int64, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.TransactionDetail, error)
}

// Store opens transactions. WithTx commits when fn returns nil and rolls
// back otherwise. WithReadTx gives fn a consistent snapshot and rejects
// writes.
type Store interface {
	WithTx(ctx context.Context, fn func(Tx) error) error
	WithReadTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
