package services

import (
	"context"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// PersonService enforces the person rules: normalized, case-insensitively
// unique names, ages within range and cascading deletes.
type PersonService struct {
	store storage.Store
	n     *notifier
}

// PersonUpdate is a partial update; unset fields keep their stored value.
type PersonUpdate struct {
	Name core.Optional[string] `json:"name"`
	Age  core.Optional[int]    `json:"age"`
}

func personNotFound(id int64) error {
	return core.NotFound("id", fmt.Sprintf("person %d not found", id))
}

func personNameTaken(name string) error {
	return core.Conflict("name", core.RuleUniquePersonName, fmt.Sprintf("a person named %q already exists", name))
}

func (s *PersonService) Create(ctx context.Context, name string, age int) (core.Person, error) {
	normalized, err := core.ValidatePersonName(name)
	if err != nil {
		return core.Person{}, s.n.rejected(ctx, log.OpCreate, err)
	}
	if err := core.ValidateAge(age); err != nil {
		return core.Person{}, s.n.rejected(ctx, log.OpCreate, err)
	}

	p := core.Person{Name: normalized, Age: age}
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		taken, err := tx.PersonNameExists(ctx, p.Name, 0)
		if err != nil {
			return err
		}
		if taken {
			return personNameTaken(p.Name)
		}
		return storeErr(tx.CreatePerson(ctx, &p), personNameTaken(p.Name), nil)
	})
	if err != nil {
		return core.Person{}, s.n.rejected(ctx, log.OpCreate, err)
	}

	s.n.committed(ctx, log.OpCreate, amqp.EventPersonCreated, log.NewFields().WithPerson(p.ID), p.ID, p)
	return p, nil
}

func (s *PersonService) Get(ctx context.Context, id int64) (core.Person, error) {
	var p core.Person
	err := s.store.WithReadTx(ctx, func(tx storage.Tx) error {
		var err error
		p, err = tx.GetPerson(ctx, id)
		return storeErr(err, nil, personNotFound(id))
	})
	if err != nil {
		return core.Person{}, s.n.rejected(ctx, log.OpRead, err)
	}
	return p, nil
}

// Update applies the supplied fields. A supplied name is normalized and
// must not collide with another person. Existing income transactions are
// not re-checked when the age drops below the minor threshold.
func (s *PersonService) Update(ctx context.Context, id int64, u PersonUpdate) (core.Person, error) {
	var p core.Person
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		if p, err = tx.GetPerson(ctx, id); err != nil {
			return storeErr(err, nil, personNotFound(id))
		}

		name, nameSet, err := core.Require(u.Name, "name")
		if err != nil {
			return err
		}
		age, ageSet, err := core.Require(u.Age, "age")
		if err != nil {
			return err
		}

		if nameSet {
			if name, err = core.ValidatePersonName(name); err != nil {
				return err
			}
			taken, err := tx.PersonNameExists(ctx, name, id)
			if err != nil {
				return err
			}
			if taken {
				return personNameTaken(name)
			}
			p.Name = name
		}
		if ageSet {
			if err := core.ValidateAge(age); err != nil {
				return err
			}
			p.Age = age
		}

		return storeErr(tx.UpdatePerson(ctx, p), personNameTaken(p.Name), personNotFound(id))
	})
	if err != nil {
		return core.Person{}, s.n.rejected(ctx, log.OpUpdate, err)
	}

	s.n.committed(ctx, log.OpUpdate, amqp.EventPersonUpdated, log.NewFields().WithPerson(p.ID), p.ID, p)
	return p, nil
}

// Delete removes the person and every transaction they own in one store
// transaction.
func (s *PersonService) Delete(ctx context.Context, id int64) (bool, error) {
	var removed int64
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetPerson(ctx, id); err != nil {
			return storeErr(err, nil, personNotFound(id))
		}
		var err error
		if removed, err = tx.DeleteTransactionsByPerson(ctx, id); err != nil {
			return err
		}
		return storeErr(tx.DeletePerson(ctx, id), nil, personNotFound(id))
	})
	if err != nil {
		return false, s.n.rejected(ctx, log.OpDelete, err)
	}

	fields := log.NewFields().WithPerson(id)
	fields["cascaded_transactions"] = removed
	s.n.committed(ctx, log.OpDelete, amqp.EventPersonDeleted, fields, id,
		map[string]int64{"deletedTransactions": removed})
	return true, nil
}

func (s *PersonService) ListAll(ctx context.Context) ([]core.Person, error) {
	return s.list(ctx, storage.AllPeople)
}

// ListMinors returns people younger than 18.
func (s *PersonService) ListMinors(ctx context.Context) ([]core.Person, error) {
	return s.list(ctx, storage.MinorsOnly)
}

// ListAdults returns people aged 18 or more.
func (s *PersonService) ListAdults(ctx context.Context) ([]core.Person, error) {
	return s.list(ctx, storage.AdultsOnly)
}

func (s *PersonService) list(ctx context.Context, filter storage.PersonFilter) ([]core.Person, error) {
	var people []core.Person
	err := s.store.WithReadTx(ctx, func(tx storage.Tx) error {
		var err error
		people, err = tx.ListPeople(ctx, filter)
		return err
	})
	if err != nil {
		return nil, s.n.rejected(ctx, log.OpList, fmt.Errorf("list people: %w", err))
	}
	return people, nil
}
