package services

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// TransactionService enforces the transaction rules: positive amounts,
// existing owners, no income for minors and category compatibility.
type TransactionService struct {
	store storage.Store
	n     *notifier
	now   func() time.Time
}

// NewTransaction is the input of Create.
type NewTransaction struct {
	Description string               `json:"description"`
	Amount      core.Money           `json:"amount"`
	Date        core.Date            `json:"date"`
	Type        core.TransactionType `json:"type"`
	CategoryID  int64                `json:"categoryId"`
	PersonID    int64                `json:"personId"`
}

// TransactionUpdate is a partial update; unset fields keep their stored
// value.
type TransactionUpdate struct {
	Description core.Optional[string]               `json:"description"`
	Amount      core.Optional[core.Money]           `json:"amount"`
	Date        core.Optional[core.Date]            `json:"date"`
	Type        core.Optional[core.TransactionType] `json:"type"`
	CategoryID  core.Optional[int64]                `json:"categoryId"`
	PersonID    core.Optional[int64]                `json:"personId"`
}

func transactionNotFound(id int64) error {
	return core.NotFound("id", fmt.Sprintf("transaction %d not found", id))
}

func ownerNotFound(id int64) error {
	return core.NotFound("personId", fmt.Sprintf("person %d not found", id))
}

func categoryRefNotFound(id int64) error {
	return core.NotFound("categoryId", fmt.Sprintf("category %d not found", id))
}

func (s *TransactionService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// checkOwner loads the person and applies the minor rule to typ.
func checkOwner(ctx context.Context, tx storage.Tx, personID int64, typ core.TransactionType) error {
	person, err := tx.GetPerson(ctx, personID)
	if err != nil {
		return storeErr(err, nil, ownerNotFound(personID))
	}
	if person.IsMinor() && typ == core.TypeIncome {
		return core.BusinessRule(core.RuleMinorIncome,
			fmt.Sprintf("%s is a minor (age %d) and cannot have income transactions", person.Name, person.Age))
	}
	return nil
}

// checkCategory loads the category and applies the compatibility rule.
func checkCategory(ctx context.Context, tx storage.Tx, categoryID int64, typ core.TransactionType) error {
	category, err := tx.GetCategory(ctx, categoryID)
	if err != nil {
		return storeErr(err, nil, categoryRefNotFound(categoryID))
	}
	if !category.Purpose.IsCompatible(typ) {
		return core.BusinessRule(core.RuleCategoryType,
			fmt.Sprintf("category %q has purpose %s and cannot be used for %s transactions",
				category.Description, category.Purpose.Label(), typ))
	}
	return nil
}

// Create validates in a fixed order: field shapes and amount, then the
// owner (existence, minor rule), then the category (existence,
// compatibility).
func (s *TransactionService) Create(ctx context.Context, in NewTransaction) (core.TransactionDetail, error) {
	description, err := core.ValidateTransactionDescription(in.Description)
	if err == nil {
		err = core.ValidateAmount(in.Amount)
	}
	if err == nil {
		err = in.Date.Validate()
	}
	if err == nil {
		err = core.ValidateTransactionType(in.Type)
	}
	if err != nil {
		return core.TransactionDetail{}, s.n.rejected(ctx, log.OpCreate, err)
	}

	now := s.timestamp()
	tr := core.Transaction{
		Description: description,
		Amount:      in.Amount,
		Date:        in.Date,
		Type:        in.Type,
		PersonID:    in.PersonID,
		CategoryID:  in.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var detail core.TransactionDetail
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := checkOwner(ctx, tx, tr.PersonID, tr.Type); err != nil {
			return err
		}
		if err := checkCategory(ctx, tx, tr.CategoryID, tr.Type); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, &tr); err != nil {
			return storeErr(err, nil, ownerNotFound(tr.PersonID))
		}
		var err error
		detail, err = tx.GetTransaction(ctx, tr.ID)
		return err
	})
	if err != nil {
		return core.TransactionDetail{}, s.n.rejected(ctx, log.OpCreate, err)
	}

	s.n.committed(ctx, log.OpCreate, amqp.EventTransactionCreated, s.fields(detail), detail.ID, detail)
	return detail, nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.TransactionDetail, error) {
	var detail core.TransactionDetail
	err := s.store.WithReadTx(ctx, func(tx storage.Tx) error {
		var err error
		detail, err = tx.GetTransaction(ctx, id)
		return storeErr(err, nil, transactionNotFound(id))
	})
	if err != nil {
		return core.TransactionDetail{}, s.n.rejected(ctx, log.OpRead, err)
	}
	return detail, nil
}

// Update applies the supplied fields and re-checks the rules the change
// can affect: the minor rule when type or person changes, compatibility
// when type or category changes. Both use the effective type.
func (s *TransactionService) Update(ctx context.Context, id int64, u TransactionUpdate) (core.TransactionDetail, error) {
	var detail core.TransactionDetail
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		current, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return storeErr(err, nil, transactionNotFound(id))
		}
		tr := current.Transaction

		description, descSet, err := core.Require(u.Description, "description")
		if err != nil {
			return err
		}
		amount, amountSet, err := core.Require(u.Amount, "amount")
		if err != nil {
			return err
		}
		date, dateSet, err := core.Require(u.Date, "date")
		if err != nil {
			return err
		}
		typ, typeSet, err := core.Require(u.Type, "type")
		if err != nil {
			return err
		}
		categoryID, categorySet, err := core.Require(u.CategoryID, "categoryId")
		if err != nil {
			return err
		}
		personID, personSet, err := core.Require(u.PersonID, "personId")
		if err != nil {
			return err
		}

		if amountSet {
			if err := core.ValidateAmount(amount); err != nil {
				return err
			}
			tr.Amount = amount
		}
		if descSet {
			if tr.Description, err = core.ValidateTransactionDescription(description); err != nil {
				return err
			}
		}
		if dateSet {
			if err := date.Validate(); err != nil {
				return err
			}
			tr.Date = date
		}
		if typeSet {
			if err := core.ValidateTransactionType(typ); err != nil {
				return err
			}
			tr.Type = typ
		}
		if personSet {
			tr.PersonID = personID
		}
		if categorySet {
			tr.CategoryID = categoryID
		}

		if typeSet || personSet {
			if err := checkOwner(ctx, tx, tr.PersonID, tr.Type); err != nil {
				return err
			}
		}
		if typeSet || categorySet {
			if err := checkCategory(ctx, tx, tr.CategoryID, tr.Type); err != nil {
				return err
			}
		}

		tr.UpdatedAt = s.timestamp()
		if err := tx.UpdateTransaction(ctx, tr); err != nil {
			return storeErr(err, nil, transactionNotFound(id))
		}
		detail, err = tx.GetTransaction(ctx, id)
		return err
	})
	if err != nil {
		return core.TransactionDetail{}, s.n.rejected(ctx, log.OpUpdate, err)
	}

	s.n.committed(ctx, log.OpUpdate, amqp.EventTransactionUpdated, s.fields(detail), detail.ID, detail)
	return detail, nil
}

func (s *TransactionService) Delete(ctx context.Context, id int64) (bool, error) {
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		return storeErr(tx.DeleteTransaction(ctx, id), nil, transactionNotFound(id))
	})
	if err != nil {
		return false, s.n.rejected(ctx, log.OpDelete, err)
	}

	fields := log.NewFields()
	fields[log.FieldTransactionID] = id
	s.n.committed(ctx, log.OpDelete, amqp.EventTransactionDeleted, fields, id, nil)
	return true, nil
}

// ListAll returns every transaction with its person name and category
// description, ordered by id.
func (s *TransactionService) ListAll(ctx context.Context) ([]core.TransactionDetail, error) {
	var out []core.TransactionDetail
	err := s.store.WithReadTx(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, storage.TransactionFilter{})
		return err
	})
	if err != nil {
		return nil, s.n.rejected(ctx, log.OpList, fmt.Errorf("list transactions: %w", err))
	}
	return out, nil
}

// ListByPerson returns the transactions owned by personID.
func (s *TransactionService) ListByPerson(ctx context.Context, personID int64) ([]core.TransactionDetail, error) {
	var out []core.TransactionDetail
	err := s.store.WithReadTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetPerson(ctx, personID); err != nil {
			return storeErr(err, nil, personNotFound(personID))
		}
		var err error
		out, err = tx.ListTransactions(ctx, storage.TransactionFilter{PersonID: personID})
		return err
	})
	if err != nil {
		return nil, s.n.rejected(ctx, log.OpList, err)
	}
	return out, nil
}

func (s *TransactionService) fields(d core.TransactionDetail) log.LogFields {
	return log.NewFields().
		WithTransaction(d.ID, d.Amount.String(), d.Type.String()).
		WithPerson(d.PersonID).
		WithCategory(d.CategoryID)
}
