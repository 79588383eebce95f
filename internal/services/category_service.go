package services

import (
	"context"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// CategoryService creates and lists categories. A category's purpose is
// fixed at creation; compatibility with transaction types is decided by
// core.Purpose.IsCompatible.
type CategoryService struct {
	store storage.Store
	n     *notifier
}

func categoryNotFound(id int64) error {
	return core.NotFound("id", fmt.Sprintf("category %d not found", id))
}

func categoryTaken(description string) error {
	return core.Conflict("description", core.RuleUniqueCategoryDesc,
		fmt.Sprintf("a category described %q already exists", description))
}

func (s *CategoryService) Create(ctx context.Context, description string, purpose core.Purpose) (core.Category, error) {
	description, err := core.ValidateCategoryDescription(description)
	if err != nil {
		return core.Category{}, s.n.rejected(ctx, log.OpCreate, err)
	}
	if err := core.ValidatePurpose(purpose); err != nil {
		return core.Category{}, s.n.rejected(ctx, log.OpCreate, err)
	}

	c := core.Category{Description: description, Purpose: purpose}
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		taken, err := tx.CategoryDescriptionExists(ctx, c.Description)
		if err != nil {
			return err
		}
		if taken {
			return categoryTaken(c.Description)
		}
		return storeErr(tx.CreateCategory(ctx, &c), categoryTaken(c.Description), nil)
	})
	if err != nil {
		return core.Category{}, s.n.rejected(ctx, log.OpCreate, err)
	}

	fields := log.NewFields().WithCategory(c.ID)
	fields[log.FieldPurpose] = c.Purpose.Label()
	s.n.committed(ctx, log.OpCreate, amqp.EventCategoryCreated, fields, c.ID, c)
	return c, nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := s.store.WithReadTx(ctx, func(tx storage.Tx) error {
		var err error
		c, err = tx.GetCategory(ctx, id)
		return storeErr(err, nil, categoryNotFound(id))
	})
	if err != nil {
		return core.Category{}, s.n.rejected(ctx, log.OpRead, err)
	}
	return c, nil
}

func (s *CategoryService) ListAll(ctx context.Context) ([]core.Category, error) {
	return s.list(ctx, nil)
}

// ListByPurpose matches purpose exactly: Both categories are not included
// when asking for Expense or Income.
func (s *CategoryService) ListByPurpose(ctx context.Context, purpose core.Purpose) ([]core.Category, error) {
	if err := core.ValidatePurpose(purpose); err != nil {
		return nil, s.n.rejected(ctx, log.OpList, err)
	}
	return s.list(ctx, &purpose)
}

func (s *CategoryService) list(ctx context.Context, purpose *core.Purpose) ([]core.Category, error) {
	var categories []core.Category
	err := s.store.WithReadTx(ctx, func(tx storage.Tx) error {
		var err error
		categories, err = tx.ListCategories(ctx, purpose)
		return err
	})
	if err != nil {
		return nil, s.n.rejected(ctx, log.OpList, fmt.Errorf("list categories: %w", err))
	}
	return categories, nil
}
