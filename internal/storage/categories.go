package storage

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

func (t *sqlTx) CreateCategory(ctx context.Context, c *core.Category) error {
	id, err := t.insert(ctx,
		`INSERT INTO categories (description, description_key, purpose) VALUES (?, ?, ?)`,
		c.Description, core.FoldKey(c.Description), int(c.Purpose))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	c.ID = id
	return nil
}

func (t *sqlTx) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var (
		c       core.Category
		purpose int
	)
	err := t.queryRow(ctx, `SELECT id, description, purpose FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Description, &purpose)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, notFound(err))
	}
	c.Purpose = core.Purpose(purpose)
	return c, nil
}

func (t *sqlTx) CategoryDescriptionExists(ctx context.Context, description string) (bool, error) {
	ok, err := t.exists(ctx,
		`SELECT COUNT(*) FROM categories WHERE description_key = ?`,
		core.FoldKey(description))
	if err != nil {
		return false, fmt.Errorf("check category description: %w", err)
	}
	return ok, nil
}

func (t *sqlTx) ListCategories(ctx context.Context, purpose *core.Purpose) ([]core.Category, error) {
	query := `SELECT id, description, purpose FROM categories`
	var args []any
	if purpose != nil {
		query += ` WHERE purpose = ?`
		args = append(args, int(*purpose))
	}
	query += ` ORDER BY description` + t.d.collate + `, id`

	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		var (
			c core.Category
			p int
		)
		if err := rows.Scan(&c.ID, &c.Description, &p); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Purpose = core.Purpose(p)
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}
