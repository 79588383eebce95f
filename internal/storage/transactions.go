package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/core"
)

const selectTransactionDetail = `
SELECT t.id, t.description, t.amount_cents, t.date, t.type, t.person_id, t.category_id,
       t.created_at, t.updated_at, p.name, c.description
FROM transactions t
JOIN people p ON p.id = t.person_id
JOIN categories c ON c.id = t.category_id`

func (t *sqlTx) CreateTransaction(ctx context.Context, tr *core.Transaction) error {
	id, err := t.insert(ctx, `
INSERT INTO transactions (description, amount_cents, date, type, person_id, category_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.Description, tr.Amount.Cents(), tr.Date, int(tr.Type), tr.PersonID, tr.CategoryID,
		tr.CreatedAt.UTC(), tr.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	tr.ID = id
	return nil
}

func (t *sqlTx) GetTransaction(ctx context.Context, id int64) (core.TransactionDetail, error) {
	row := t.queryRow(ctx, selectTransactionDetail+` WHERE t.id = ?`, id)
	d, err := scanTransactionDetail(row)
	if err != nil {
		return core.TransactionDetail{}, fmt.Errorf("get transaction %d: %w", id, notFound(err))
	}
	return d, nil
}

func (t *sqlTx) UpdateTransaction(ctx context.Context, tr core.Transaction) error {
	res, err := t.exec(ctx, `
UPDATE transactions
SET description = ?, amount_cents = ?, date = ?, type = ?, person_id = ?, category_id = ?, updated_at = ?
WHERE id = ?`,
		tr.Description, tr.Amount.Cents(), tr.Date, int(tr.Type), tr.PersonID, tr.CategoryID,
		tr.UpdatedAt.UTC(), tr.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tr.ID, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("update transaction %d: %w", tr.ID, err)
	}
	return nil
}

func (t *sqlTx) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := t.exec(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

func (t *sqlTx) DeleteTransactionsByPerson(ctx context.Context, personID int64) (int64, error) {
	res, err := t.exec(ctx, `DELETE FROM transactions WHERE person_id = ?`, personID)
	if err != nil {
		return 0, fmt.Errorf("delete transactions of person %d: %w", personID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (t *sqlTx) ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.TransactionDetail, error) {
	query := selectTransactionDetail
	var args []any
	if filter.PersonID != 0 {
		query += ` WHERE t.person_id = ?`
		args = append(args, filter.PersonID)
	}
	query += ` ORDER BY t.id`

	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.TransactionDetail{}
	for rows.Next() {
		d, err := scanTransactionDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

var _ rowScanner = (*sql.Row)(nil)

func scanTransactionDetail(row rowScanner) (core.TransactionDetail, error) {
	var (
		d     core.TransactionDetail
		cents int64
		typ   int
	)
	err := row.Scan(&d.ID, &d.Description, &cents, &d.Date, &typ, &d.PersonID, &d.CategoryID,
		timestamp{&d.CreatedAt}, timestamp{&d.UpdatedAt}, &d.PersonName, &d.CategoryDescription)
	if err != nil {
		return core.TransactionDetail{}, err
	}
	d.Amount = core.MoneyFromCents(cents)
	d.Type = core.TransactionType(typ)
	return d, nil
}
