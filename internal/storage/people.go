package storage

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

func (t *sqlTx) CreatePerson(ctx context.Context, p *core.Person) error {
	id, err := t.insert(ctx,
		`INSERT INTO people (name, name_key, age) VALUES (?, ?, ?)`,
		p.Name, core.FoldKey(p.Name), p.Age)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	p.ID = id
	return nil
}

func (t *sqlTx) GetPerson(ctx context.Context, id int64) (core.Person, error) {
	var p core.Person
	err := t.queryRow(ctx, `SELECT id, name, age FROM people WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Age)
	if err != nil {
		return core.Person{}, fmt.Errorf("get person %d: %w", id, notFound(err))
	}
	return p, nil
}

func (t *sqlTx) PersonNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	ok, err := t.exists(ctx,
		`SELECT COUNT(*) FROM people WHERE name_key = ? AND id <> ?`,
		core.FoldKey(name), excludeID)
	if err != nil {
		return false, fmt.Errorf("check person name: %w", err)
	}
	return ok, nil
}

func (t *sqlTx) UpdatePerson(ctx context.Context, p core.Person) error {
	res, err := t.exec(ctx,
		`UPDATE people SET name = ?, name_key = ?, age = ? WHERE id = ?`,
		p.Name, core.FoldKey(p.Name), p.Age, p.ID)
	if err != nil {
		return fmt.Errorf("update person %d: %w", p.ID, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("update person %d: %w", p.ID, err)
	}
	return nil
}

func (t *sqlTx) DeletePerson(ctx context.Context, id int64) error {
	res, err := t.exec(ctx, `DELETE FROM people WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete person %d: %w", id, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("delete person %d: %w", id, err)
	}
	return nil
}

func (t *sqlTx) ListPeople(ctx context.Context, filter PersonFilter) ([]core.Person, error) {
	query := `SELECT id, name, age FROM people`
	switch filter {
	case MinorsOnly:
		query += fmt.Sprintf(` WHERE age < %d`, core.MinorAgeThreshold)
	case AdultsOnly:
		query += fmt.Sprintf(` WHERE age >= %d`, core.MinorAgeThreshold)
	}
	query += ` ORDER BY name` + t.d.collate + `, id`

	rows, err := t.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	people := []core.Person{}
	for rows.Next() {
		var p core.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Age); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return people, nil
}
