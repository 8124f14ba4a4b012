package reference

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
	kind Kind
}

// NewRepoPG returns the repository for one kind. Kind tables are fixed
// identifiers, never caller input.
func NewRepoPG(pool *pgxpool.Pool, kind Kind) Repository {
	return &repoPG{pool: pool, kind: kind}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.From(ctx, r.pool)
}

func (r *repoPG) scanRow(row pgx.Row) (*Item, error) {
	var it Item
	if err := row.Scan(&it.ID, &it.Name); err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *repoPG) Create(ctx context.Context, name string) (*Item, error) {
	it, err := r.scanRow(r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1) RETURNING id, name`, r.kind.Table), name))
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return nil, &apierror.DuplicateError{Kind: r.kind.Label, Field: "name", Value: name}
		}
		return nil, fmt.Errorf("insert %s: %w", r.kind.Table, err)
	}
	return it, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Item, error) {
	it, err := r.scanRow(r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT id, name FROM %s WHERE id = $1`, r.kind.Table), id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apierror.NotFound(r.kind.Label, id)
		}
		return nil, fmt.Errorf("get %s %d: %w", r.kind.Table, id, err)
	}
	return it, nil
}

func (r *repoPG) GetMany(ctx context.Context, ids []int64) ([]*Item, error) {
	if len(ids) == 0 {
		return []*Item{}, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT id, name FROM %s WHERE id = ANY($1) ORDER BY id`, r.kind.Table), ids)
	if err != nil {
		return nil, fmt.Errorf("get %s by ids: %w", r.kind.Table, err)
	}
	return r.collect(rows)
}

func (r *repoPG) FindByName(ctx context.Context, name string) (*Item, error) {
	it, err := r.scanRow(r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT id, name FROM %s WHERE lower(name) = lower($1)`, r.kind.Table), name))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s by name: %w", r.kind.Table, err)
	}
	return it, nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.kind.Table), id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", r.kind.Table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return apierror.NotFound(r.kind.Label, id)
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, terms []string, limit interface{}, offset int) ([]*Item, int, error) {
	q := db.NewQuery(r.kind.Table, "id, name")
	q.Search(terms, "name")
	q.OrderBy("id")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", r.kind.Table, err)
	}

	sql, args := q.DataSQL(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search %s: %w", r.kind.Table, err)
	}
	items, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) collect(rows pgx.Rows) ([]*Item, error) {
	defer rows.Close()
	items := []*Item{}
	for rows.Next() {
		it, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.kind.Table, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
