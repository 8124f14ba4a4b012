package scheduling

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/db"
	"github.com/medoffice/practice/internal/platform/wire"
)

const appointmentCols = `id, start, "end", status, patient_id, created_at, notes`

// orderingFields maps the ordering parameter onto columns.
var orderingFields = map[string]string{
	"start": "start",
	"id":    "id",
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.From(ctx, r.pool)
}

func (r *repoPG) scanRow(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(&a.ID, &a.Start, &a.End, &a.Status, &a.PatientID, &a.CreatedAt, &a.Notes); err != nil {
		return nil, err
	}
	return &a, nil
}

func writeError(a *Appointment, err error) error {
	if _, ok := db.ForeignKeyViolation(err); ok {
		return apierror.Field("patient", wire.InvalidPK(a.PatientID))
	}
	return nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (start, "end", status, patient_id, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		a.Start, a.End, a.Status, a.PatientID, a.Notes,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if mapped := writeError(a, err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	a, err := r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apierror.NotFound("appointment", id)
		}
		return nil, fmt.Errorf("get appointment %d: %w", id, err)
	}
	return a, nil
}

// Update never touches created_at.
func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET start = $1, "end" = $2, status = $3, patient_id = $4, notes = $5
		WHERE id = $6
		RETURNING created_at`,
		a.Start, a.End, a.Status, a.PatientID, a.Notes, a.ID,
	).Scan(&a.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return apierror.NotFound("appointment", a.ID)
		}
		if mapped := writeError(a, err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update appointment %d: %w", a.ID, err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apierror.NotFound("appointment", id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit interface{}, offset int) ([]*Appointment, int, error) {
	q := db.NewQuery("appointment", appointmentCols)
	if f.ID != nil {
		q.Where("id = " + q.Arg(*f.ID))
	}
	if f.PatientID != nil {
		q.Where("patient_id = " + q.Arg(*f.PatientID))
	}
	if f.StartAfter != nil {
		q.Where("start >= " + q.Arg(*f.StartAfter))
	}
	if f.StartBefore != nil {
		q.Where("start <= " + q.Arg(*f.StartBefore))
	}
	q.ApplyOrdering(f.Ordering, orderingFields, "start ASC", "id ASC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	sql, args := q.DataSQL(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	items := []*Appointment{}
	for rows.Next() {
		a, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
