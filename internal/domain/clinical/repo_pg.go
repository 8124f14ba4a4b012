package clinical

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/db"
	"github.com/medoffice/practice/internal/platform/wire"
)

// Decimals travel as text in both directions so no float conversion touches
// them.
const noteCols = `id, patient_id, created_at, weight::text, height::text,
	blood_pressure_sys, blood_pressure_dia, chief_complaint, medical_history,
	treatment, doctors_orders`

var orderingFields = map[string]string{"id": "id"}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.From(ctx, r.pool)
}

func (r *repoPG) scanRow(row pgx.Row) (*ProgressNote, error) {
	n := ProgressNote{LinkIDs: map[string][]int64{}}
	err := row.Scan(&n.ID, &n.PatientID, &n.CreatedAt, &n.Weight, &n.Height,
		&n.BloodPressureSys, &n.BloodPressureDia, &n.ChiefComplaint, &n.MedicalHistory,
		&n.Treatment, &n.DoctorsOrders)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func patientError(n *ProgressNote, err error) error {
	if _, ok := db.ForeignKeyViolation(err); ok {
		return apierror.Field("patient", wire.InvalidPK(n.PatientID))
	}
	return nil
}

func (r *repoPG) Create(ctx context.Context, n *ProgressNote) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO progress_note (patient_id, weight, height, blood_pressure_sys,
			blood_pressure_dia, chief_complaint, medical_history, treatment, doctors_orders)
		VALUES ($1, $2::text::numeric, $3::text::numeric, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		n.PatientID, n.Weight, n.Height, n.BloodPressureSys, n.BloodPressureDia,
		n.ChiefComplaint, n.MedicalHistory, n.Treatment, n.DoctorsOrders,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		if mapped := patientError(n, err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert progress note: %w", err)
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, n *ProgressNote) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE progress_note SET patient_id = $1, weight = $2::text::numeric,
			height = $3::text::numeric, blood_pressure_sys = $4, blood_pressure_dia = $5,
			chief_complaint = $6, medical_history = $7, treatment = $8, doctors_orders = $9
		WHERE id = $10
		RETURNING created_at`,
		n.PatientID, n.Weight, n.Height, n.BloodPressureSys, n.BloodPressureDia,
		n.ChiefComplaint, n.MedicalHistory, n.Treatment, n.DoctorsOrders, n.ID,
	).Scan(&n.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return apierror.NotFound("progress note", n.ID)
		}
		if mapped := patientError(n, err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update progress note %d: %w", n.ID, err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*ProgressNote, error) {
	n, err := r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+noteCols+` FROM progress_note WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apierror.NotFound("progress note", id)
		}
		return nil, fmt.Errorf("get progress note %d: %w", id, err)
	}
	if err := r.loadLinks(ctx, []*ProgressNote{n}); err != nil {
		return nil, err
	}
	return n, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit interface{}, offset int) ([]*ProgressNote, int, error) {
	q := db.NewQuery("progress_note", noteCols)
	if f.PatientID != nil {
		q.Where("patient_id = " + q.Arg(*f.PatientID))
	}
	q.ApplyOrdering(f.Ordering, orderingFields, "id ASC", "")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count progress notes: %w", err)
	}

	sql, args := q.DataSQL(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list progress notes: %w", err)
	}
	notes, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.loadLinks(ctx, notes); err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

// ReplaceLinks makes ids the complete association set for l.
func (r *repoPG) ReplaceLinks(ctx context.Context, noteID int64, l Link, ids []int64) error {
	if _, err := r.conn(ctx).Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE progress_note_id = $1`, l.Table), noteID); err != nil {
		return fmt.Errorf("clear %s: %w", l.Table, err)
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (progress_note_id, %s) SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`,
		l.Table, l.Column), noteID, ids)
	if err != nil {
		if _, ok := db.ForeignKeyViolation(err); ok {
			return apierror.Field(l.Field, fmt.Sprintf("Invalid %s reference.", l.Kind.Label))
		}
		return fmt.Errorf("link %s: %w", l.Table, err)
	}
	return nil
}

// loadLinks fills LinkIDs for every note with one query per association.
func (r *repoPG) loadLinks(ctx context.Context, notes []*ProgressNote) error {
	if len(notes) == 0 {
		return nil
	}
	byID := make(map[int64]*ProgressNote, len(notes))
	ids := make([]int64, 0, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
		ids = append(ids, n.ID)
	}

	for _, l := range Links() {
		rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
			`SELECT progress_note_id, %s FROM %s WHERE progress_note_id = ANY($1) ORDER BY %s`,
			l.Column, l.Table, l.Column), ids)
		if err != nil {
			return fmt.Errorf("load %s: %w", l.Table, err)
		}
		for rows.Next() {
			var noteID, refID int64
			if err := rows.Scan(&noteID, &refID); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s: %w", l.Table, err)
			}
			n := byID[noteID]
			n.LinkIDs[l.Field] = append(n.LinkIDs[l.Field], refID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("load %s: %w", l.Table, err)
		}
	}
	return nil
}

func (r *repoPG) collect(rows pgx.Rows) ([]*ProgressNote, error) {
	defer rows.Close()
	notes := []*ProgressNote{}
	for rows.Next() {
		n, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
