package patient

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medoffice/practice/internal/domain/reference"
	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/db"
	"github.com/medoffice/practice/internal/platform/wire"
)

const (
	patientFrom = `patient p LEFT JOIN insurance_provider ip ON ip.id = p.insurance_provider_id`
	patientCols = `p.id, p.first_name, p.last_name, p.email, p.phone, p.dob,
	p.insurance_provider_id, ip.name, p.insurance_member_id, p.is_new, p.sex`
)

// uniqueFields maps unique index names to the field they guard.
var uniqueFields = map[string]string{
	"patient_email_ci_key": "email",
	"patient_phone_key":    "phone",
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

func (r *repoPG) scanRow(row pgx.Row) (*Patient, error) {
	var p Patient
	var providerName *string
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.DOB,
		&p.InsuranceProviderID, &providerName, &p.InsuranceMemberID, &p.IsNew, &p.Sex)
	if err != nil {
		return nil, err
	}
	if p.InsuranceProviderID != nil && providerName != nil {
		p.InsuranceProvider = &reference.Item{ID: *p.InsuranceProviderID, Name: *providerName}
	}
	return &p, nil
}

// writeError translates constraint failures into validation errors on the
// offending field.
func writeError(p *Patient, err error) error {
	if name, ok := db.UniqueViolation(err); ok {
		if field, known := uniqueFields[name]; known {
			value := ""
			if field == "email" && p.Email != nil {
				value = *p.Email
			} else if field == "phone" && p.Phone != nil {
				value = *p.Phone
			}
			return &apierror.DuplicateError{Kind: "patient", Field: field, Value: value}
		}
	}
	if _, ok := db.ForeignKeyViolation(err); ok && p.InsuranceProviderID != nil {
		return apierror.Field("insurance_provider", wire.InvalidPK(*p.InsuranceProviderID))
	}
	return nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (first_name, last_name, email, phone, dob,
			insurance_provider_id, insurance_member_id, is_new, sex)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		p.FirstName, p.LastName, p.Email, p.Phone, p.DOB,
		p.InsuranceProviderID, p.InsuranceMemberID, p.IsNew, p.Sex,
	).Scan(&p.ID)
	if err != nil {
		if mapped := writeError(p, err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM `+patientFrom+` WHERE p.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apierror.NotFound("patient", id)
		}
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}
	return p, nil
}

func (r *repoPG) GetMany(ctx context.Context, ids []int64) ([]*Patient, error) {
	if len(ids) == 0 {
		return []*Patient{}, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM `+patientFrom+` WHERE p.id = ANY($1) ORDER BY p.id`, ids)
	if err != nil {
		return nil, fmt.Errorf("get patients by ids: %w", err)
	}
	return r.collect(rows)
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET first_name = $1, last_name = $2, email = $3, phone = $4,
			dob = $5, insurance_provider_id = $6, insurance_member_id = $7,
			is_new = $8, sex = $9
		WHERE id = $10`,
		p.FirstName, p.LastName, p.Email, p.Phone, p.DOB,
		p.InsuranceProviderID, p.InsuranceMemberID, p.IsNew, p.Sex, p.ID)
	if err != nil {
		if mapped := writeError(p, err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update patient %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apierror.NotFound("patient", p.ID)
	}
	return nil
}

// Delete removes the patient. Appointments and progress notes go with it
// through their ON DELETE CASCADE foreign keys.
func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apierror.NotFound("patient", id)
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, terms []string, limit interface{}, offset int) ([]*Patient, int, error) {
	q := db.NewQuery(patientFrom, patientCols)
	q.Search(terms,
		"to_char(p.dob, 'YYYY-MM-DD')",
		"to_char(p.dob, 'MM/DD/YYYY')",
		"p.first_name",
		"p.last_name",
		"p.email",
	)
	q.OrderBy("p.id")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	sql, args := q.DataSQL(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search patients: %w", err)
	}
	items, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM patient WHERE lower(email) = lower($1) AND id <> $2)`, email, excludeID)
}

func (r *repoPG) PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM patient WHERE phone = $1 AND id <> $2)`, phone, excludeID)
}

func (r *repoPG) exists(ctx context.Context, sql string, args ...interface{}) (bool, error) {
	var found bool
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("check patient uniqueness: %w", err)
	}
	return found, nil
}

func (r *repoPG) collect(rows pgx.Rows) ([]*Patient, error) {
	defer rows.Close()
	items := []*Patient{}
	for rows.Next() {
		p, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
