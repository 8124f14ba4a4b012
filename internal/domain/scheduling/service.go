package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medoffice/practice/internal/domain/patient"
	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/db"
	"github.com/medoffice/practice/internal/platform/wire"
	"github.com/medoffice/practice/pkg/pagination"
)

// PatientLookup resolves the patients appointments refer to.
type PatientLookup interface {
	Get(ctx context.Context, id int64) (*patient.Patient, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]*patient.Patient, error)
}

type Service struct {
	repo     Repository
	patients PatientLookup
	tx       db.Transactor
}

func NewService(repo Repository, patients PatientLookup, tx db.Transactor) *Service {
	return &Service{repo: repo, patients: patients, tx: tx}
}

func (s *Service) List(ctx context.Context, f Filter, pg pagination.Params) ([]*AppointmentRead, int, error) {
	items, total, err := s.repo.List(ctx, f, pg.LimitArg(), pg.OffsetArg())
	if err != nil {
		return nil, 0, err
	}
	reads, err := s.expand(ctx, items)
	if err != nil {
		return nil, 0, err
	}
	return reads, total, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*AppointmentRead, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expandOne(ctx, a)
}

func (s *Service) Create(ctx context.Context, w AppointmentWrite) (*AppointmentRead, error) {
	var out *AppointmentRead
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.validate(ctx, w)
		if err != nil {
			return err
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		out, err = s.expandOne(ctx, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces every writable field. An omitted status goes back to
// Scheduled and omitted notes are cleared.
func (s *Service) Update(ctx context.Context, id int64, w AppointmentWrite) (*AppointmentRead, error) {
	return s.Patch(ctx, id, func(cur *AppointmentWrite) error {
		*cur = w
		return nil
	})
}

// Patch applies a partial update: apply receives the stored appointment as
// a write body and overwrites the fields the caller sent.
func (s *Service) Patch(ctx context.Context, id int64, apply func(w *AppointmentWrite) error) (*AppointmentRead, error) {
	var out *AppointmentRead
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		w := current.ToWrite()
		if err := apply(&w); err != nil {
			return err
		}
		a, err := s.validate(ctx, w)
		if err != nil {
			return err
		}
		a.ID = id
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		out, err = s.expandOne(ctx, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
}

func (s *Service) validate(ctx context.Context, w AppointmentWrite) (*Appointment, error) {
	v := apierror.NewValidation()
	a := &Appointment{Status: StatusScheduled}

	a.Start = requiredTimestamp(v, "start", w.Start)
	a.End = requiredTimestamp(v, "end", w.End)
	if !v.Has("start") && !v.Has("end") && a.End.Before(a.Start) {
		v.Add("end", "End must not be before start.")
	}

	if status := wire.BlankToNull(w.Status); status != nil {
		if StatusText(*status) == "" {
			v.Add("status", fmt.Sprintf("%q is not a valid choice.", *status))
		} else {
			a.Status = *status
		}
	}

	a.Notes = wire.OptionalText(v, "notes", w.Notes, 0)

	if w.Patient == nil {
		v.Add("patient", wire.MsgRequired)
	} else if _, err := s.patients.Get(ctx, *w.Patient); err != nil {
		if !errors.Is(err, apierror.ErrNotFound) {
			return nil, err
		}
		v.Add("patient", wire.InvalidPK(*w.Patient))
	} else {
		a.PatientID = *w.Patient
	}

	if err := v.Err(); err != nil {
		return nil, err
	}
	return a, nil
}

func requiredTimestamp(v *apierror.ValidationError, field string, ts *wire.Timestamp) time.Time {
	switch {
	case ts == nil:
		v.Add(field, wire.MsgRequired)
	case !ts.Valid():
		v.Add(field, wire.TimestampFormatMessage)
	default:
		return ts.Time()
	}
	return time.Time{}
}

func (s *Service) expandOne(ctx context.Context, a *Appointment) (*AppointmentRead, error) {
	reads, err := s.expand(ctx, []*Appointment{a})
	if err != nil {
		return nil, err
	}
	return reads[0], nil
}

// expand renders appointments with their patients, loaded in one batch.
func (s *Service) expand(ctx context.Context, items []*Appointment) ([]*AppointmentRead, error) {
	ids := make([]int64, 0, len(items))
	for _, a := range items {
		ids = append(ids, a.PatientID)
	}
	patients, err := s.patients.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*AppointmentRead, 0, len(items))
	for _, a := range items {
		out = append(out, a.ToRead(patients[a.PatientID]))
	}
	return out, nil
}
