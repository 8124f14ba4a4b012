package clinical

import (
	"context"
	"errors"

	"github.com/medoffice/practice/internal/domain/patient"
	"github.com/medoffice/practice/internal/domain/reference"
	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/db"
	"github.com/medoffice/practice/internal/platform/wire"
	"github.com/medoffice/practice/pkg/pagination"
)

// PatientLookup resolves the patient a note belongs to.
type PatientLookup interface {
	Get(ctx context.Context, id int64) (*patient.Patient, error)
}

// ItemLookup resolves ids of one lookup kind.
type ItemLookup interface {
	Resolve(ctx context.Context, field string, ids []int64) ([]*reference.Item, error)
	GetMany(ctx context.Context, ids []int64) ([]*reference.Item, error)
}

type Service struct {
	repo     Repository
	patients PatientLookup
	items    map[string]ItemLookup
	tx       db.Transactor
}

// NewService wires the store. items maps each Link.Field to the lookup for
// its kind.
func NewService(repo Repository, patients PatientLookup, items map[string]ItemLookup, tx db.Transactor) *Service {
	return &Service{repo: repo, patients: patients, items: items, tx: tx}
}

func (s *Service) List(ctx context.Context, f Filter, pg pagination.Params) ([]*ProgressNoteRead, int, error) {
	notes, total, err := s.repo.List(ctx, f, pg.LimitArg(), pg.OffsetArg())
	if err != nil {
		return nil, 0, err
	}
	reads, err := s.expand(ctx, notes)
	if err != nil {
		return nil, 0, err
	}
	return reads, total, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*ProgressNoteRead, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expandOne(ctx, n)
}

// Create writes the note and its three association sets as one unit.
func (s *Service) Create(ctx context.Context, w ProgressNoteWrite) (*ProgressNoteRead, error) {
	var out *ProgressNoteRead
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		n, links, err := s.validate(ctx, w)
		if err != nil {
			return err
		}
		if err := s.repo.Create(ctx, n); err != nil {
			return err
		}
		if err := s.replaceLinks(ctx, n.ID, links); err != nil {
			return err
		}
		stored, err := s.repo.GetByID(ctx, n.ID)
		if err != nil {
			return err
		}
		out, err = s.expandOne(ctx, stored)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces every scalar field. An association list left out of w
// keeps its stored set; a present list, even empty, replaces it.
func (s *Service) Update(ctx context.Context, id int64, w ProgressNoteWrite) (*ProgressNoteRead, error) {
	return s.Patch(ctx, id, func(cur *ProgressNoteWrite) error {
		allergies, medication, diagnoses := cur.Allergies, cur.Medication, cur.Diagnoses
		*cur = w
		if cur.Allergies == nil {
			cur.Allergies = allergies
		}
		if cur.Medication == nil {
			cur.Medication = medication
		}
		if cur.Diagnoses == nil {
			cur.Diagnoses = diagnoses
		}
		return nil
	})
}

// Patch applies a partial update: apply receives the stored note as a write
// body and overwrites the fields the caller sent.
func (s *Service) Patch(ctx context.Context, id int64, apply func(w *ProgressNoteWrite) error) (*ProgressNoteRead, error) {
	var out *ProgressNoteRead
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		w := current.ToWrite()
		if err := apply(&w); err != nil {
			return err
		}
		n, links, err := s.validate(ctx, w)
		if err != nil {
			return err
		}
		n.ID = id
		if err := s.repo.Update(ctx, n); err != nil {
			return err
		}
		if err := s.replaceLinks(ctx, id, links); err != nil {
			return err
		}
		stored, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out, err = s.expandOne(ctx, stored)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) replaceLinks(ctx context.Context, noteID int64, links map[string][]int64) error {
	for _, l := range Links() {
		ids, ok := links[l.Field]
		if !ok {
			continue
		}
		if err := s.repo.ReplaceLinks(ctx, noteID, l, ids); err != nil {
			return err
		}
	}
	return nil
}

// validate checks w and resolves every referenced id. The returned map
// holds the association sets to write, keyed by Link.Field; lists absent
// from w are absent from the map.
func (s *Service) validate(ctx context.Context, w ProgressNoteWrite) (*ProgressNote, map[string][]int64, error) {
	v := apierror.NewValidation()
	n := &ProgressNote{
		Weight:         requiredDecimal(v, "weight", w.Weight),
		Height:         requiredDecimal(v, "height", w.Height),
		ChiefComplaint: wire.OptionalText(v, "chief_complaint", w.ChiefComplaint, maxTextLength),
		MedicalHistory: wire.OptionalText(v, "medical_history", w.MedicalHistory, 0),
		Treatment:      wire.OptionalText(v, "treatment", w.Treatment, maxTextLength),
		DoctorsOrders:  wire.OptionalText(v, "doctors_orders", w.DoctorsOrders, maxTextLength),
	}
	n.BloodPressureSys = requiredInt(v, "blood_pressure_sys", w.BloodPressureSys)
	n.BloodPressureDia = requiredInt(v, "blood_pressure_dia", w.BloodPressureDia)

	if w.Patient == nil {
		v.Add("patient", wire.MsgRequired)
	} else if _, err := s.patients.Get(ctx, *w.Patient); err != nil {
		if !errors.Is(err, apierror.ErrNotFound) {
			return nil, nil, err
		}
		v.Add("patient", wire.InvalidPK(*w.Patient))
	} else {
		n.PatientID = *w.Patient
	}

	links := map[string][]int64{}
	for _, l := range Links() {
		ids := w.list(l)
		if ids == nil {
			continue
		}
		items, err := s.items[l.Field].Resolve(ctx, l.Field, *ids)
		if err := v.Merge(err); err != nil {
			return nil, nil, err
		}
		resolved := make([]int64, 0, len(items))
		for _, it := range items {
			resolved = append(resolved, it.ID)
		}
		links[l.Field] = resolved
	}

	if err := v.Err(); err != nil {
		return nil, nil, err
	}
	return n, links, nil
}

func requiredDecimal(v *apierror.ValidationError, field string, d *wire.Decimal) string {
	if d == nil {
		v.Add(field, wire.MsgRequired)
		return ""
	}
	if msg := d.Check(decimalDigits, decimalPlaces); msg != "" {
		v.Add(field, msg)
		return ""
	}
	return d.Fixed(decimalPlaces)
}

func requiredInt(v *apierror.ValidationError, field string, n *int32) int32 {
	if n == nil {
		v.Add(field, wire.MsgRequired)
		return 0
	}
	return *n
}

func (s *Service) expandOne(ctx context.Context, n *ProgressNote) (*ProgressNoteRead, error) {
	reads, err := s.expand(ctx, []*ProgressNote{n})
	if err != nil {
		return nil, err
	}
	return reads[0], nil
}

// expand renders notes with their associations, loading each kind's items
// in one batch.
func (s *Service) expand(ctx context.Context, notes []*ProgressNote) ([]*ProgressNoteRead, error) {
	byField := make(map[string]map[int64]*reference.Item, 3)
	for _, l := range Links() {
		var ids []int64
		for _, n := range notes {
			ids = append(ids, n.LinkIDs[l.Field]...)
		}
		items, err := s.items[l.Field].GetMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		m := make(map[int64]*reference.Item, len(items))
		for _, it := range items {
			m[it.ID] = it
		}
		byField[l.Field] = m
	}

	out := make([]*ProgressNoteRead, 0, len(notes))
	for _, n := range notes {
		r := &ProgressNoteRead{
			ID:               n.ID,
			CreatedAt:        n.CreatedAt.UTC(),
			Weight:           n.Weight,
			Height:           n.Height,
			BloodPressureSys: n.BloodPressureSys,
			BloodPressureDia: n.BloodPressureDia,
			ChiefComplaint:   n.ChiefComplaint,
			MedicalHistory:   n.MedicalHistory,
			Treatment:        n.Treatment,
			DoctorsOrders:    n.DoctorsOrders,
			Patient:          n.PatientID,
		}
		r.Allergies = pick(byField[AllergyLink.Field], n.LinkIDs[AllergyLink.Field])
		r.Medication = pick(byField[MedicationLink.Field], n.LinkIDs[MedicationLink.Field])
		r.Diagnoses = pick(byField[DiagnosisLink.Field], n.LinkIDs[DiagnosisLink.Field])
		out = append(out, r)
	}
	return out, nil
}

// pick returns the items for ids in the order given, never nil.
func pick(items map[int64]*reference.Item, ids []int64) []*reference.Item {
	out := make([]*reference.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := items[id]; ok {
			out = append(out, it)
		}
	}
	return out
}
