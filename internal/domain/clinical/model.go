// Package clinical stores progress notes: the vitals and findings recorded
// for a patient at a visit, linked to allergies, medications and diagnoses.
package clinical

import (
	"time"

	"github.com/medoffice/practice/internal/domain/reference"
	"github.com/medoffice/practice/internal/platform/wire"
)

const (
	decimalDigits = 6
	decimalPlaces = 2
	maxTextLength = 254
)

// Link is one many-to-many association between progress notes and a
// lookup kind.
type Link struct {
	Field  string
	Table  string
	Column string
	Kind   reference.Kind
}

var (
	AllergyLink    = Link{Field: "allergies", Table: "progress_note_allergy", Column: "allergy_id", Kind: reference.Allergy}
	MedicationLink = Link{Field: "medication", Table: "progress_note_medication", Column: "medication_id", Kind: reference.Medication}
	DiagnosisLink  = Link{Field: "diagnoses", Table: "progress_note_diagnosis", Column: "diagnosis_id", Kind: reference.Diagnosis}
)

// Links lists every association in rendering order.
func Links() []Link {
	return []Link{AllergyLink, MedicationLink, DiagnosisLink}
}

// ProgressNote is the stored record. Weight and Height hold NUMERIC(6,2)
// text. LinkIDs holds the associated ids per Link.Field, sorted.
type ProgressNote struct {
	ID               int64
	PatientID        int64
	CreatedAt        time.Time
	Weight           string
	Height           string
	BloodPressureSys int32
	BloodPressureDia int32
	ChiefComplaint   *string
	MedicalHistory   *string
	Treatment        *string
	DoctorsOrders    *string
	LinkIDs          map[string][]int64
}

// ProgressNoteRead is the API representation. Associations are expanded to
// objects ordered by id; the patient stays a bare id.
type ProgressNoteRead struct {
	ID               int64             `json:"id"`
	Allergies        []*reference.Item `json:"allergies"`
	Medication       []*reference.Item `json:"medication"`
	Diagnoses        []*reference.Item `json:"diagnoses"`
	CreatedAt        time.Time         `json:"created_at"`
	Weight           string            `json:"weight"`
	Height           string            `json:"height"`
	BloodPressureSys int32             `json:"blood_pressure_sys"`
	BloodPressureDia int32             `json:"blood_pressure_dia"`
	ChiefComplaint   *string           `json:"chief_complaint"`
	MedicalHistory   *string           `json:"medical_history"`
	Treatment        *string           `json:"treatment"`
	DoctorsOrders    *string           `json:"doctors_orders"`
	Patient          int64             `json:"patient"`
}

// ProgressNoteWrite is the accepted request body. Association lists hold
// bare ids; a nil list leaves the stored associations alone.
type ProgressNoteWrite struct {
	Patient          *int64        `json:"patient"`
	Weight           *wire.Decimal `json:"weight"`
	Height           *wire.Decimal `json:"height"`
	BloodPressureSys *int32        `json:"blood_pressure_sys"`
	BloodPressureDia *int32        `json:"blood_pressure_dia"`
	ChiefComplaint   *string       `json:"chief_complaint"`
	MedicalHistory   *string       `json:"medical_history"`
	Treatment        *string       `json:"treatment"`
	DoctorsOrders    *string       `json:"doctors_orders"`
	Allergies        *[]int64      `json:"allergies"`
	Medication       *[]int64      `json:"medication"`
	Diagnoses        *[]int64      `json:"diagnoses"`
}

// list returns the write body's ids for l.
func (w *ProgressNoteWrite) list(l Link) *[]int64 {
	switch l.Field {
	case AllergyLink.Field:
		return w.Allergies
	case MedicationLink.Field:
		return w.Medication
	case DiagnosisLink.Field:
		return w.Diagnoses
	}
	return nil
}

// ToWrite is the body that would recreate n, associations included.
func (n *ProgressNote) ToWrite() ProgressNoteWrite {
	patientID, sys, dia := n.PatientID, n.BloodPressureSys, n.BloodPressureDia
	weight, height := wire.ParseDecimal(n.Weight), wire.ParseDecimal(n.Height)
	return ProgressNoteWrite{
		Patient:          &patientID,
		Weight:           &weight,
		Height:           &height,
		BloodPressureSys: &sys,
		BloodPressureDia: &dia,
		ChiefComplaint:   clone(n.ChiefComplaint),
		MedicalHistory:   clone(n.MedicalHistory),
		Treatment:        clone(n.Treatment),
		DoctorsOrders:    clone(n.DoctorsOrders),
		Allergies:        cloneIDs(n.LinkIDs[AllergyLink.Field]),
		Medication:       cloneIDs(n.LinkIDs[MedicationLink.Field]),
		Diagnoses:        cloneIDs(n.LinkIDs[DiagnosisLink.Field]),
	}
}

func clone(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneIDs(ids []int64) *[]int64 {
	out := append([]int64{}, ids...)
	return &out
}

// Filter narrows a listing. Ordering accepts id or -id.
type Filter struct {
	PatientID *int64
	Ordering  string
}
