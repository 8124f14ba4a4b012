// Package scheduling stores appointments. Every appointment belongs to one
// patient and is deleted with it.
package scheduling

import (
	"time"

	"github.com/medoffice/practice/internal/domain/patient"
	"github.com/medoffice/practice/internal/platform/wire"
)

const (
	StatusScheduled = "SC"
	StatusCheckedIn = "CI"
	StatusDone      = "DO"
)

// StatusText returns the display name for a status code, or "" for an
// unknown code.
func StatusText(code string) string {
	switch code {
	case StatusScheduled:
		return "Scheduled"
	case StatusCheckedIn:
		return "Checked In"
	case StatusDone:
		return "Done"
	}
	return ""
}

type Appointment struct {
	ID        int64
	Start     time.Time
	End       time.Time
	Status    string
	PatientID int64
	CreatedAt time.Time
	Notes     *string
}

// AppointmentRead is the API representation. The patient is rendered in
// full, including its insurance provider.
type AppointmentRead struct {
	ID         int64                `json:"id"`
	StatusText string               `json:"status_text"`
	Patient    *patient.PatientRead `json:"patient"`
	Start      time.Time            `json:"start"`
	End        time.Time            `json:"end"`
	Status     string               `json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
	Notes      *string              `json:"notes"`
}

// AppointmentWrite is the accepted request body. patient is a bare id.
type AppointmentWrite struct {
	Start   *wire.Timestamp `json:"start"`
	End     *wire.Timestamp `json:"end"`
	Status  *string         `json:"status"`
	Patient *int64          `json:"patient"`
	Notes   *string         `json:"notes"`
}

func (a *Appointment) ToRead(p *patient.Patient) *AppointmentRead {
	r := &AppointmentRead{
		ID:         a.ID,
		StatusText: StatusText(a.Status),
		Start:      a.Start.UTC(),
		End:        a.End.UTC(),
		Status:     a.Status,
		CreatedAt:  a.CreatedAt.UTC(),
		Notes:      a.Notes,
	}
	if p != nil {
		r.Patient = p.ToRead()
	}
	return r
}

// ToWrite is the body that would recreate a.
func (a *Appointment) ToWrite() AppointmentWrite {
	start, end := wire.NewTimestamp(a.Start), wire.NewTimestamp(a.End)
	status, patientID := a.Status, a.PatientID
	w := AppointmentWrite{Start: &start, End: &end, Status: &status, Patient: &patientID}
	if a.Notes != nil {
		notes := *a.Notes
		w.Notes = &notes
	}
	return w
}

// Filter narrows a listing. Nil fields are not applied. Both start bounds
// are inclusive.
type Filter struct {
	ID          *int64
	PatientID   *int64
	StartAfter  *time.Time
	StartBefore *time.Time
	Ordering    string
}
