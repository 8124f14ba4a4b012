// Package patient stores patient demographics and their link to an
// insurance provider.
package patient

import (
	"time"

	"github.com/medoffice/practice/internal/domain/reference"
	"github.com/medoffice/practice/internal/platform/wire"
)

const (
	SexMale   = "M"
	SexFemale = "F"
)

// SexLabel returns the display name for a sex code.
func SexLabel(code string) string {
	switch code {
	case SexMale:
		return "Male"
	case SexFemale:
		return "Female"
	}
	return ""
}

// Patient is the stored record. InsuranceProvider is filled from a join on
// read and ignored on write.
type Patient struct {
	ID                  int64
	FirstName           string
	LastName            string
	Email               *string
	Phone               *string
	DOB                 *time.Time
	InsuranceProviderID *int64
	InsuranceProvider   *reference.Item
	InsuranceMemberID   *string
	IsNew               bool
	Sex                 *string
}

// PatientRead is the API representation with the insurance provider
// expanded to an object.
type PatientRead struct {
	ID                int64           `json:"id"`
	FirstName         string          `json:"first_name"`
	LastName          string          `json:"last_name"`
	Email             *string         `json:"email"`
	Phone             *string         `json:"phone"`
	DOB               *wire.Date      `json:"dob"`
	InsuranceProvider *reference.Item `json:"insurance_provider"`
	InsuranceMemberID *string         `json:"insurance_member_id"`
	IsNew             bool            `json:"is_new"`
	Sex               *string         `json:"sex"`
}

// PatientWrite is the accepted request body. insurance_provider is a bare
// id; an object there is rejected while decoding.
type PatientWrite struct {
	FirstName         *string    `json:"first_name"`
	LastName          *string    `json:"last_name"`
	Email             *string    `json:"email"`
	Phone             *string    `json:"phone"`
	DOB               *wire.Date `json:"dob"`
	InsuranceProvider *int64     `json:"insurance_provider"`
	InsuranceMemberID *string    `json:"insurance_member_id"`
	IsNew             *bool      `json:"is_new"`
	Sex               *string    `json:"sex"`
}

func (p *Patient) ToRead() *PatientRead {
	r := &PatientRead{
		ID:                p.ID,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		Email:             p.Email,
		Phone:             p.Phone,
		InsuranceProvider: p.InsuranceProvider,
		InsuranceMemberID: p.InsuranceMemberID,
		IsNew:             p.IsNew,
		Sex:               p.Sex,
	}
	if p.DOB != nil {
		d := wire.NewDate(*p.DOB)
		r.DOB = &d
	}
	return r
}

// ToWrite is the body that would recreate p. Partial updates decode over it,
// so every value is copied rather than shared with p.
func (p *Patient) ToWrite() PatientWrite {
	first, last, isNew := p.FirstName, p.LastName, p.IsNew
	w := PatientWrite{
		FirstName:         &first,
		LastName:          &last,
		Email:             clone(p.Email),
		Phone:             clone(p.Phone),
		InsuranceMemberID: clone(p.InsuranceMemberID),
		IsNew:             &isNew,
		Sex:               clone(p.Sex),
	}
	if p.InsuranceProviderID != nil {
		id := *p.InsuranceProviderID
		w.InsuranceProvider = &id
	}
	if p.DOB != nil {
		d := wire.NewDate(*p.DOB)
		w.DOB = &d
	}
	return w
}

func clone(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ToReadList converts every record, returning an empty slice for none.
func ToReadList(ps []*Patient) []*PatientRead {
	out := make([]*PatientRead, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ToRead())
	}
	return out
}
