package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/medoffice/practice/internal/domain/reference"
	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/db"
	"github.com/medoffice/practice/internal/platform/wire"
	"github.com/medoffice/practice/pkg/pagination"
)

const (
	maxNameLength     = 50
	maxEmailLength    = 254
	maxPhoneLength    = 25
	maxMemberIDLength = 254
)

// ProviderLookup resolves insurance provider ids.
type ProviderLookup interface {
	Get(ctx context.Context, id int64) (*reference.Item, error)
}

type Service struct {
	repo      Repository
	providers ProviderLookup
	tx        db.Transactor
}

func NewService(repo Repository, providers ProviderLookup, tx db.Transactor) *Service {
	return &Service{repo: repo, providers: providers, tx: tx}
}

func (s *Service) List(ctx context.Context, search string, pg pagination.Params) ([]*Patient, int, error) {
	return s.repo.Search(ctx, db.SearchTerms(search), pg.LimitArg(), pg.OffsetArg())
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// GetMany loads the patients named by ids keyed by id. Missing ids are
// simply absent from the result.
func (s *Service) GetMany(ctx context.Context, ids []int64) (map[int64]*Patient, error) {
	ps, err := s.repo.GetMany(ctx, reference.Unique(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*Patient, len(ps))
	for _, p := range ps {
		out[p.ID] = p
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, w PatientWrite) (*Patient, error) {
	var created *Patient
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.validate(ctx, w, 0)
		if err != nil {
			return err
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		created, err = s.repo.GetByID(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces every writable field of patient id. A field left out of w
// takes the value it would have on create.
func (s *Service) Update(ctx context.Context, id int64, w PatientWrite) (*Patient, error) {
	var updated *Patient
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return err
		}
		p, err := s.validate(ctx, w, id)
		if err != nil {
			return err
		}
		p.ID = id
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		updated, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Patch applies a partial update. apply receives the current record as a
// write body and overwrites only the fields the caller sent.
func (s *Service) Patch(ctx context.Context, id int64, apply func(w *PatientWrite) error) (*Patient, error) {
	var updated *Patient
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		w := current.ToWrite()
		if err := apply(&w); err != nil {
			return err
		}
		p, err := s.validate(ctx, w, id)
		if err != nil {
			return err
		}
		p.ID = id
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		updated, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete is not routed. It removes the patient together with every
// appointment and progress note that belongs to it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
}

// validate normalizes w into a record. Blank email and phone become null
// before anything else looks at them, so they never collide. selfID is
// excluded from the uniqueness checks.
func (s *Service) validate(ctx context.Context, w PatientWrite, selfID int64) (*Patient, error) {
	w.Email = wire.BlankToNull(w.Email)
	w.Phone = wire.BlankToNull(w.Phone)

	v := apierror.NewValidation()
	p := &Patient{
		FirstName:         wire.RequiredText(v, "first_name", w.FirstName, maxNameLength),
		LastName:          wire.RequiredText(v, "last_name", w.LastName, maxNameLength),
		Email:             wire.OptionalText(v, "email", w.Email, maxEmailLength),
		Phone:             wire.OptionalText(v, "phone", w.Phone, maxPhoneLength),
		InsuranceMemberID: wire.OptionalText(v, "insurance_member_id", w.InsuranceMemberID, maxMemberIDLength),
		IsNew:             true,
	}
	if w.IsNew != nil {
		p.IsNew = *w.IsNew
	}

	if p.Email != nil && !v.Has("email") && !validEmail(*p.Email) {
		v.Add("email", "Enter a valid email address.")
	}

	if sex := wire.BlankToNull(w.Sex); sex != nil {
		if SexLabel(*sex) == "" {
			v.Add("sex", fmt.Sprintf("%q is not a valid choice.", *sex))
		} else {
			p.Sex = sex
		}
	}

	if w.DOB != nil && !w.DOB.Blank() {
		if !w.DOB.Valid() {
			v.Add("dob", wire.DateFormatMessage)
		} else {
			t := w.DOB.Time()
			p.DOB = &t
		}
	}

	if w.InsuranceProvider != nil {
		id := *w.InsuranceProvider
		if _, err := s.providers.Get(ctx, id); err != nil {
			if !errors.Is(err, apierror.ErrNotFound) {
				return nil, err
			}
			v.Add("insurance_provider", wire.InvalidPK(id))
		} else {
			p.InsuranceProviderID = &id
		}
	}

	if err := s.checkUnique(ctx, v, p, selfID); err != nil {
		return nil, err
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) checkUnique(ctx context.Context, v *apierror.ValidationError, p *Patient, selfID int64) error {
	if p.Email != nil && !v.Has("email") {
		taken, err := s.repo.EmailTaken(ctx, *p.Email, selfID)
		if err != nil {
			return err
		}
		if taken {
			v.AddDuplicate(&apierror.DuplicateError{Kind: "patient", Field: "email", Value: *p.Email})
		}
	}
	if p.Phone != nil && !v.Has("phone") {
		taken, err := s.repo.PhoneTaken(ctx, *p.Phone, selfID)
		if err != nil {
			return err
		}
		if taken {
			v.AddDuplicate(&apierror.DuplicateError{Kind: "patient", Field: "phone", Value: *p.Phone})
		}
	}
	return nil
}

var validate = validator.New()

// validEmail accepts what the email tag accepts, plus addresses at localhost.
func validEmail(s string) bool {
	if at := strings.LastIndex(s, "@"); at > 0 && s[at+1:] == "localhost" {
		s = s[:at] + "@localhost.localdomain"
	}
	return validate.Var(s, "email") == nil
}
