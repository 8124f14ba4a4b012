package reference

import (
	"context"
	"sort"

	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/db"
	"github.com/medoffice/practice/internal/platform/wire"
	"github.com/medoffice/practice/pkg/pagination"
)

type Service struct {
	kind Kind
	repo Repository
	tx   db.Transactor
}

func NewService(kind Kind, repo Repository, tx db.Transactor) *Service {
	return &Service{kind: kind, repo: repo, tx: tx}
}

func (s *Service) Kind() Kind { return s.kind }

func (s *Service) List(ctx context.Context, search string, pg pagination.Params) ([]*Item, int, error) {
	return s.repo.Search(ctx, db.SearchTerms(search), pg.LimitArg(), pg.OffsetArg())
}

// Create rejects a name that matches an existing one ignoring case. The
// unique index reports the same DuplicateError if a concurrent insert wins.
func (s *Service) Create(ctx context.Context, w ItemWrite) (*Item, error) {
	v := apierror.NewValidation()
	name := wire.RequiredText(v, "name", w.Name, s.kind.MaxLength)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var created *Item
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return &apierror.DuplicateError{Kind: s.kind.Label, Field: "name", Value: name}
		}
		created, err = s.repo.Create(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Item, error) {
	return s.repo.GetByID(ctx, id)
}

// GetMany loads the items named by ids ordered by id. Missing ids are
// skipped.
func (s *Service) GetMany(ctx context.Context, ids []int64) ([]*Item, error) {
	return s.repo.GetMany(ctx, Unique(ids))
}

// Resolve loads every item named by ids, collapsing duplicates. Ids that do
// not exist are reported on field.
func (s *Service) Resolve(ctx context.Context, field string, ids []int64) ([]*Item, error) {
	uniq := Unique(ids)
	items, err := s.repo.GetMany(ctx, uniq)
	if err != nil {
		return nil, err
	}
	if len(items) == len(uniq) {
		return items, nil
	}

	found := make(map[int64]bool, len(items))
	for _, it := range items {
		found[it.ID] = true
	}
	v := apierror.NewValidation()
	for _, id := range uniq {
		if !found[id] {
			v.Add(field, wire.InvalidPK(id))
		}
	}
	return nil, v.Err()
}

// Delete is not routed. Patients referencing a deleted insurance provider
// keep their record with the reference cleared.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Unique returns ids sorted with duplicates removed.
func Unique(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
