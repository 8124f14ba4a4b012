package clinical

import "context"

type Repository interface {
	// Create and Update write the note row only; associations go through
	// ReplaceLinks.
	Create(ctx context.Context, n *ProgressNote) error
	Update(ctx context.Context, n *ProgressNote) error
	GetByID(ctx context.Context, id int64) (*ProgressNote, error)
	List(ctx context.Context, f Filter, limit interface{}, offset int) ([]*ProgressNote, int, error)
	ReplaceLinks(ctx context.Context, noteID int64, l Link, ids []int64) error
}
