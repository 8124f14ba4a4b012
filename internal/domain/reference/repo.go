package reference

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, name string) (*Item, error)
	GetByID(ctx context.Context, id int64) (*Item, error)
	// GetMany returns the items that exist among ids, ordered by id.
	GetMany(ctx context.Context, ids []int64) ([]*Item, error)
	// FindByName matches case-insensitively.
	FindByName(ctx context.Context, name string) (*Item, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, terms []string, limit interface{}, offset int) ([]*Item, int, error)
}
