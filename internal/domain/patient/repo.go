package patient

import "context"

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	GetMany(ctx context.Context, ids []int64) ([]*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, terms []string, limit interface{}, offset int) ([]*Patient, int, error)
	// EmailTaken and PhoneTaken ignore the record with id excludeID.
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error)
}
