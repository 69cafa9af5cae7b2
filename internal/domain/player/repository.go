package player

import "context"

type Repository interface {
	GetByID(ctx context.Context, id int64) (Snapshot, bool, error)
	List(ctx context.Context) ([]Snapshot, error)
	Upsert(ctx context.Context, snapshots []Snapshot) error
}
