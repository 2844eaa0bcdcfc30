package repository

import (
	"context"

	"github.com/foodlink/foodlink/pkg/model"
)

// Repository defines the interface for location database persistence
type Repository interface {
	// GetDatabase returns a copy of the whole location database
	GetDatabase(ctx context.Context) (*model.Database, error)

	// PutDatabase replaces the whole location database
	PutDatabase(ctx context.Context, db *model.Database) error
}

// updater is implemented by repositories that can run a read-modify-write atomically
type updater interface {
	update(ctx context.Context, fn func(db *model.Database) error) (*model.Database, error)
}

// Update reads the database, applies fn to it and writes the result back. fn works on
// a private copy, so an error from fn leaves the stored database untouched.
func Update(ctx context.Context, repo Repository, fn func(db *model.Database) error) (*model.Database, error) {
	if u, ok := repo.(updater); ok {
		return u.update(ctx, fn)
	}

	db, err := repo.GetDatabase(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(db); err != nil {
		return nil, err
	}
	if err := repo.PutDatabase(ctx, db); err != nil {
		return nil, err
	}
	return db.Clone(), nil
}
