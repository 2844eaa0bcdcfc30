package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/m-mizutani/gt"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestFirestorePutGetDatabase(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	seed, err := repository.LoadFile("testdata/db.yaml")
	gt.NoError(t, err)
	gt.NoError(t, repo.PutDatabase(ctx, seed))

	db, err := repo.GetDatabase(ctx)
	gt.NoError(t, err)
	gt.Equal(t, db.Locations.Names(), seed.Locations.Names())

	kroger, ok := db.Locations.Get("Kroger")
	gt.True(t, ok)
	gt.Equal(t, kroger.Kind, model.LocationKindSupplier)
	gt.Equal(t, kroger.SurplusMapping["dairy"], []string{"milk", "cheese"})
}

func TestFirestoreUpdateRemovesDeleted(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	seed, err := repository.LoadFile("testdata/db.yaml")
	gt.NoError(t, err)
	gt.NoError(t, repo.PutDatabase(ctx, seed))

	smaller := &model.Database{}
	smaller.Locations.Put(model.NewDemander("Journey To Housing", model.Coordinates{Lat: 42.33437, Lon: -83.28987}))
	gt.NoError(t, repo.PutDatabase(ctx, smaller))

	db, err := repo.GetDatabase(ctx)
	gt.NoError(t, err)
	gt.Equal(t, db.Locations.Names(), []string{"Journey To Housing"})
}
