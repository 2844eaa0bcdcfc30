package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestLoadFileYAML(t *testing.T) {
	db, err := repository.LoadFile("testdata/db.yaml")
	gt.NoError(t, err)
	gt.Equal(t, db.Locations.Names(), []string{"Kroger", "Cinnabon", "Helping Hand - Food Pantry"})

	cinnabon, ok := db.Locations.Get("Cinnabon")
	gt.True(t, ok)
	gt.Equal(t, cinnabon.SurplusMapping["baked goods"], []string{"muffins", "cookies"})
}

func TestLoadFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	gt.NoError(t, os.WriteFile(path, []byte(`{"locations":{"B":{"demand":["dairy"],"data":{"lat":1,"lon":2,"address":"x"}},"A":{"data":{"lat":0,"lon":0,"address":""}}}}`), 0644))

	db, err := repository.LoadFile(path)
	gt.NoError(t, err)
	gt.Equal(t, db.Locations.Names(), []string{"B", "A"})
}

func TestLoadFileMissing(t *testing.T) {
	_, err := repository.LoadFile(filepath.Join(t.TempDir(), "none.yaml"))
	gt.Error(t, err)
}

func TestMemoryCopies(t *testing.T) {
	ctx := context.Background()
	seed, err := repository.LoadFile("testdata/db.yaml")
	gt.NoError(t, err)

	repo := repository.NewMemory(seed)
	db, err := repo.GetDatabase(ctx)
	gt.NoError(t, err)

	kroger, _ := db.Locations.Get("Kroger")
	kroger.SurplusMapping["fruits"] = nil

	again, err := repo.GetDatabase(ctx)
	gt.NoError(t, err)
	kroger, _ = again.Locations.Get("Kroger")
	gt.A(t, kroger.SurplusMapping["fruits"]).Length(2)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory(nil)

	db, err := repository.Update(ctx, repo, func(db *model.Database) error {
		db.Locations.Put(model.NewDemander("Journey To Housing", model.Coordinates{Lat: 42.33437, Lon: -83.28987}, "dairy"))
		return nil
	})
	gt.NoError(t, err)
	gt.Equal(t, db.Locations.Len(), 1)

	_, err = repository.Update(ctx, repo, func(db *model.Database) error {
		db.Locations.Put(model.NewDemander("Other", model.Coordinates{}))
		return goerr.New("rejected")
	})
	gt.Error(t, err)

	stored, err := repo.GetDatabase(ctx)
	gt.NoError(t, err)
	gt.Equal(t, stored.Locations.Names(), []string{"Journey To Housing"})
}
