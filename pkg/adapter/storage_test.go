package adapter_test

import (
	"context"
	"io"
	"testing"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func TestFileStorage(t *testing.T) {
	ctx := context.Background()
	storage, err := adapter.NewFileStorage(t.TempDir())
	gt.NoError(t, err)

	w, err := storage.Put(ctx, "transcripts/abc.json")
	gt.NoError(t, err)
	_, err = w.Write([]byte(`{"id":"abc"}`))
	gt.NoError(t, err)
	gt.NoError(t, w.Close())

	r, err := storage.Get(ctx, "transcripts/abc.json")
	gt.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.Equal(t, string(data), `{"id":"abc"}`)

	_, err = storage.Get(ctx, "transcripts/missing.json")
	gt.Error(t, err)
}

func TestFileStorageList(t *testing.T) {
	ctx := context.Background()
	storage, err := adapter.NewFileStorage(t.TempDir())
	gt.NoError(t, err)

	for _, key := range []string{"transcripts/b.json", "transcripts/a.json", "other/c.json"} {
		w, err := storage.Put(ctx, key)
		gt.NoError(t, err)
		gt.NoError(t, w.Close())
	}

	keys, err := storage.List(ctx, "transcripts/")
	gt.NoError(t, err)
	gt.Equal(t, keys, []string{"transcripts/a.json", "transcripts/b.json"})

	keys, err = storage.List(ctx, "missing/")
	gt.NoError(t, err)
	gt.A(t, keys).Length(0)
}
