package adapter_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestBigQueryPutAssignments(t *testing.T) {
	projectID := os.Getenv("TEST_BIGQUERY_PROJECT")
	if projectID == "" {
		t.Skip("TEST_BIGQUERY_PROJECT is not set")
	}

	datasetID := os.Getenv("TEST_BIGQUERY_DATASET")
	if datasetID == "" {
		t.Skip("TEST_BIGQUERY_DATASET is not set")
	}

	table := os.Getenv("TEST_BIGQUERY_TABLE")
	if table == "" {
		t.Skip("TEST_BIGQUERY_TABLE is not set")
	}

	ctx := context.Background()
	sink, err := adapter.NewBigQuery(ctx, projectID, datasetID, table)
	gt.NoError(t, err)

	err = sink.PutAssignments(ctx, time.Now(), []*model.Assignment{
		{Origin: "Kroger", Destination: "Journey To Housing", Category: "fruits", Items: []string{"apple"}},
	})
	gt.NoError(t, err)
}
