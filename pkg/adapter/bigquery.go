package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// AssignmentSink receives dispatched assignments for analytics
type AssignmentSink interface {
	PutAssignments(ctx context.Context, dispatchedAt time.Time, assignments []*model.Assignment) error
}

// assignmentRow is the BigQuery row schema of a dispatched assignment
type assignmentRow struct {
	DispatchedAt time.Time `bigquery:"dispatched_at"`
	Origin       string    `bigquery:"origin"`
	Destination  string    `bigquery:"destination"`
	Category     string    `bigquery:"category"`
	Items        []string  `bigquery:"items"`
	ItemCount    int       `bigquery:"item_count"`
}

type bigqueryClient struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// BigQueryOption is a functional option for BigQuery client
type BigQueryOption func(*bigqueryClient)

// NewBigQuery creates an AssignmentSink writing to project.dataset.table
func NewBigQuery(ctx context.Context, projectID, datasetID, tableID string, opts ...BigQueryOption) (AssignmentSink, error) {
	if datasetID == "" || tableID == "" {
		return nil, goerr.New("dataset and table are required",
			goerr.V("dataset", datasetID), goerr.V("table", tableID))
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	bq := &bigqueryClient{
		client:  client,
		dataset: datasetID,
		table:   tableID,
	}

	for _, opt := range opts {
		opt(bq)
	}

	if err := bq.ensureTable(ctx); err != nil {
		return nil, err
	}

	return bq, nil
}

// ensureTable creates the assignment table when it does not exist
func (bq *bigqueryClient) ensureTable(ctx context.Context) error {
	tbl := bq.client.Dataset(bq.dataset).Table(bq.table)
	if _, err := tbl.Metadata(ctx); err == nil {
		return nil
	}

	schema, err := bigquery.InferSchema(assignmentRow{})
	if err != nil {
		return goerr.Wrap(err, "failed to infer assignment schema")
	}
	if err := tbl.Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "dispatched_at",
		},
	}); err != nil {
		return goerr.Wrap(err, "failed to create assignment table",
			goerr.V("dataset", bq.dataset), goerr.V("table", bq.table))
	}
	return nil
}

func (bq *bigqueryClient) PutAssignments(ctx context.Context, dispatchedAt time.Time, assignments []*model.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	rows := make([]*assignmentRow, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, &assignmentRow{
			DispatchedAt: dispatchedAt,
			Origin:       a.Origin,
			Destination:  a.Destination,
			Category:     a.Category,
			Items:        a.Items,
			ItemCount:    len(a.Items),
		})
	}

	inserter := bq.client.Dataset(bq.dataset).Table(bq.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return goerr.Wrap(err, "failed to insert assignments",
			goerr.V("dataset", bq.dataset), goerr.V("table", bq.table), goerr.V("rows", len(rows)))
	}
	return nil
}
