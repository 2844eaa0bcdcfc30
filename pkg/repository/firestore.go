package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const locationCollection = "locations"

var ErrDatabaseNotFound = goerr.New("firestore database not found")

// Firestore implements Repository with one document per location
type Firestore struct {
	client     *firestore.Client
	collection string
}

// locationDoc is the Firestore document of a location. Order keeps document order of
// the location set.
type locationDoc struct {
	Name           string              `firestore:"name"`
	Order          int                 `firestore:"order"`
	Kind           model.LocationKind  `firestore:"kind"`
	Data           model.Coordinates   `firestore:"data"`
	Surplus        []string            `firestore:"surplus,omitempty"`
	SurplusMapping map[string][]string `firestore:"surplus_mapping,omitempty"`
	Demand         []string            `firestore:"demand,omitempty"`
}

func newLocationDoc(order int, l *model.Location) *locationDoc {
	return &locationDoc{
		Name:           l.Name,
		Order:          order,
		Kind:           l.Kind,
		Data:           l.Data,
		Surplus:        l.Surplus,
		SurplusMapping: l.SurplusMapping,
		Demand:         l.Demand,
	}
}

func (d *locationDoc) toLocation() *model.Location {
	switch d.Kind {
	case model.LocationKindSupplier:
		return model.NewSupplier(d.Name, d.Data, d.SurplusMapping, d.Surplus...)
	case model.LocationKindDemander:
		return model.NewDemander(d.Name, d.Data, d.Demand...)
	default:
		return &model.Location{Name: d.Name, Kind: model.LocationKindUnknown, Data: d.Data}
	}
}

// docID derives a stable document ID from a location name, which may contain "/"
func docID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("foodlink:location:"+name)).String()
}

// NewFirestore creates a Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{
		client:     client,
		collection: locationCollection,
	}, nil
}

// Close releases the Firestore client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func wrapFirestoreErr(err error, msg string) error {
	if status.Code(err) == codes.NotFound {
		return goerr.Wrap(ErrDatabaseNotFound, msg, goerr.V("cause", err.Error()))
	}
	return goerr.Wrap(err, msg)
}

func readLocations(iter *firestore.DocumentIterator) (*model.Database, []*firestore.DocumentRef, error) {
	defer iter.Stop()

	db := &model.Database{}
	var refs []*firestore.DocumentRef
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, wrapFirestoreErr(err, "failed to iterate locations")
		}

		var doc locationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, nil, goerr.Wrap(err, "failed to decode location", goerr.V("id", snap.Ref.ID))
		}
		db.Locations.Put(doc.toLocation())
		refs = append(refs, snap.Ref)
	}
	return db, refs, nil
}

func (r *Firestore) query() firestore.Query {
	return r.client.Collection(r.collection).OrderBy("order", firestore.Asc)
}

func (r *Firestore) GetDatabase(ctx context.Context) (*model.Database, error) {
	db, _, err := readLocations(r.query().Documents(ctx))
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (r *Firestore) PutDatabase(ctx context.Context, db *model.Database) error {
	_, err := r.update(ctx, func(current *model.Database) error {
		*current = *db.Clone()
		return nil
	})
	return err
}

func (r *Firestore) update(ctx context.Context, fn func(db *model.Database) error) (*model.Database, error) {
	var result *model.Database

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		db, refs, err := readLocations(tx.Documents(r.query()))
		if err != nil {
			return err
		}
		if err := fn(db); err != nil {
			return err
		}

		keep := make(map[string]bool, db.Locations.Len())
		coll := r.client.Collection(r.collection)
		for i, l := range db.Locations.All() {
			id := docID(l.Name)
			keep[id] = true
			if err := tx.Set(coll.Doc(id), newLocationDoc(i, l)); err != nil {
				return goerr.Wrap(err, "failed to set location", goerr.V("name", l.Name))
			}
		}
		for _, ref := range refs {
			if keep[ref.ID] {
				continue
			}
			if err := tx.Delete(ref); err != nil {
				return goerr.Wrap(err, "failed to delete location", goerr.V("id", ref.ID))
			}
		}

		result = db.Clone()
		return nil
	})
	if err != nil {
		return nil, wrapFirestoreErr(err, "failed to update locations")
	}
	return result, nil
}
