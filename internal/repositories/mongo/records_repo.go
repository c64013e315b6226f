package mongo

import (
	"context"
	"fmt"

	"github.com/yoockh/nexusbot/internal/records"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type recordsRepo struct {
	db *mongo.Database
}

// NewRecordsRepo exposes Mongo collections as a records.Store.
func NewRecordsRepo(db *mongo.Database) records.Store {
	return &recordsRepo{db: db}
}

func (r *recordsRepo) Connected() bool { return r.db != nil }

func (r *recordsRepo) Insert(ctx context.Context, collection string, doc any) error {
	_, err := r.db.Collection(collection).InsertOne(ctx, doc)
	return err
}

func (r *recordsRepo) Select(ctx context.Context, collection string, q records.Query, dst any) error {
	opts := options.Find()
	if s := sortDoc(q.Order); len(s) > 0 {
		opts.SetSort(s)
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := r.db.Collection(collection).Find(ctx, filterDoc(q.Filters), opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, dst)
}

func (r *recordsRepo) Update(ctx context.Context, collection string, patch map[string]any, filters ...records.Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("update %s: refusing unfiltered update", collection)
	}
	set := bson.M{}
	for k, v := range patch {
		set[k] = v
	}
	_, err := r.db.Collection(collection).UpdateMany(ctx, filterDoc(filters), bson.M{"$set": set})
	return err
}

func (r *recordsRepo) Delete(ctx context.Context, collection string, filters ...records.Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("delete %s: refusing unfiltered delete", collection)
	}
	_, err := r.db.Collection(collection).DeleteMany(ctx, filterDoc(filters))
	return err
}

func filterDoc(filters []records.Filter) bson.D {
	d := bson.D{}
	for _, f := range filters {
		d = append(d, bson.E{Key: f.Field, Value: f.Value})
	}
	return d
}

func sortDoc(order []records.Order) bson.D {
	d := bson.D{}
	for _, o := range order {
		dir := 1
		if o.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: o.Field, Value: dir})
	}
	return d
}
