// Package mongo implements store.Store on a MongoDB database.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/alfredjeanlab/odm/internal/store"
)

// DefaultDatabase is used when the connection URL names no database.
const DefaultDatabase = "odm"

// MongoStore implements store.Store backed by MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Compile-time check that MongoStore implements store.Store.
var _ store.Store = (*MongoStore)(nil)

// New connects to the MongoDB deployment at uri and verifies the connection.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	if database == "" {
		database = DefaultDatabase
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func (s *MongoStore) Upsert(ctx context.Context, collection string, key any, rec store.Record) (any, error) {
	coll := s.db.Collection(collection)
	if key == nil {
		res, err := coll.InsertOne(ctx, store.Ordered(rec))
		if err != nil {
			return nil, fmt.Errorf("insert into %s: %w", collection, err)
		}
		return res.InsertedID, nil
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := coll.ReplaceOne(ctx, keyFilter(key), store.Ordered(store.WithKey(rec, key)), opts); err != nil {
		return nil, fmt.Errorf("replace %s/%v: %w", collection, key, err)
	}
	return key, nil
}

func (s *MongoStore) Find(ctx context.Context, collection string, key any) (store.Record, error) {
	raw, err := s.db.Collection(collection).FindOne(ctx, keyFilter(key)).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%v: %w", collection, key, err)
	}
	return store.UnmarshalRecord(raw)
}

func (s *MongoStore) Delete(ctx context.Context, collection string, key any) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, keyFilter(key))
	if err != nil {
		return fmt.Errorf("delete %s/%v: %w", collection, key, err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Drop(ctx context.Context, collection string) error {
	if err := s.db.Collection(collection).Drop(ctx); err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, collection string) ([]store.Record, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var recs []store.Record
	for cur.Next(ctx) {
		rec, err := store.UnmarshalRecord(cur.Current)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	store.SortByKey(recs)
	return recs, nil
}

func (s *MongoStore) Collections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func keyFilter(key any) bson.D {
	return bson.D{{Key: store.KeyField, Value: key}}
}
