package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mlenz/nodeforge/pkg/dataflow"
)

// MongoStore is a MongoDB-backed document store for durable server
// deployments. Each dataflow is one document in a collection, keyed by
// the caller-chosen id in the _id field.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// mongoDoc wraps a dataflow document with its storage id.
type mongoDoc struct {
	ID       string             `bson:"_id"`
	Dataflow *dataflow.Dataflow `bson:"dataflow"`
}

// NewMongoStore connects to MongoDB and creates a store over the given
// database and collection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// NewMongoStoreFromCollection creates a store over an existing
// collection. Close becomes a no-op for the client; the caller owns it.
func NewMongoStoreFromCollection(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

func (s *MongoStore) Get(ctx context.Context, id string) (*dataflow.Dataflow, error) {
	var doc mongoDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NotFound(id)
		}
		return nil, fmt.Errorf("find dataflow: %w", err)
	}
	return doc.Dataflow, nil
}

func (s *MongoStore) Put(ctx context.Context, id string, doc *dataflow.Dataflow) error {
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"_id": id},
		mongoDoc{ID: id, Dataflow: doc},
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save dataflow: %w", err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete dataflow: %w", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]string, error) {
	cursor, err := s.collection.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list dataflows: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataflows: %w", err)
	}
	return ids, nil
}

// Close disconnects the client if the store owns one.
func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

var _ Store = (*MongoStore)(nil)
