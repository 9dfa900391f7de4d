package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/*
MongoDB Schema:

Collection: evolve_records

Document structure:
{
    "_id": string,      // store key ("name@version")
    "value": BinData,
    "updated_at": ISODate
}

Indexes:
db.evolve_records.createIndex({"updated_at": 1})
*/

// mongoRecord represents a stored value in MongoDB.
type mongoRecord struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore implements Store using MongoDB.
//
// Example:
//
//	client, _ := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://localhost:27017"))
//	s := store.NewMongoStore(client.Database("mydb"))
//	defer s.Close()
type MongoStore struct {
	collection *mongo.Collection
	mu         sync.RWMutex
	closed     bool
}

// NewMongoStore creates a new MongoDB-based store using the
// "evolve_records" collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection("evolve_records")}
}

// WithCollection sets a custom collection name.
func (s *MongoStore) WithCollection(name string) *MongoStore {
	s.collection = s.collection.Database().Collection(name)
	return s
}

// Collection returns the underlying MongoDB collection.
func (s *MongoStore) Collection() *mongo.Collection {
	return s.collection
}

// Indexes returns the required indexes.
func (s *MongoStore) Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "updated_at", Value: 1}}},
	}
}

// EnsureIndexes creates the required indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, s.Indexes())
	return err
}

func (s *MongoStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Save writes value under key.
func (s *MongoStore) Save(ctx context.Context, key string, value []byte) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	doc := mongoRecord{Key: key, Value: value, UpdatedAt: time.Now()}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Load returns the value stored under key.
func (s *MongoStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	var doc mongoRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return doc.Value, nil
}

// Delete removes key.
func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns the sorted keys starting with prefix.
func (s *MongoStore) List(ctx context.Context, prefix string) ([]string, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	filter := bson.M{}
	if prefix != "" {
		filter["_id"] = bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer cursor.Close(ctx)

	var keys []string
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode key: %w", err)
		}
		keys = append(keys, doc.Key)
	}
	return keys, cursor.Err()
}

// Close closes the store. The client is owned by the caller.
func (s *MongoStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Compile-time check that MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
