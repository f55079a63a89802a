package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	threadsCollection = "threads"
	recordsCollection = "generation_records"
)

type MongoStorage struct {
	client   *mongo.Client
	threads  *mongo.Collection
	records  *mongo.Collection
	maxTurns int
	log      *slog.Logger
}

func NewMongoStorage(uri, database string, maxTurns int, log *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(database)
	m := &MongoStorage{
		client:   client,
		threads:  db.Collection(threadsCollection),
		records:  db.Collection(recordsCollection),
		maxTurns: maxTurns,
		log:      log,
	}

	// Create unique indexes on the session key for faster lookups
	for _, coll := range []*mongo.Collection{m.threads, m.records} {
		_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			log.Warn("creating index", slog.String("error", err.Error()))
		}
	}

	return m, nil
}

func (m *MongoStorage) GetThread(key string) (*Thread, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var thread Thread
	err := m.threads.FindOne(ctx, bson.M{"key": key}).Decode(&thread)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding thread: %w", err)
	}
	return &thread, nil
}

func (m *MongoStorage) PutThread(key string, thread *Thread) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stored := *thread
	stored.Key = key
	stored.UpdatedAt = time.Now()

	opts := options.Replace().SetUpsert(true)
	_, err := m.threads.ReplaceOne(ctx, bson.M{"key": key}, &stored, opts)
	return err
}

// AppendTurns relies on a single $push so the database serializes concurrent
// appends to the same key.
func (m *MongoStorage) AppendTurns(key string, turns ...Turn) (*Thread, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	for i := range turns {
		if turns[i].Timestamp.IsZero() {
			turns[i].Timestamp = now
		}
	}

	push := bson.M{"$each": turns}
	if m.maxTurns > 0 {
		push["$slice"] = -m.maxTurns
	}
	update := bson.M{
		"$push":        bson.M{"turns": push},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"key": key},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var thread Thread
	err := m.threads.FindOneAndUpdate(ctx, bson.M{"key": key}, update, opts).Decode(&thread)
	if err != nil {
		return nil, fmt.Errorf("appending turns: %w", err)
	}
	return &thread, nil
}

func (m *MongoStorage) GetRecord(key string) (*GenerationRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var record GenerationRecord
	err := m.records.FindOne(ctx, bson.M{"key": key}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding record: %w", err)
	}
	return &record, nil
}

func (m *MongoStorage) PutRecord(key string, record *GenerationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stored := *record
	stored.Key = key
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	opts := options.Replace().SetUpsert(true)
	_, err := m.records.ReplaceOne(ctx, bson.M{"key": key}, &stored, opts)
	return err
}

func (m *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
