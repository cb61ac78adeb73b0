package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	defaultMongoDatabase   = "llmcall"
	defaultMongoCollection = "checkpoints"
)

type mongoRecord struct {
	ThreadID     string `bson:"thread_id"`
	CheckpointID string `bson:"checkpoint_id"`
	ParentID     string `bson:"parent_id"`
	CreatedAt    int64  `bson:"created_at"`
	Payload      string `bson:"payload"`
}

// MongoSaver stores one document per snapshot.
type MongoSaver struct {
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
}

// NewMongoSaver connects to uri and prepares the collection.
func NewMongoSaver(ctx context.Context, uri, database, collection string) (*MongoSaver, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	s, err := NewMongoSaverWithClient(ctx, client, database, collection)
	if err != nil {
		client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewMongoSaverWithClient uses an existing client. Close leaves it connected.
func NewMongoSaverWithClient(ctx context.Context, client *mongo.Client, database, collection string) (*MongoSaver, error) {
	if database == "" {
		database = defaultMongoDatabase
	}
	if collection == "" {
		collection = defaultMongoCollection
	}

	coll := client.Database(database).Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "thread_id", Value: 1}, {Key: "checkpoint_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create checkpoint index: %w", err)
	}

	return &MongoSaver{client: client, coll: coll}, nil
}

func (s *MongoSaver) Put(ctx context.Context, threadID string, snap *Snapshot) error {
	parentID := ""
	latest, err := s.latestRecord(ctx, threadID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	default:
		parentID = latest.CheckpointID
	}

	prepare(threadID, parentID, snap)
	data, err := encode(snap)
	if err != nil {
		return err
	}

	_, err = s.coll.InsertOne(ctx, mongoRecord{
		ThreadID:     threadID,
		CheckpointID: snap.ID,
		ParentID:     snap.ParentID,
		CreatedAt:    snap.CreatedAt.UnixMilli(),
		Payload:      string(data),
	})
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (s *MongoSaver) List(ctx context.Context, threadID string) ([]Tuple, error) {
	cursor, err := s.coll.Find(ctx,
		bson.D{{Key: "thread_id", Value: threadID}},
		options.Find().SetSort(bson.D{{Key: "checkpoint_id", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find checkpoints: %w", err)
	}

	var records []mongoRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode checkpoints: %w", err)
	}

	tuples := make([]Tuple, 0, len(records))
	for _, r := range records {
		snap, err := decode([]byte(r.Payload))
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, tupleOf(snap))
	}
	return tuples, nil
}

func (s *MongoSaver) Latest(ctx context.Context, threadID string) (*Snapshot, error) {
	r, err := s.latestRecord(ctx, threadID)
	if err != nil {
		return nil, err
	}
	snap, err := decode([]byte(r.Payload))
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *MongoSaver) latestRecord(ctx context.Context, threadID string) (*mongoRecord, error) {
	var r mongoRecord
	err := s.coll.FindOne(ctx,
		bson.D{{Key: "thread_id", Value: threadID}},
		options.FindOne().SetSort(bson.D{{Key: "checkpoint_id", Value: -1}}),
	).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest checkpoint: %w", err)
	}
	return &r, nil
}

func (s *MongoSaver) Close() error {
	if s.owned {
		return s.client.Disconnect(context.Background())
	}
	return nil
}
