package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/km2209/onion-gateway/internal/core/domain"
)

type resourceDoc struct {
	ID          string    `bson:"_id"`
	Seq         int64     `bson:"seq"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Version     int64     `bson:"version"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
	Deleted     bool      `bson:"deleted"`
}

type counterDoc struct {
	ID    string `bson:"_id"`
	Value int64  `bson:"value"`
}

// MongoAdapter stores one document per resource. Deleted documents stay in
// the collection with deleted=true as the tombstone; a counter document
// hands out the creation-order sequence.
type MongoAdapter struct {
	client    *mongo.Client
	resources *mongo.Collection
	counters  *mongo.Collection
}

func NewMongoAdapter(client *mongo.Client, dbName string) *MongoAdapter {
	db := client.Database(dbName)
	return &MongoAdapter{
		client:    client,
		resources: db.Collection("resources"),
		counters:  db.Collection("counters"),
	}
}

func (a *MongoAdapter) nextSeq(ctx context.Context) (int64, error) {
	var c counterDoc
	err := a.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: "resources"}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "value", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return c.Value, nil
}

func (a *MongoAdapter) Create(ctx context.Context, title, description string) (domain.Resource, error) {
	if err := domain.ValidateTitle(title); err != nil {
		return domain.Resource{}, err
	}

	seq, err := a.nextSeq(ctx)
	if err != nil {
		return domain.Resource{}, err
	}

	now := time.Now().UTC()
	doc := resourceDoc{
		ID:          uuid.New().String(),
		Seq:         seq,
		Title:       title,
		Description: description,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := a.resources.InsertOne(ctx, doc); err != nil {
		return domain.Resource{}, fmt.Errorf("insert resource: %w", err)
	}
	return docToResource(doc), nil
}

func (a *MongoAdapter) Get(ctx context.Context, id string) (domain.Resource, error) {
	var doc resourceDoc
	err := a.resources.FindOne(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "deleted", Value: false}},
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Resource{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Resource{}, fmt.Errorf("find resource: %w", err)
	}
	return docToResource(doc), nil
}

func (a *MongoAdapter) List(ctx context.Context) ([]domain.Resource, error) {
	cursor, err := a.resources.Find(ctx,
		bson.D{{Key: "deleted", Value: false}},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find resources: %w", err)
	}

	var docs []resourceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode resources: %w", err)
	}

	out := make([]domain.Resource, 0, len(docs))
	for _, doc := range docs {
		out = append(out, docToResource(doc))
	}
	return out, nil
}

func (a *MongoAdapter) Update(ctx context.Context, id string, expectedVersion int64, title, description *string) (domain.Resource, error) {
	if title != nil {
		if err := domain.ValidateTitle(*title); err != nil {
			return domain.Resource{}, err
		}
	}

	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if title != nil {
		set = append(set, bson.E{Key: "title", Value: *title})
	}
	if description != nil {
		set = append(set, bson.E{Key: "description", Value: *description})
	}

	var doc resourceDoc
	err := a.resources.FindOneAndUpdate(ctx,
		bson.D{
			{Key: "_id", Value: id},
			{Key: "version", Value: expectedVersion},
			{Key: "deleted", Value: false},
		},
		bson.D{
			{Key: "$set", Value: set},
			{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Resource{}, a.classifyMiss(ctx, id)
	}
	if err != nil {
		return domain.Resource{}, fmt.Errorf("update resource: %w", err)
	}
	return docToResource(doc), nil
}

func (a *MongoAdapter) Delete(ctx context.Context, id string, expectedVersion int64) error {
	err := a.resources.FindOneAndUpdate(ctx,
		bson.D{
			{Key: "_id", Value: id},
			{Key: "version", Value: expectedVersion},
			{Key: "deleted", Value: false},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "deleted", Value: true},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return a.classifyMiss(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return nil
}

// classifyMiss distinguishes a stale version from an unknown or tombstoned
// id after a zero-match optimistic update.
func (a *MongoAdapter) classifyMiss(ctx context.Context, id string) error {
	var doc resourceDoc
	err := a.resources.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("classify miss: %w", err)
	}
	if doc.Deleted {
		return domain.ErrNotFound
	}
	return domain.ErrVersionConflict
}

func (a *MongoAdapter) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

func docToResource(doc resourceDoc) domain.Resource {
	return domain.Resource{
		ID:          doc.ID,
		Title:       doc.Title,
		Description: doc.Description,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
