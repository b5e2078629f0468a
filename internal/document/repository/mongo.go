package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dokstore/dokstore/internal/audit"
	"github.com/dokstore/dokstore/internal/document"
)

// MongoStore implements Store on three collections: document_types,
// documents and audit_events. The at-most-one-successor invariant is a
// partial unique index on documents.predecessorId, so two racing replaces
// cannot both insert a successor even across processes.
type MongoStore struct {
	client *mongo.Client
	types  *mongo.Collection
	docs   *mongo.Collection
	events *mongo.Collection
}

// NewMongoStore wires the collections and ensures the indexes the chain
// invariants rely on. Index creation is idempotent.
func NewMongoStore(client *mongo.Client, db string) (*MongoStore, error) {
	s := &MongoStore{
		client: client,
		types:  client.Database(db).Collection("document_types"),
		docs:   client.Database(db).Collection("documents"),
		events: client.Database(db).Collection("audit_events"),
	}
	ctx := context.Background()
	_, err := s.types.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo type indexes: %w", err)
	}
	_, err = s.docs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "predecessorId", Value: 1}},
		Options: options.Index().SetUnique(true).SetPartialFilterExpression(
			bson.M{"predecessorId": bson.M{"$exists": true}},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("mongo successor index: %w", err)
	}
	_, err = s.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "documentId", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo event index: %w", err)
	}
	return s, nil
}

// WithTransaction runs fn inside a Mongo session transaction. Store calls
// made with the session context join the transaction; any error from fn
// aborts it with no partial writes.
func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: start session: %v", document.ErrTransaction, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) InsertType(ctx context.Context, t *document.DocumentType) error {
	if _, err := s.types.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return document.ErrDuplicateName
		}
		return err
	}
	return nil
}

func (s *MongoStore) GetType(ctx context.Context, id string) (*document.DocumentType, error) {
	var t document.DocumentType
	err := s.types.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, document.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *MongoStore) InsertDocument(ctx context.Context, d *document.Document) error {
	if _, err := s.docs.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSuccessorExists
		}
		return err
	}
	return nil
}

func (s *MongoStore) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	err := s.docs.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, document.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *MongoStore) SuccessorOf(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	err := s.docs.FindOne(ctx, bson.M{"predecessorId": id}).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, document.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *MongoStore) UpdatePreview(ctx context.Context, id string, status document.PreviewStatus, previewRef string) error {
	update := bson.M{"$set": bson.M{"previewStatus": status}}
	if previewRef != "" {
		update["$set"].(bson.M)["previewRef"] = previewRef
	} else {
		update["$unset"] = bson.M{"previewRef": ""}
	}
	res, err := s.docs.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.docs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (s *MongoStore) AppendEvent(ctx context.Context, e *audit.Event) error {
	_, err := s.events.InsertOne(ctx, e)
	return err
}

func (s *MongoStore) EventsFor(ctx context.Context, documentID string) ([]*audit.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.events.Find(ctx, bson.M{"documentId": documentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*audit.Event{}
	for cur.Next(ctx) {
		var e audit.Event
		if err := cur.Decode(&e); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, cur.Err()
}
