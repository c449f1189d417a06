package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/bag-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// sessionDocument holds one client session. The bag lives under the same
// field name the session blob uses.
type sessionDocument struct {
	SessionID string                   `bson:"session_id"`
	Bag       map[string]domain.Record `bson:"bag,omitempty"`
	Purchase  *domain.Purchase         `bson:"purchase,omitempty"`
	UpdatedAt time.Time                `bson:"updated_at"`
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("sessions"),
	}
}

func (m *MongoRepository) find(ctx context.Context, sessionID string, field string) (*sessionDocument, error) {
	var doc sessionDocument

	opts := options.FindOne().SetProjection(bson.M{field: 1})
	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	return &doc, nil
}

func (m *MongoRepository) Load(ctx context.Context, sessionID string) (*domain.Bag, error) {
	doc, err := m.find(ctx, sessionID, domain.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load bag: %w", err)
	}
	if doc == nil {
		return domain.NewBag(), nil
	}

	bag, err := domain.BagFromRecords(doc.Bag)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bag: %w", err)
	}
	return bag, nil
}

func (m *MongoRepository) Save(ctx context.Context, sessionID string, bag *domain.Bag) error {
	filter := bson.M{"session_id": sessionID}
	update := bson.M{
		"$set": bson.M{
			domain.SessionKey: bag.Records(),
			"updated_at":      time.Now(),
		},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save bag: %w", err)
	}

	return nil
}

func (m *MongoRepository) Delete(ctx context.Context, sessionID string) error {
	filter := bson.M{"session_id": sessionID}
	update := bson.M{
		"$unset": bson.M{domain.SessionKey: ""},
		"$set":   bson.M{"updated_at": time.Now()},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to delete bag: %w", err)
	}

	return nil
}

func (m *MongoRepository) Purchase(ctx context.Context, sessionID string) (*domain.Purchase, error) {
	doc, err := m.find(ctx, sessionID, "purchase")
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return doc.Purchase, nil
}

func (m *MongoRepository) SetPurchase(ctx context.Context, sessionID string, purchase domain.Purchase) error {
	filter := bson.M{"session_id": sessionID}
	update := bson.M{
		"$set": bson.M{
			"purchase":   purchase,
			"updated_at": time.Now(),
		},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save purchase: %w", err)
	}

	return nil
}

// CreateIndexes makes session_id unique and expires sessions idle for longer
// than lifetime.
func (m *MongoRepository) CreateIndexes(ctx context.Context, lifetime time.Duration) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(lifetime.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
