package repository

import (
	"context"
	"fmt"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/infrastructure/repository/entity"
	"archie-core-shopify-sync/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoWebhookRepository archives webhook deliveries in MongoDB
type MongoWebhookRepository struct {
	webhooksCollection *mongo.Collection
}

// NewMongoWebhookRepository creates a new MongoDB webhook archive
func NewMongoWebhookRepository(db *mongo.Database) ports.WebhookEventRepository {
	return &MongoWebhookRepository{
		webhooksCollection: db.Collection("webhook_events"),
	}
}

// EnsureWebhookIndexes creates the shop/receivedAt lookup index
func EnsureWebhookIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("webhook_events").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "shop", Value: 1}, {Key: "receivedAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create webhook index: %w", err)
	}
	return nil
}

// LogWebhook logs a webhook event
func (r *MongoWebhookRepository) LogWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	doc := entity.MongoWebhookDocFromDomain(event)
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = time.Now().UTC()
	}

	_, err := r.webhooksCollection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}

	event.ID = doc.ID.Hex()
	return nil
}

// ListRecent returns the newest archived events for a shop
func (r *MongoWebhookRepository) ListRecent(ctx context.Context, shop string, limit int64) ([]*domain.WebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "receivedAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.webhooksCollection.Find(ctx, bson.M{"shop": shop}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*domain.WebhookEvent
	for cursor.Next(ctx) {
		var doc entity.MongoWebhookDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode webhook: %w", err)
		}
		events = append(events, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return events, nil
}
