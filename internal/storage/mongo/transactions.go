package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/storage"
)

// CreateTransaction persists a personal transaction.
func (s *MongoStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	if _, err := s.transactions.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves one of the user's transactions.
func (s *MongoStore) GetTransaction(ctx context.Context, userID, txID string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.transactions.FindOne(ctx, bson.M{"_id": txID, "userId": userID}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("transaction %s: %w", txID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

// ListTransactions returns the user's transactions, most recent first.
func (s *MongoStore) ListTransactions(ctx context.Context, userID string) ([]*models.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})
	cur, err := s.transactions.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	txns := []*models.Transaction{}
	if err := cur.All(ctx, &txns); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return txns, nil
}

// UpdateTransaction overwrites the mutable fields of a transaction.
func (s *MongoStore) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	res, err := s.transactions.UpdateOne(ctx,
		bson.M{"_id": t.ID, "userId": t.UserID},
		bson.M{"$set": bson.M{
			"type":        t.Type,
			"amount":      t.Amount,
			"description": t.Description,
			"date":        t.Date,
			"updatedAt":   t.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("transaction %s: %w", t.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteTransaction removes one of the user's transactions.
func (s *MongoStore) DeleteTransaction(ctx context.Context, userID, txID string) error {
	res, err := s.transactions.DeleteOne(ctx, bson.M{"_id": txID, "userId": userID})
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("transaction %s: %w", txID, storage.ErrNotFound)
	}
	return nil
}
