package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/storage"
)

// CreateGroup inserts the group document.
func (s *MongoStore) CreateGroup(ctx context.Context, group *models.Group) error {
	// $push needs an array, not null.
	if group.Transactions == nil {
		group.Transactions = []models.GroupTransaction{}
	}
	for i := range group.Transactions {
		if group.Transactions[i].SplitDetails == nil {
			group.Transactions[i].SplitDetails = []models.SplitDetail{}
		}
	}

	_, err := s.groups.InsertOne(ctx, group)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// GetGroup loads the group document.
func (s *MongoStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var group models.Group
	err := s.groups.FindOne(ctx, bson.M{"_id": groupID}).Decode(&group)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &group, nil
}

// ListGroupsByMember returns the user's groups, newest first.
func (s *MongoStore) ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})

	cur, err := s.groups.Find(ctx, bson.M{"members.userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	var groups []*models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	return groups, nil
}

// AppendTransaction pushes tx onto the ledger and bumps the version in one
// atomic document update.
func (s *MongoStore) AppendTransaction(ctx context.Context, groupID string, tx *models.GroupTransaction) (int64, error) {
	entry := *tx
	if entry.SplitDetails == nil {
		entry.SplitDetails = []models.SplitDetail{}
	}

	var updated struct {
		Version int64 `bson:"version"`
	}
	err := s.groups.FindOneAndUpdate(ctx,
		bson.M{"_id": groupID},
		bson.M{
			"$push": bson.M{"transactions": entry},
			"$inc":  bson.M{"version": 1},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"version": 1}),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to append transaction: %w", err)
	}
	return updated.Version, nil
}

// MarkSharePaid flags a member's split detail paid using array filters.
func (s *MongoStore) MarkSharePaid(ctx context.Context, groupID string, expectedVersion int64, txID, memberID string, status models.TransactionStatus) (int64, error) {
	filter := bson.M{
		"_id":     groupID,
		"version": expectedVersion,
		"transactions": bson.M{"$elemMatch": bson.M{
			"id":                  txID,
			"splitDetails.member": memberID,
		}},
	}
	update := bson.M{
		"$set": bson.M{
			"transactions.$[t].splitDetails.$[d].paid": true,
			"transactions.$[t].status":                 status,
			"updatedAt":                                time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []any{bson.M{"t.id": txID}, bson.M{"d.member": memberID}},
	})

	res, err := s.groups.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to mark share paid: %w", err)
	}
	if res.MatchedCount == 0 {
		if err := s.missOrConflict(ctx, groupID, expectedVersion); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("share of %s on transaction %s: %w", memberID, txID, storage.ErrNotFound)
	}
	return expectedVersion + 1, nil
}

// missOrConflict explains why a versioned update matched nothing. It returns
// nil when the group exists at expectedVersion, meaning some other part of
// the filter missed.
func (s *MongoStore) missOrConflict(ctx context.Context, groupID string, expectedVersion int64) error {
	var current struct {
		Version int64 `bson:"version"`
	}
	err := s.groups.FindOne(ctx, bson.M{"_id": groupID},
		options.FindOne().SetProjection(bson.M{"version": 1}),
	).Decode(&current)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check group version: %w", err)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("group %s at version %d: %w", groupID, expectedVersion, storage.ErrConflict)
	}
	return nil
}
