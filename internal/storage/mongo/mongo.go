// Package mongo provides a MongoDB-backed implementation of the storage.Store interface.
//
// Each group is one document holding its members and its whole ledger, so a
// ledger append is a single conditional update on the group's version.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
	"github.com/mmynk/spendwise/internal/storage"
)

// Ensure MongoStore implements storage.Store
var _ storage.Store = (*MongoStore)(nil)

const (
	usersCollection        = "users"
	groupsCollection       = "groups"
	transactionsCollection = "transactions"
	friendshipsCollection  = "friendships"
)

// MongoStore implements storage.Store using MongoDB.
type MongoStore struct {
	client       *mongo.Client
	users        *mongo.Collection
	groups       *mongo.Collection
	transactions *mongo.Collection
	friendships  *mongo.Collection
}

// New connects to uri, selects database and ensures indexes exist.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:       client,
		users:        db.Collection(usersCollection),
		groups:       db.Collection(groupsCollection),
		transactions: db.Collection(transactionsCollection),
		friendships:  db.Collection(friendshipsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.users, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.groups, mongo.IndexModel{Keys: bson.D{{Key: "members.userId", Value: 1}}}},
		{s.transactions, mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}}},
		{s.friendships, mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "friendId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes every collection. Used by tests.
func (s *MongoStore) Drop(ctx context.Context) error {
	return s.users.Database().Drop(ctx)
}

// CreateUser inserts a new user.
func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("user %s: %w", user.Email, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their ID.
func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id}, id)
}

// GetUserByEmail retrieves a user by their email address.
func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email}, email)
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M, key string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUsersByIDs returns a map of user ID to user; unknown IDs are omitted.
func (s *MongoStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users, err := s.findUsers(ctx, "_id", ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// GetUsersByEmails returns a map of email to user; unknown emails are omitted.
func (s *MongoStore) GetUsersByEmails(ctx context.Context, emails []string) (map[string]*models.User, error) {
	users, err := s.findUsers(ctx, "email", emails)
	if err != nil {
		return nil, err
	}
	byEmail := make(map[string]*models.User, len(users))
	for _, u := range users {
		byEmail[u.Email] = u
	}
	return byEmail, nil
}

func (s *MongoStore) findUsers(ctx context.Context, field string, values []string) ([]*models.User, error) {
	if len(values) == 0 {
		return nil, nil
	}
	cur, err := s.users.Find(ctx, bson.M{field: bson.M{"$in": values}})
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	var users []*models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

// UpdatePassword replaces the user's password hash.
func (s *MongoStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.updateUser(ctx, userID, bson.M{"passwordHash": passwordHash})
}

// UpdateAccountBalance sets the user's opening account balance.
func (s *MongoStore) UpdateAccountBalance(ctx context.Context, userID string, balance money.Amount) error {
	return s.updateUser(ctx, userID, bson.M{"accountBalance": balance})
}

func (s *MongoStore) updateUser(ctx context.Context, userID string, set bson.M) error {
	set["updatedAt"] = time.Now().UTC()
	res, err := s.users.UpdateByID(ctx, userID, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	return nil
}

// AddFriendship records the friendship in both directions.
func (s *MongoStore) AddFriendship(ctx context.Context, userID, friendID string) error {
	now := time.Now().UTC()
	docs := []any{
		models.Friendship{UserID: userID, FriendID: friendID, CreatedAt: now},
		models.Friendship{UserID: friendID, FriendID: userID, CreatedAt: now},
	}
	_, err := s.friendships.InsertMany(ctx, docs)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("friendship %s-%s: %w", userID, friendID, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert friendship: %w", err)
	}
	return nil
}

// AreFriends reports whether friendID is in userID's friend list.
func (s *MongoStore) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	n, err := s.friendships.CountDocuments(ctx, bson.M{"userId": userID, "friendId": friendID})
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return n > 0, nil
}

// ListFriends returns the user's friends ordered by name.
func (s *MongoStore) ListFriends(ctx context.Context, userID string) ([]*models.User, error) {
	cur, err := s.friendships.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	var links []models.Friendship
	if err := cur.All(ctx, &links); err != nil {
		return nil, fmt.Errorf("failed to decode friendships: %w", err)
	}

	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.FriendID
	}
	friends, err := s.findUsers(ctx, "_id", ids)
	if err != nil {
		return nil, err
	}
	if friends == nil {
		friends = []*models.User{}
	}
	sort.Slice(friends, func(i, j int) bool {
		if friends[i].Name != friends[j].Name {
			return friends[i].Name < friends[j].Name
		}
		return friends[i].Email < friends[j].Email
	})
	return friends, nil
}
