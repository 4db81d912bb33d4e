package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const usersCollection = "users"

// userDocument is the MongoDB representation of a user.
// The canonical external id is the hex form of _id.
type userDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	GoogleID  string        `bson:"google_id"`
	Email     string        `bson:"email"`
	Name      string        `bson:"name"`
	Picture   string        `bson:"picture,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
}

func (d *userDocument) toModel() *models.User {
	return &models.User{
		ID:        d.ID.Hex(),
		GoogleID:  d.GoogleID,
		Email:     d.Email,
		Name:      d.Name,
		Picture:   d.Picture,
		CreatedAt: d.CreatedAt,
	}
}

// MongoUserRepository stores users in a MongoDB collection
type MongoUserRepository struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongo connects to MongoDB and verifies the primary is reachable
func NewMongo(ctx context.Context, uri, database string) (*MongoUserRepository, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second).
		SetTimeout(30 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoUserRepository{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
	}, nil
}

// EnsureIndexes creates the unique indexes the directory relies on for
// conflict detection
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_google_id"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", mongoErr(err))
	}
	return nil
}

// Create inserts a new user document
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	doc := userDocument{
		ID:        bson.NewObjectID(),
		GoogleID:  user.GoogleID,
		Email:     user.Email,
		Name:      user.Name,
		Picture:   user.Picture,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to create user: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", mongoErr(err))
	}

	user.ID = doc.ID.Hex()
	user.CreatedAt = doc.CreatedAt
	return nil
}

// FindByID retrieves a user by its ObjectID hex string
func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("malformed user id: %w", apperrors.ErrUserNotFound)
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

// FindBySubjectID retrieves a user by Google subject ID
func (r *MongoUserRepository) FindBySubjectID(ctx context.Context, subjectID string) (*models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "google_id", Value: subjectID}})
}

// List returns up to limit users, oldest first
func (r *MongoUserRepository) List(ctx context.Context, limit int) ([]*models.User, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.users.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", mongoErr(err))
	}
	defer func() {
		_ = cursor.Close(context.Background())
	}()

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", mongoErr(err))
	}

	users := make([]*models.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toModel())
	}
	return users, nil
}

// Ping checks that the MongoDB primary is reachable
func (r *MongoUserRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (r *MongoUserRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDocument
	err := r.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", mongoErr(err))
	}
	return doc.toModel(), nil
}

func mongoErr(err error) error {
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return errors.Join(apperrors.ErrUpstreamUnavailable, err)
	}
	return upstream(err)
}
