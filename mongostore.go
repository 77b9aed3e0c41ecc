package citadelcbt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	quizzesCollection = "quizzes"
	adminsCollection  = "admins"
)

// MongoStore keeps quizzes as single documents with their questions embedded
type MongoStore struct {
	client  *mongo.Client
	quizzes *mongo.Collection
	admins  *mongo.Collection
}

type quizDocument struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	Title      string        `bson:"title"`
	Subject    string        `bson:"subject"`
	Level      string        `bson:"level"`
	Department string        `bson:"department,omitempty"`
	Topic      string        `bson:"topic"`
	Questions  []Question    `bson:"questions"`
	CreatedAt  time.Time     `bson:"createdAt"`
}

type adminDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Username  string        `bson:"username"`
	Name      string        `bson:"name"`
	AddedBy   string        `bson:"addedBy"`
	CreatedAt time.Time     `bson:"createdAt"`
}

// OpenMongoStore connects to uri and uses the named database
func OpenMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	log.Printf("Connected to MongoDB database: %s", database)

	return &MongoStore{
		client:  client,
		quizzes: db.Collection(quizzesCollection),
		admins:  db.Collection(adminsCollection),
	}, nil
}

// Close disconnects the client
func (ms *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

func toQuizDocument(quiz *Quiz) quizDocument {
	questions := quiz.Questions
	if questions == nil {
		questions = []Question{}
	}
	return quizDocument{
		Title:      quiz.Title,
		Subject:    quiz.Subject,
		Level:      string(quiz.Level),
		Department: string(quiz.Department),
		Topic:      quiz.Topic,
		Questions:  questions,
		CreatedAt:  quiz.CreatedAt,
	}
}

func (d quizDocument) toQuiz() Quiz {
	questions := d.Questions
	if questions == nil {
		questions = []Question{}
	}
	return Quiz{
		ID:         d.ID.Hex(),
		Title:      d.Title,
		Subject:    d.Subject,
		Level:      Level(d.Level),
		Department: Department(d.Department),
		Topic:      d.Topic,
		Questions:  questions,
		CreatedAt:  d.CreatedAt,
	}
}

// SaveQuiz inserts the quiz document and returns its ObjectID as hex
func (ms *MongoStore) SaveQuiz(ctx context.Context, quiz *Quiz) (string, error) {
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now()
	}
	result, err := ms.quizzes.InsertOne(ctx, toQuizDocument(quiz))
	if err != nil {
		return "", fmt.Errorf("failed to create quiz: %w", err)
	}
	id, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	quiz.ID = id.Hex()
	return quiz.ID, nil
}

// GetQuiz fetches one quiz by hex ID
func (ms *MongoStore) GetQuiz(ctx context.Context, id string) (*Quiz, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}

	var doc quizDocument
	if err := ms.quizzes.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	quiz := doc.toQuiz()
	return &quiz, nil
}

// ListQuizzes returns all quizzes, newest first
func (ms *MongoStore) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := ms.quizzes.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get quizzes: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []quizDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode quizzes: %w", err)
	}

	quizzes := make([]Quiz, 0, len(docs))
	for _, doc := range docs {
		quizzes = append(quizzes, doc.toQuiz())
	}
	return quizzes, nil
}

// DeleteQuiz removes a quiz document
func (ms *MongoStore) DeleteQuiz(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	result, err := ms.quizzes.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveAdmin inserts a registry entry
func (ms *MongoStore) SaveAdmin(ctx context.Context, admin *AdminUser) (string, error) {
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now()
	}
	result, err := ms.admins.InsertOne(ctx, adminDocument{
		Username:  admin.Username,
		Name:      admin.Name,
		AddedBy:   admin.AddedBy,
		CreatedAt: admin.CreatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create admin: %w", err)
	}
	id, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	admin.ID = id.Hex()
	return admin.ID, nil
}

// ListAdmins returns the registry, newest first
func (ms *MongoStore) ListAdmins(ctx context.Context) ([]AdminUser, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := ms.admins.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get admins: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []adminDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode admins: %w", err)
	}

	admins := make([]AdminUser, 0, len(docs))
	for _, doc := range docs {
		admins = append(admins, doc.toAdmin())
	}
	return admins, nil
}

// FindAdmin looks up a registry entry by username, ignoring case
func (ms *MongoStore) FindAdmin(ctx context.Context, username string) (*AdminUser, error) {
	opts := options.FindOne().SetCollation(&options.Collation{Locale: "en", Strength: 2})
	var doc adminDocument
	err := ms.admins.FindOne(ctx, bson.M{"username": strings.TrimSpace(username)}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("admin %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	admin := doc.toAdmin()
	return &admin, nil
}

// DeleteAdmin removes a registry entry
func (ms *MongoStore) DeleteAdmin(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("admin %s: %w", id, ErrNotFound)
	}
	result, err := ms.admins.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete admin: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("admin %s: %w", id, ErrNotFound)
	}
	return nil
}

func (d adminDocument) toAdmin() AdminUser {
	return AdminUser{
		ID:        d.ID.Hex(),
		Username:  d.Username,
		Name:      d.Name,
		AddedBy:   d.AddedBy,
		CreatedAt: d.CreatedAt,
	}
}
