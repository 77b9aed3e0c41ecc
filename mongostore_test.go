package citadelcbt

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestQuizDocumentBSON(t *testing.T) {
	quiz := sampleQuiz(2)
	quiz.Level = LevelSSS
	quiz.Department = DepartmentArts
	quiz.CreatedAt = time.Now().Truncate(time.Millisecond)

	doc := toQuizDocument(&quiz)
	doc.ID = bson.NewObjectID()

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var decoded quizDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	got := decoded.toQuiz()
	assert.Equal(t, doc.ID.Hex(), got.ID)
	assert.Equal(t, quiz.Questions, got.Questions)
	assert.Equal(t, DepartmentArts, got.Department)
	assert.WithinDuration(t, quiz.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestQuizDocumentEmptyQuestions(t *testing.T) {
	doc := toQuizDocument(&Quiz{Title: "Empty"})
	assert.NotNil(t, doc.Questions)
	assert.NotNil(t, quizDocument{}.toQuiz().Questions)
}

func TestMongoStoreRejectsBadIDs(t *testing.T) {
	store := &MongoStore{}
	ctx := context.Background()

	_, err := store.GetQuiz(ctx, "not-an-object-id")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteQuiz(ctx, "not-an-object-id"), ErrNotFound)
	assert.ErrorIs(t, store.DeleteAdmin(ctx, "not-an-object-id"), ErrNotFound)
}

// Runs against a live server when MONGO_TEST_URI is set
func TestMongoStoreIntegration(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()

	store, err := OpenMongoStore(ctx, uri, "citadel_test_"+bson.NewObjectID().Hex())
	require.NoError(t, err)
	t.Cleanup(func() {
		store.quizzes.Database().Drop(context.Background())
		store.Close()
	})

	older := sampleQuiz(2)
	older.CreatedAt = time.Now().Add(-time.Hour)
	_, err = store.SaveQuiz(ctx, &older)
	require.NoError(t, err)

	newer := sampleQuiz(3)
	newer.Topic = "Decimals"
	id, err := store.SaveQuiz(ctx, &newer)
	require.NoError(t, err)

	quizzes, err := store.ListQuizzes(ctx)
	require.NoError(t, err)
	require.Len(t, quizzes, 2)
	assert.Equal(t, "Decimals", quizzes[0].Topic)

	got, err := store.GetQuiz(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got.Questions, 3)

	require.NoError(t, store.DeleteQuiz(ctx, id))
	assert.ErrorIs(t, store.DeleteQuiz(ctx, id), ErrNotFound)

	_, err = store.SaveAdmin(ctx, &AdminUser{Username: "Teacher1", Name: "Mr Bello", AddedBy: "director"})
	require.NoError(t, err)
	admin, err := store.FindAdmin(ctx, "teacher1")
	require.NoError(t, err)
	assert.Equal(t, "Teacher1", admin.Username)
}

func TestQuestionBSONFieldNames(t *testing.T) {
	raw, err := bson.Marshal(Question{ID: "q1", Text: "?", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 2})
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "correctAnswerIndex")
	assert.NotContains(t, doc, "correct_answer")
}

func TestOpenStoreBadMongoURIReturnsNilStore(t *testing.T) {
	store, err := OpenStore(context.Background(), &Config{StorageDriver: StorageMongo, MongoURI: "not-a-mongo-uri", MongoDatabase: "x"}, nil)
	require.Error(t, err)
	assert.True(t, store == nil, "expected a nil Store interface")
}
