package citadelcbt

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftKey(t *testing.T) {
	assert.Equal(t, "citadel:draft:abc", draftKey("abc"))
}

func TestRedisDraftStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()

	store, err := NewRedisDraftStore(ctx, addr, "", 0, time.Minute)
	require.NoError(t, err)
	defer store.Close()

	quiz := sampleQuiz(3)
	id, err := store.Add(ctx, &Draft{Level: LevelSSS, Subject: "Physics", Topic: "Waves", Questions: quiz.Questions})
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Waves", got.Topic)
	assert.Equal(t, quiz.Questions, got.Questions)

	require.NoError(t, store.Remove(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenDraftStoreMemory(t *testing.T) {
	store, err := OpenDraftStore(context.Background(), &Config{DraftStore: DraftsMemory})
	require.NoError(t, err)
	assert.IsType(t, &DraftPool{}, store)

	_, err = OpenDraftStore(context.Background(), &Config{DraftStore: "etcd"})
	assert.Error(t, err)
}

func TestOpenDraftStoreUnreachableRedisReturnsNilStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	store, err := OpenDraftStore(ctx, &Config{DraftStore: DraftsRedis, RedisAddr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.True(t, store == nil, "expected a nil DraftStore interface")
}
