package citadelcbt

import (
	"context"
	"math/rand"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionSizes(t *testing.T) {
	testCases := []struct {
		name      string
		available int
		requested int
		expected  int
	}{
		{"subset", 50, 20, 20},
		{"exact", 20, 20, 20},
		{"clamped", 15, 20, 15},
		{"zero means all", 12, 0, 12},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			session := NewSession(sampleQuiz(tc.available), tc.requested, rand.New(rand.NewSource(1)))
			snap := session.Snapshot()

			assert.Equal(t, tc.expected, snap.Total)
			assert.Len(t, snap.Answers, tc.expected)
			assert.Equal(t, tc.expected*SecondsPerQuestion, snap.Remaining)
			assert.Equal(t, 0, snap.Current)
			assert.Equal(t, 0, snap.Answered)
			assert.Equal(t, SessionActive, snap.State)
			for _, a := range snap.Answers {
				assert.Equal(t, Unanswered, a)
			}
		})
	}
}

func TestNewSessionDrawsDistinctQuestions(t *testing.T) {
	quiz := sampleQuiz(30)
	session := NewSession(quiz, 10, rand.New(rand.NewSource(7)))

	seen := make(map[string]bool)
	for _, q := range session.Questions() {
		assert.False(t, seen[q.ID], "question %s drawn twice", q.ID)
		seen[q.ID] = true
	}
	assert.Len(t, seen, 10)
	// Source quiz untouched
	assert.Equal(t, "q-0", quiz.Questions[0].ID)
}

func TestShuffleQuestionsIsPermutation(t *testing.T) {
	quiz := sampleQuiz(25)
	shuffled := ShuffleQuestions(quiz.Questions, rand.New(rand.NewSource(42)))
	require.Len(t, shuffled, 25)

	ids := make([]string, 0, len(shuffled))
	for _, q := range shuffled {
		ids = append(ids, q.ID)
	}
	original := make([]string, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		original = append(original, q.ID)
	}
	sort.Strings(ids)
	sort.Strings(original)
	assert.Equal(t, original, ids)
}

func TestShuffleQuestionsUniform(t *testing.T) {
	quiz := sampleQuiz(4)
	rng := rand.New(rand.NewSource(99))
	const trials = 24000

	// Every question should land first roughly a quarter of the time
	counts := make(map[string]int)
	for i := 0; i < trials; i++ {
		counts[ShuffleQuestions(quiz.Questions, rng)[0].ID]++
	}
	require.Len(t, counts, 4)
	for id, c := range counts {
		assert.InDelta(t, trials/4, c, trials/20, "question %s first %d times", id, c)
	}
}

func TestSessionNavigationClamps(t *testing.T) {
	session := NewSession(sampleQuiz(3), 0, rand.New(rand.NewSource(1)))

	session.Retreat()
	assert.Equal(t, 0, session.Current())

	session.Advance()
	session.Advance()
	session.Advance()
	assert.Equal(t, 2, session.Current())

	require.NoError(t, session.JumpTo(1))
	assert.Equal(t, 1, session.Current())

	assert.ErrorIs(t, session.JumpTo(3), ErrValidation)
	assert.ErrorIs(t, session.JumpTo(-1), ErrValidation)
	assert.Equal(t, 1, session.Current())
}

func TestSessionSelectOverwrites(t *testing.T) {
	session := NewSession(sampleQuiz(3), 0, rand.New(rand.NewSource(1)))

	require.NoError(t, session.Select(0, 2))
	require.NoError(t, session.Select(0, 3))
	assert.Equal(t, 3, session.Answers()[0])
	assert.Equal(t, 1, session.Answered())

	assert.ErrorIs(t, session.Select(0, 4), ErrValidation)
	assert.ErrorIs(t, session.Select(5, 0), ErrValidation)
	assert.Equal(t, 3, session.Answers()[0])
}

func TestSessionSubmitScoresOnce(t *testing.T) {
	var finished int32
	session := NewSession(sampleQuiz(5), 0, rand.New(rand.NewSource(3)), WithOnFinish(func(ReviewRecord) {
		atomic.AddInt32(&finished, 1)
	}))

	questions := session.Questions()
	for i, q := range questions {
		require.NoError(t, session.Select(i, q.CorrectAnswer))
	}

	record, err := session.Submit()
	require.NoError(t, err)
	assert.Equal(t, 5, record.Score)
	assert.Equal(t, SessionSubmitted, session.State())

	again, err := session.Submit()
	require.NoError(t, err)
	assert.Equal(t, record, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))

	// Answers are frozen after submission
	require.NoError(t, session.Select(0, (questions[0].CorrectAnswer+1)%4))
	stored, ok := session.Record()
	require.True(t, ok)
	assert.Equal(t, 5, stored.Score)

	select {
	case <-session.Done():
	default:
		t.Fatal("expected Done to be closed after submit")
	}
}

func TestSessionTimesOutAtZero(t *testing.T) {
	var finished int32
	session := NewSession(sampleQuiz(1), 0, rand.New(rand.NewSource(1)), WithOnFinish(func(ReviewRecord) {
		atomic.AddInt32(&finished, 1)
	}))
	require.NoError(t, session.Select(0, 0))

	for i := 0; i < SecondsPerQuestion-1; i++ {
		session.Tick()
	}
	assert.Equal(t, 1, session.Remaining())
	assert.Equal(t, SessionActive, session.State())

	session.Tick()
	snap := session.Snapshot()
	assert.Equal(t, 0, snap.Remaining)
	assert.Equal(t, SessionSubmitted, snap.State)
	assert.True(t, snap.TimedOut)

	// Further ticks do nothing
	session.Tick()
	assert.Equal(t, 0, session.Remaining())
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))

	record, ok := session.Record()
	require.True(t, ok)
	assert.Equal(t, 1, record.Score)
}

func TestSessionCancel(t *testing.T) {
	var finished int32
	session := NewSession(sampleQuiz(2), 0, rand.New(rand.NewSource(1)), WithOnFinish(func(ReviewRecord) {
		atomic.AddInt32(&finished, 1)
	}))

	session.Cancel()
	assert.Equal(t, SessionCancelled, session.State())

	before := session.Remaining()
	session.Tick()
	assert.Equal(t, before, session.Remaining())

	_, ok := session.Record()
	assert.False(t, ok)

	_, err := session.Submit()
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, int32(0), atomic.LoadInt32(&finished))
}

func TestSessionCancelStopsRunningClock(t *testing.T) {
	session := NewSession(sampleQuiz(2), 0, rand.New(rand.NewSource(1)), WithTickInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session.Start(ctx)

	assert.Eventually(t, func() bool {
		return session.Remaining() < 2*SecondsPerQuestion
	}, 2*time.Second, time.Millisecond)

	session.Cancel()
	select {
	case <-session.Done():
	default:
		t.Fatal("session still running after cancel")
	}

	frozen := session.Remaining()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, session.Remaining())
	assert.Equal(t, SessionCancelled, session.State())
}

func TestSessionQuestionsIsACopy(t *testing.T) {
	session := NewSession(sampleQuiz(3), 0, rand.New(rand.NewSource(1)))

	questions := session.Questions()
	original := questions[0].Text
	questions[0].Text = "changed"

	assert.Equal(t, original, session.Questions()[0].Text)
	assert.Equal(t, original, session.Snapshot().Question.Text)
}

func TestSessionStartCountsDown(t *testing.T) {
	session := NewSession(sampleQuiz(1), 0, rand.New(rand.NewSource(1)), WithTickInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session.Start(ctx)
	session.Start(ctx)

	select {
	case <-session.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not time out")
	}

	snap := session.Snapshot()
	assert.Equal(t, SessionSubmitted, snap.State)
	assert.True(t, snap.TimedOut)
	assert.Equal(t, 0, snap.Remaining)
}

func TestSessionStopsWithContext(t *testing.T) {
	session := NewSession(sampleQuiz(2), 0, rand.New(rand.NewSource(1)), WithTickInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	session.Start(ctx)
	cancel()

	assert.Equal(t, SessionActive, session.State())
	assert.Equal(t, 2*SecondsPerQuestion, session.Remaining())
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "20:00", FormatClock(1200))
	assert.Equal(t, "0:59", FormatClock(59))
	assert.Equal(t, "1:05", FormatClock(65))
	assert.Equal(t, "0:00", FormatClock(-3))
}
