package citadelcbt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Draft is a generated question set waiting for an administrator to publish it
type Draft struct {
	ID        string     `json:"id"`
	Level     Level      `json:"level"`
	Subject   string     `json:"subject"`
	Topic     string     `json:"topic"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"created_at"`
}

// DraftStore holds unpublished drafts between the generate and publish steps
type DraftStore interface {
	Add(ctx context.Context, draft *Draft) (string, error)
	Get(ctx context.Context, id string) (*Draft, error)
	Remove(ctx context.Context, id string) error
}

// DraftPool keeps unpublished drafts in memory, dropping the oldest once it
// holds more than capacity entries
type DraftPool struct {
	mu       sync.RWMutex
	drafts   map[string]*Draft
	queue    []string // FIFO queue of draft IDs
	capacity int
}

// NewDraftPool creates a new draft pool
func NewDraftPool(capacity int) *DraftPool {
	if capacity <= 0 {
		capacity = 64
	}
	return &DraftPool{
		drafts:   make(map[string]*Draft),
		queue:    make([]string, 0),
		capacity: capacity,
	}
}

func newDraftID(draft *Draft) {
	draft.ID = uuid.NewString()
	draft.CreatedAt = time.Now()
}

// Add stores a draft and assigns it an ID
func (dp *DraftPool) Add(_ context.Context, draft *Draft) (string, error) {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	newDraftID(draft)
	dp.drafts[draft.ID] = draft
	dp.queue = append(dp.queue, draft.ID)

	for len(dp.queue) > dp.capacity {
		oldest := dp.queue[0]
		dp.queue = dp.queue[1:]
		delete(dp.drafts, oldest)
		VerboseLog("Evicted draft %s", oldest)
	}
	return draft.ID, nil
}

// Get looks up a draft without removing it
func (dp *DraftPool) Get(_ context.Context, id string) (*Draft, error) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	draft, ok := dp.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	return draft, nil
}

// Remove discards a draft. Removing an unknown draft is not an error.
func (dp *DraftPool) Remove(_ context.Context, id string) error {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	delete(dp.drafts, id)
	for i, queued := range dp.queue {
		if queued == id {
			dp.queue = append(dp.queue[:i], dp.queue[i+1:]...)
			break
		}
	}
	return nil
}

// Size returns the number of drafts in the pool
func (dp *DraftPool) Size() int {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return len(dp.queue)
}
