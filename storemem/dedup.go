package storemem

import (
	"context"
	"sync"
	"time"

	"github.com/jonatasporto/trinks-router/store/cache"
)

// DedupStore is an in-memory store.MessageDedupStore backed by the shared
// TTLCache, implementing the duplicate-webhook-delivery defense. A separate
// mutex makes the Get-then-Set test-and-set atomic across concurrent
// deliveries of the same message id, which TTLCache alone does not guarantee.
type DedupStore struct {
	mu   sync.Mutex
	seen *cache.TTLCache[string, struct{}]
}

func NewDedupStore() *DedupStore {
	return &DedupStore{seen: cache.New[string, struct{}](0, 0)}
}

func (s *DedupStore) SeenBefore(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen.Get(messageID); ok {
		return true, nil
	}
	s.seen.SetWithTTL(messageID, struct{}{}, ttl)
	return false, nil
}
