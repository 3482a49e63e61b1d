package idempotent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/errs"
	gocache "github.com/patrickmn/go-cache"
)

var _ Service = (*LocalIdempotencyService)(nil)

// LocalIdempotencyService 进程内实现，单节点部署和单元测试使用
type LocalIdempotencyService struct {
	// mu 只保护单个键上的检查并占用，临界区内没有慢操作
	mu         sync.Mutex
	entries    *gocache.Cache
	pendingTTL time.Duration
	recordTTL  time.Duration
}

func NewLocalIdempotencyService(recordTTL, pendingTTL time.Duration) *LocalIdempotencyService {
	const cleanupFactor = 2
	return &LocalIdempotencyService{
		entries:    gocache.New(recordTTL, recordTTL*cleanupFactor),
		pendingTTL: pendingTTL,
		recordTTL:  recordTTL,
	}
}

func (s *LocalIdempotencyService) Admit(_ context.Context, key string) (Decision, error) {
	if key == "" {
		return Decision{}, fmt.Errorf("%w: 幂等键为空", errs.ErrInvalidParameter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.entries.Get(key)
	if !ok {
		s.entries.Set(key, pendingMark, s.pendingTTL)
		return Decision{Status: StatusProceed}, nil
	}
	if v == pendingMark {
		return Decision{Status: StatusPending}, nil
	}
	outcome := v.(domain.Outcome)
	return Decision{Status: StatusProcessed, Outcome: &outcome}, nil
}

func (s *LocalIdempotencyService) Record(_ context.Context, key string, outcome domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Set(key, outcome, s.recordTTL)
	return nil
}

func (s *LocalIdempotencyService) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.entries.Get(key); ok && v == pendingMark {
		s.entries.Delete(key)
	}
	return nil
}
