package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-tracker/backend/internal/cache"
	"task-tracker/backend/internal/models"

	"go.uber.org/zap"
)

const (
	taskListKey     = "tasks:all"
	DefaultCacheTTL = 5 * time.Minute
)

func taskKey(id int64) string {
	return fmt.Sprintf("task:%d", id)
}

// CachedTaskService serves reads from the cache and invalidates on every
// task mutation. Cache failures are logged and fall through to the store.
type CachedTaskService struct {
	next   TaskService
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedTaskService(next TaskService, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedTaskService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedTaskService{next: next, cache: c, ttl: ttl, logger: logger}
}

func (s *CachedTaskService) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.cache.Get(ctx, taskListKey, &tasks); err == nil {
		return tasks, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("⚠️  cache read failed", zap.String("key", taskListKey), zap.Error(err))
	}

	tasks, err := s.next.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, taskListKey, tasks)
	return tasks, nil
}

func (s *CachedTaskService) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	key := taskKey(id)

	var task models.Task
	if err := s.cache.Get(ctx, key, &task); err == nil {
		return &task, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("⚠️  cache read failed", zap.String("key", key), zap.Error(err))
	}

	found, err := s.next.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, found)
	return found, nil
}

func (s *CachedTaskService) CreateTask(ctx context.Context, patch models.TaskPatch) (int64, error) {
	id, err := s.next.CreateTask(ctx, patch)
	if id != 0 {
		s.invalidate(ctx, id)
	}
	return id, err
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) error {
	defer s.invalidate(ctx, id)
	return s.next.UpdateTask(ctx, id, patch)
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, id int64) error {
	defer s.invalidate(ctx, id)
	return s.next.DeleteTask(ctx, id)
}

func (s *CachedTaskService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("⚠️  cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CachedTaskService) invalidate(ctx context.Context, id int64) {
	for _, key := range []string{taskKey(id), taskListKey} {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("⚠️  cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}
