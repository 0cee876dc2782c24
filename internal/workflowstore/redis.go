package workflowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowforge/dagflow/pkg/types"
)

const (
	workflowKeyPrefix = "workflow_def:"
	workflowListKey   = "workflow_defs"
)

// RedisStore implements WorkflowStore using Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed workflow store.
func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient creates a store using an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) workflowKey(id string) string {
	return workflowKeyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, workflow *types.Workflow) (*Record, error) {
	if err := workflow.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.client.Exists(ctx, s.workflowKey(workflow.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("check exists: %w", err)
	}
	if exists > 0 {
		return nil, ErrWorkflowExists
	}

	now := time.Now().UTC()
	rec := &Record{Workflow: *workflow, CreatedAt: now, UpdatedAt: now}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.workflowKey(workflow.ID), data, 0)
	pipe.SAdd(ctx, workflowListKey, workflow.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}

	return rec, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.client.Get(ctx, s.workflowKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal workflow: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Update(ctx context.Context, workflow *types.Workflow) (*Record, error) {
	if err := workflow.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	rec := &Record{Workflow: *workflow, CreatedAt: existing.CreatedAt, UpdatedAt: time.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow: %w", err)
	}

	if err := s.client.Set(ctx, s.workflowKey(workflow.ID), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	exists, err := s.client.Exists(ctx, s.workflowKey(id)).Result()
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists == 0 {
		return ErrWorkflowNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.workflowKey(id))
	pipe.SRem(ctx, workflowListKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, opts *ListOptions) ([]*Record, error) {
	if opts == nil {
		opts = &ListOptions{}
	}

	ids, err := s.client.SMembers(ctx, workflowListKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list workflow ids: %w", err)
	}

	var out []*Record
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err == ErrWorkflowNotFound {
			s.client.SRem(ctx, workflowListKey, id)
			continue
		}
		if err != nil {
			continue
		}
		out = append(out, rec)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []*Record{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
