package execstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowforge/dagflow/internal/metrics"
	"github.com/flowforge/dagflow/pkg/types"
)

// RedisConfig configures the Redis-backed StateStore, grounded on the
// teacher's runstore.RedisConfig shape.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	Prefix   string

	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns sensible connection defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		URL:          "redis://localhost:6379/0",
		Prefix:       "dagflow",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisStore implements StateStore over Redis, keyed as spec.md §6
// describes, each key under the configured prefix:
// <prefix>:workflow_execution:<id>, running_executions,
// workflow_history:<workflowId>, workflow_logs:<date>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore dials Redis and verifies connectivity with a Ping,
// matching the teacher's NewRedisStore fail-fast behavior so callers
// (cmd/flowengine) can fall back to MemoryStore on error.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	opts := &redis.Options{
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Password:     cfg.Password,
		DB:           cfg.DB,
	}

	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts.Addr = parsed.Addr
		if parsed.Password != "" && cfg.Password == "" {
			opts.Password = parsed.Password
		}
		if parsed.DB != 0 && cfg.DB == 0 {
			opts.DB = parsed.DB
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "dagflow"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) keyExecution(id string) string {
	return fmt.Sprintf("%s:workflow_execution:%s", s.prefix, id)
}

func (s *RedisStore) keyRunning() string {
	return fmt.Sprintf("%s:running_executions", s.prefix)
}

func (s *RedisStore) keyHistory(workflowID string) string {
	return fmt.Sprintf("%s:workflow_history:%s", s.prefix, workflowID)
}

func (s *RedisStore) keyLogs(date string) string {
	return fmt.Sprintf("%s:workflow_logs:%s", s.prefix, date)
}

func (s *RedisStore) SaveExecution(ctx context.Context, exec *types.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		recordOp("save_execution", err)
		return fmt.Errorf("marshal execution: %w", err)
	}
	err = s.client.Set(ctx, s.keyExecution(exec.ID), data, ExecutionTTL).Err()
	recordOp("save_execution", err)
	return err
}

func (s *RedisStore) GetExecution(ctx context.Context, id string) (*types.Execution, error) {
	data, err := s.client.Get(ctx, s.keyExecution(id)).Bytes()
	if err == redis.Nil {
		recordOp("get_execution", ErrExecutionNotFound)
		return nil, ErrExecutionNotFound
	}
	if err != nil {
		recordOp("get_execution", err)
		return nil, fmt.Errorf("get execution: %w", err)
	}
	var exec types.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		recordOp("get_execution", err)
		return nil, fmt.Errorf("unmarshal execution: %w", err)
	}
	recordOp("get_execution", nil)
	return &exec, nil
}

// recordOp reports a StateStore operation's outcome to Prometheus.
func recordOp(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.StateStoreOperations.WithLabelValues(operation, result).Inc()
}

func (s *RedisStore) AddToRunning(ctx context.Context, id string) error {
	return s.client.SAdd(ctx, s.keyRunning(), id).Err()
}

func (s *RedisStore) RemoveFromRunning(ctx context.Context, id string) error {
	return s.client.SRem(ctx, s.keyRunning(), id).Err()
}

func (s *RedisStore) ListRunning(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.keyRunning()).Result()
}

func (s *RedisStore) AppendHistory(ctx context.Context, workflowID string, exec *types.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	key := s.keyHistory(workflowID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, HistoryLimit-1)
	pipe.Expire(ctx, key, HistoryTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ListHistory(ctx context.Context, workflowID string) ([]*types.Execution, error) {
	raw, err := s.client.LRange(ctx, s.keyHistory(workflowID), 0, HistoryLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	out := make([]*types.Execution, 0, len(raw))
	for _, item := range raw {
		var exec types.Execution
		if err := json.Unmarshal([]byte(item), &exec); err != nil {
			continue
		}
		out = append(out, &exec)
	}
	return out, nil
}

func (s *RedisStore) AppendLog(ctx context.Context, date string, entry types.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	key := s.keyLogs(date)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, LogTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Cancel(ctx context.Context, id string) (*types.Execution, error) {
	exec, err := s.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := exec.Cancel(time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.SaveExecution(ctx, exec); err != nil {
		return nil, err
	}
	if exec.IsTerminal() {
		_ = s.RemoveFromRunning(ctx, id)
	}
	return exec, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
