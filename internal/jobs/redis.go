package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore keeps job history in Redis so several print servers can share
// one view. Records live in a hash keyed by job ID; a list holds the IDs
// newest first and is trimmed to the capacity.
type RedisStore struct {
	client   *backend.Client
	prefix   string
	capacity int64
}

type Option func(*RedisStore)

// WithPrefix sets the key prefix
func WithPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithCapacity sets how many records are kept
func WithCapacity(n int) Option {
	return func(s *RedisStore) {
		if n > 0 {
			s.capacity = int64(n)
		}
	}
}

// NewRedisStore connects to the Redis server at url (redis://host:port/db)
func NewRedisStore(url string, opts ...Option) (*RedisStore, error) {
	options, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStoreFromClient(backend.NewClient(options), opts...), nil
}

// NewRedisStoreFromClient creates a store from an existing client
func NewRedisStoreFromClient(client *backend.Client, opts ...Option) *RedisStore {
	s := &RedisStore{
		client:   client,
		prefix:   "kotprint:jobs:",
		capacity: 50,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) dataKey() string  { return s.prefix + "data" }
func (s *RedisStore) indexKey() string { return s.prefix + "index" }

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Add stores a record and trims the history
func (s *RedisStore) Add(ctx context.Context, job Record) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.HSet(ctx, s.dataKey(), job.ID, data)
		pipe.LPush(ctx, s.indexKey(), job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add job %s: %w", job.ID, err)
	}

	return s.trim(ctx)
}

func (s *RedisStore) trim(ctx context.Context) error {
	stale, err := s.client.LRange(ctx, s.indexKey(), s.capacity, -1).Result()
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.LTrim(ctx, s.indexKey(), 0, s.capacity-1)
		pipe.HDel(ctx, s.dataKey(), stale...)
		return nil
	})
	return err
}

// UpdateStatus updates the status of a job by ID. Unknown IDs are ignored.
func (s *RedisStore) UpdateStatus(ctx context.Context, jobID, status, errMsg string) error {
	data, err := s.client.HGet(ctx, s.dataKey(), jobID).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	var job Record
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("decode job %s: %w", jobID, err)
	}
	finish(&job, status, errMsg)

	updated, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.dataKey(), jobID, updated).Err()
}

// Entries returns the stored records, newest first
func (s *RedisStore) Entries(ctx context.Context) ([]Record, error) {
	ids, err := s.client.LRange(ctx, s.indexKey(), 0, s.capacity-1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	values, err := s.client.HMGet(ctx, s.dataKey(), ids...).Result()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var job Record
		if err := json.Unmarshal([]byte(str), &job); err != nil {
			continue
		}
		records = append(records, job)
	}
	return records, nil
}
