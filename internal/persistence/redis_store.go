package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vitaly-z/Nayuki-web-published-code/internal/model"
)

const (
	latestKey           = "metrics:latest"
	recentKey           = "metrics:recent"
	defaultHistoryLimit = 1000
)

type MetricStore struct {
	client       *redis.Client
	historyLimit int
}

func NewMetricStore(addr, password string, db, historyLimit int) *MetricStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &MetricStore{client: client, historyLimit: historyLimit}
}

func (s *MetricStore) Check(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *MetricStore) Stop() error {
	return s.client.Close()
}

func (s *MetricStore) Save(ctx context.Context, m model.Sample) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metric: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, latestKey, payload, time.Hour)
	pipe.LPush(ctx, recentKey, payload)
	pipe.LTrim(ctx, recentKey, 0, int64(s.historyLimit-1))
	if m.DeviceID != "" {
		pipe.Set(ctx, latestKey+":"+m.DeviceID, payload, time.Hour)
	}

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis exec: %w", err)
	}

	return nil
}

func (s *MetricStore) FetchLatest(ctx context.Context, deviceID string) (*model.Sample, error) {
	key := latestKey
	if deviceID != "" {
		key = latestKey + ":" + deviceID
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var m model.Sample
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metric: %w", err)
	}

	return &m, nil
}

// FetchRecent returns up to limit of the most recently saved samples, oldest
// first, so the result can be fed straight into a sliding window.
func (s *MetricStore) FetchRecent(ctx context.Context, limit int) ([]model.Sample, error) {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}

	items, err := s.client.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	samples := make([]model.Sample, len(items))
	for i, item := range items {
		// LPUSH stores newest first
		if err := json.Unmarshal([]byte(item), &samples[len(items)-1-i]); err != nil {
			return nil, fmt.Errorf("unmarshal metric: %w", err)
		}
	}

	return samples, nil
}
