package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/internradar/internal/model"
)

// Ensure RedisStore implements model.JobStore.
var _ model.JobStore = (*RedisStore)(nil)

// RedisStore keeps one JSON value per URL, a sorted set ordering URLs by
// discovery time, and a set of notified URLs. Entries never expire.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore uses keys under prefix (e.g. "internradar").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

type redisRecord struct {
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	Company      string    `json:"company,omitempty"`
	URL          string    `json:"url"`
	Description  string    `json:"description,omitempty"`
	Location     string    `json:"location,omitempty"`
	PostedDate   string    `json:"posted_date,omitempty"`
	DiscoveredAt time.Time `json:"discovered_date"`
}

func (s *RedisStore) jobKey(url string) string { return s.prefix + ":job:" + url }
func (s *RedisStore) discoveredKey() string    { return s.prefix + ":discovered" }
func (s *RedisStore) notifiedKey() string      { return s.prefix + ":notified" }

// InsertIfAbsent writes the record with SETNX. The discovery index is updated
// in the same transaction with ZADD NX, so a duplicate leaves both untouched.
func (s *RedisStore) InsertIfAbsent(ctx context.Context, job model.Job) (bool, error) {
	payload, err := json.Marshal(redisRecord{
		Source:       job.Source,
		Title:        job.Title,
		Company:      job.Company,
		URL:          job.URL,
		Description:  job.Description,
		Location:     job.Location,
		PostedDate:   job.PostedDate,
		DiscoveredAt: job.DiscoveredAt.UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", job.URL, err)
	}

	var setCmd *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setCmd = pipe.SetNX(ctx, s.jobKey(job.URL), payload, 0)
		pipe.ZAddNX(ctx, s.discoveredKey(), redis.Z{
			Score:  float64(job.DiscoveredAt.UnixMilli()),
			Member: job.URL,
		})
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", job.URL, err)
	}
	return setCmd.Val(), nil
}

// MarkNotified adds known URLs to the notified set; unknown ones are skipped.
func (s *RedisStore) MarkNotified(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	exists := make([]*redis.IntCmd, len(urls))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, u := range urls {
			exists[i] = pipe.Exists(ctx, s.jobKey(u))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("checking %d entries: %w", len(urls), err)
	}

	members := make([]any, 0, len(urls))
	for i, u := range urls {
		if exists[i].Val() > 0 {
			members = append(members, u)
		}
	}
	if len(members) == 0 {
		return nil
	}
	if err := s.client.SAdd(ctx, s.notifiedKey(), members...).Err(); err != nil {
		return fmt.Errorf("marking %d entries notified: %w", len(members), err)
	}
	return nil
}

// ListUnnotified walks the discovery index oldest first.
func (s *RedisStore) ListUnnotified(ctx context.Context, limit int) ([]model.Job, error) {
	urls, err := s.client.ZRange(ctx, s.discoveredKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading discovery index: %w", err)
	}
	if len(urls) == 0 {
		return nil, nil
	}

	notified := make([]*redis.BoolCmd, len(urls))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, u := range urls {
			notified[i] = pipe.SIsMember(ctx, s.notifiedKey(), u)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading notified set: %w", err)
	}

	var keys []string
	for i, u := range urls {
		if notified[i].Val() {
			continue
		}
		keys = append(keys, s.jobKey(u))
		if limit > 0 && len(keys) == limit {
			break
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading %d entries: %w", len(keys), err)
	}

	jobs := make([]model.Job, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec redisRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", keys[i], err)
		}
		jobs = append(jobs, model.Job{
			Source:       rec.Source,
			Title:        rec.Title,
			Company:      rec.Company,
			URL:          rec.URL,
			Description:  rec.Description,
			Location:     rec.Location,
			PostedDate:   rec.PostedDate,
			DiscoveredAt: rec.DiscoveredAt,
		})
	}
	return jobs, nil
}

// Close closes the client connection pool.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
