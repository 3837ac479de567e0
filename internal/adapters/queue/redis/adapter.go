package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docpipe.ingest/internal/core/ports"
)

const (
	jobEventsKeyPrefix = "docpipe:job:"
	frameField         = "frame"
	// Job event history is kept this long after the last publish.
	eventsTTL    = time.Hour
	maxStreamLen = 10000
	readBlock    = time.Second
)

// RedisAdapter is a JobEventBus backed by one Redis stream per job, so a
// subscriber replays history and then follows new frames from the same
// cursor.
type RedisAdapter struct {
	client *redis.Client
}

var _ ports.JobEventBus = (*RedisAdapter)(nil)

func NewRedisAdapter(url string) (*RedisAdapter, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	return &RedisAdapter{client: client}, client, nil
}

func streamKey(jobID string) string {
	return jobEventsKeyPrefix + jobID + ":events"
}

func (r *RedisAdapter) Publish(ctx context.Context, jobID string, frame []byte) error {
	key := streamKey(jobID)
	pipe := r.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{frameField: frame},
	})
	pipe.Expire(ctx, key, eventsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}
	return nil
}

func (r *RedisAdapter) Subscribe(ctx context.Context, jobID string) (<-chan []byte, error) {
	key := streamKey(jobID)
	if err := r.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	ch := make(chan []byte, 16)

	go func() {
		defer close(ch)
		lastID := "0"

		for {
			if ctx.Err() != nil {
				return
			}

			res, err := r.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   100,
				Block:   readBlock,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				time.Sleep(readBlock)
				continue
			}

			for _, stream := range res {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					frame, ok := msg.Values[frameField].(string)
					if !ok {
						continue
					}
					select {
					case ch <- []byte(frame):
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch, nil
}
