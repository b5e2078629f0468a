package preview

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dokstore/dokstore/pkg/logger"
)

// DefaultQueueKey is the Redis list previews are queued on.
const DefaultQueueKey = "dokstore:preview:jobs"

// RedisQueue is a Dispatcher backed by a Redis list (LPUSH/BRPOP), letting
// generation run in separate worker processes. Delivery is at-least-once:
// a worker that dies mid-job loses it, and regeneration covers the gap.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Dispatch(ctx context.Context, j Job) error {
	payload, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Run drains the queue with `workers` goroutines until ctx is canceled.
// Blocks; call in a goroutine (or as a worker binary's main loop).
func (q *RedisQueue) Run(ctx context.Context, g *Generator, workers int) {
	if workers <= 0 {
		workers = 2
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) {
						continue // poll timeout, queue empty
					}
					if ctx.Err() != nil {
						return
					}
					logger.Warnf("preview queue pop: %v", err)
					time.Sleep(time.Second)
					continue
				}
				// BRPop returns [key, value]
				var j Job
				if err := json.Unmarshal([]byte(res[1]), &j); err != nil {
					logger.Errorf("preview queue: bad job payload: %v", err)
					continue
				}
				if err := g.Generate(ctx, j.DocumentID, j.Force); err != nil {
					logger.Errorf("preview worker: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}
