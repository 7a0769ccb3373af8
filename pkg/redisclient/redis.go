package redisclient

import (
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

// Connect builds a client from REDIS_URL, or falls back to REDIS_ADDR.
// Returns nil when neither is set; callers treat a nil client as
// "queue/pubsub disabled".
func Connect() *redis.Client {
	if url := os.Getenv("REDIS_URL"); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			log.Printf("invalid REDIS_URL, redis disabled: %v", err)
			return nil
		}
		return redis.NewClient(opts)
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
}
