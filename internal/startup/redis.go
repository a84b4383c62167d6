package startup

import (
	"context"
	"os"
	"time"

	"github.com/chatverso/internal/logger"
	"github.com/chatverso/internal/storage"
	"github.com/chatverso/internal/storage/memory"
	redisstorage "github.com/chatverso/internal/storage/redis"
)

// OpenStore returns a redis-backed store when redisURL is set, otherwise an
// in-process one.
func OpenStore(redisURL string, cacheSize int, maxWait time.Duration) storage.Store {
	if redisURL == "" {
		logger.Info("store: in-memory (single instance)")
		return memory.New(cacheSize)
	}
	return ConnectRedisWithRetry(redisURL, maxWait, "store: ")
}

// ConnectRedisWithRetry connects with exponential backoff and exits the
// process once maxWait has passed. logPrefix is prepended to log lines.
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration, logPrefix string) *redisstorage.Client {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := redisstorage.New(ctx, redisURL)
		cancel()
		if err != nil {
			if time.Now().After(deadline) {
				logger.Errorf("%sredis (gave up after %v): %v", logPrefix, maxWait, err)
				os.Exit(1)
			}
			logger.Errorf("%sredis connect failed, retry in %v: %v", logPrefix, backoff, err)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		logger.Infof("%sredis connected", logPrefix)
		return client
	}
}
