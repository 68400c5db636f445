package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

// SetRedisDB installs a client (and its lock client). Passing nil disables redis.
func SetRedisDB(client *redis.Client) {
	rdb = client
	if client == nil {
		locker = nil
		return
	}
	locker = redislock.New(client)
}

// GetRedisObject decodes the JSON value at key into dest.
// It reports false without error when redis is disabled or the key is missing.
func GetRedisObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func SetRedisObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, objInByte, exp).Err()
}

func RemoveRedisKey(ctx context.Context, keys ...string) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.Del(ctx, keys...).Result()
	return err
}

// ConnectRedisWithRetry connects and sets the global Redis client + lock client.
// It gives up after maxAttempts (0 = retry forever) and leaves redis disabled.
func ConnectRedisWithRetry(maxAttempts int) {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
		log.Printf("REDIS_ADDRESS not set; defaulting to %s", redisAddr)
	}

	ctx := context.Background()
	var attempt int
	for {
		attempt++
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0, // use default DB
			PoolSize: 20,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			SetRedisDB(client)
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, redisAddr)
			return
		}
		_ = client.Close()
		if maxAttempts > 0 && attempt >= maxAttempts {
			log.Printf("redis unavailable after %d attempts (addr=%s): %v; continuing without redis", attempt, redisAddr, err)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, redisAddr, err, sleep)
		time.Sleep(sleep)
	}
}
