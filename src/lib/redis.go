package lib

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// GetRedisClient returns the shared client, connecting on first use.
func GetRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if redisClient != nil {
		return redisClient, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	redisClient = rdb
	return rdb, nil
}

func NewRedisClient(c *redis.Client) {
	redisClient = c
}
