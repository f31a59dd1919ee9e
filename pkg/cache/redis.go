package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	redis "github.com/go-redis/redis/v8"
)

type RedisCache struct {
	cacheConfig CacheConfig
	Client      *redis.Client
}

func NewRedisCache(config CacheConfig) (Cache, error) {
	config.DefaultTTL = config.DefaultTTL * time.Second
	log.Debugf("cache config: %+v", log.MaskSensitiveData(config))

	c := &RedisCache{
		cacheConfig: config,
		Client: redis.NewClient(&redis.Options{
			Addr:               config.Addr,
			Password:           config.Password,
			DB:                 config.DB,
			MaxRetries:         config.MaxRetries,
			DialTimeout:        config.DialTimeout,
			ReadTimeout:        config.ReadTimeout,
			IdleTimeout:        config.IdleTimeout,
			IdleCheckFrequency: config.IdleCheckFrequency,
		}),
	}

	pong, err := c.Client.Ping(context.Background()).Result()
	log.Debugf("Redis ping : %v, err %v", pong, err)
	if err != nil {
		_ = c.Client.Close()
		return nil, fmt.Errorf("connecting to redis result backend at %s: %w", config.Addr, err)
	}
	return c, nil
}

func (c *RedisCache) Set(k string, v interface{}, ttl time.Duration) error {
	start := time.Now()
	defer func() {
		log.Debugf("time to set cache value: %d", time.Since(start).Milliseconds())
	}()

	if ttl == DefaultTTL {
		ttl = c.cacheConfig.DefaultTTL
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	err = c.Client.Set(context.Background(), c.cacheConfig.Prefix+k, data, ttl).Err()
	if err != nil {
		log.Errorf("Failed to cache value (key = %s) in redis: %v", k, err)
	}
	return err
}

func (c *RedisCache) Get(k string, v interface{}) bool {
	start := time.Now()
	defer func() {
		log.Debugf("time to get cache value: %d", time.Since(start).Milliseconds())
	}()

	data, err := c.Client.Get(context.Background(), c.cacheConfig.Prefix+k).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warnf("Failed to fetch value (key = %s) from redis: %v", k, err)
		}
		return false
	}
	err = json.Unmarshal([]byte(data), v)
	return err == nil
}

func (c *RedisCache) Delete(k string) {
	start := time.Now()
	defer func() {
		log.Debugf("time to delete cache value: %d", time.Since(start).Milliseconds())
	}()
	c.Client.Del(context.Background(), c.cacheConfig.Prefix+k)
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}
