package cache

import (
	"encoding/json"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	local "github.com/jellydator/ttlcache/v3"
)

type LocalCache struct {
	cacheConfig CacheConfig
	Client      *local.Cache[string, any]
}

func NewLocalCache(config CacheConfig) (Cache, error) {
	log.Debugf("cache config: %+v", log.MaskSensitiveData(config))
	config.Expiration = config.Expiration * time.Second
	c := &LocalCache{
		cacheConfig: config,
		Client: local.New(
			local.WithTTL[string, any](config.Expiration),
		),
	}
	// evict expired results in the background
	go c.Client.Start()
	return c, nil
}

func (c *LocalCache) Set(k string, v interface{}, ttl time.Duration) error {
	// the library being used expects -1 for no ttl, and 0 for default
	switch ttl {
	case DefaultTTL:
		ttl = 0
	case NoTTL:
		ttl = -1
	default:
		// do nothing
	}
	// store the json form so Get behaves like the redis cache
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Client.Set(c.cacheConfig.Prefix+k, data, ttl)
	return nil
}

func (c *LocalCache) Get(k string, v interface{}) bool {
	obj := c.Client.Get(c.cacheConfig.Prefix + k)
	if obj == nil {
		return false
	}
	data, ok := obj.Value().([]byte)
	if !ok {
		return false
	}
	err := json.Unmarshal(data, v)
	if err != nil {
		log.Errorf("Failed to decode cached value (key = %s): %v", k, err)
	}
	return err == nil
}

func (c *LocalCache) Delete(k string) {
	c.Client.Delete(c.cacheConfig.Prefix + k)
}

func (c *LocalCache) Close() error {
	c.Client.Stop()
	return nil
}
