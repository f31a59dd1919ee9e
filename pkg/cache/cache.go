package cache

/*
 * cache is the result backend of the broker executor: workers Set a task's result under its
 * task id and the updater polls for it with Get. The local cache only works in process; the
 * redis cache is shared between cl-update-index and its workers.
 */

import (
	"fmt"
	"sort"
	"strings"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
)

func init() {
	Register(CACHE_LOCAL, NewLocalCache)
	Register(CACHE_REDIS, NewRedisCache)
}

const (
	CACHE_LOCAL = "local"
	CACHE_REDIS = "redis"

	DefaultTTL = time.Duration(-1)
	NoTTL      = time.Duration(0)
)

type CacheConfig struct {
	Type string `json:"type" yaml:"type"`

	// Prefix is prepended to every key
	Prefix string `json:"prefix,omitempty" yaml:"prefix"`

	// Expiration (local) and DefaultTTL (redis) are in seconds
	Expiration time.Duration `json:"expiration,omitempty" yaml:"expiration"`
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl"`

	/** redis cache params **/
	// host:port address.
	Addr string `json:"addr,omitempty" yaml:"addr"`
	// Optional password. Must match the password specified in the
	// requirepass server configuration option.
	Password string `json:"password,omitempty" yaml:"password" mask:"password"`
	// Database to be selected after connecting to the server.
	DB int `json:"db,omitempty" yaml:"db"`
	// Maximum number of retries before giving up.
	// Default is to not retry failed commands.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries"`
	// Dial timeout for establishing new connections.
	// Default is 5 seconds.
	DialTimeout time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout"`
	// Timeout for socket reads. Default is 3 seconds.
	ReadTimeout time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout"`
	// Amount of time after which client closes idle connections.
	// Default is 900 seconds. -1 disables idle timeout check.
	IdleTimeout time.Duration `json:"idle_timeout,omitempty" yaml:"idle_timeout"`
	// Frequency of idle checks made by idle connections reaper.
	IdleCheckFrequency time.Duration `json:"idle_check_frequency,omitempty" yaml:"idle_check_frequency"`
}

type Cache interface {
	Set(key string, val interface{}, ttl time.Duration) error
	Get(key string, val interface{}) bool
	Delete(key string)
	Close() error
}

type CacheFactory func(config CacheConfig) (Cache, error)

var cacheFactories = make(map[string]CacheFactory)

// Each cache implementation must Register itself
func Register(name string, factory CacheFactory) {
	log.Debugf("Registering cache factory for %s", name)
	if factory == nil {
		log.Panicf("Cache factory %s does not exist.", name)
	}
	_, registered := cacheFactories[name]
	if registered {
		log.Infof("Cache factory %s already registered. Ignoring.", name)
		return
	}
	cacheFactories[name] = factory
}

// CreateCache is a factory method that will create the named cache. An empty type means local.
func CreateCache(config CacheConfig) (Cache, error) {
	if config.Type == "" {
		config.Type = CACHE_LOCAL
	}
	factory, ok := cacheFactories[config.Type]
	if !ok {
		// Factory has not been registered.
		// Make a list of all available cache factories for logging.
		availableCaches := make([]string, 0, len(cacheFactories))
		for k := range cacheFactories {
			availableCaches = append(availableCaches, k)
		}
		sort.Strings(availableCaches)
		return nil, fmt.Errorf("invalid cache name %q. must be one of: %s", config.Type, strings.Join(availableCaches, ", "))
	}

	// Run the factory with the configuration.
	return factory(config)
}
