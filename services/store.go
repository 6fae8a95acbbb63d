package services

import "log"

// Stor is the persistent key value store services keep state in,
// backed by redis in production and MockStore in tests.
var Stor Store

// SetupStore connects the global store to the configured redis.
func SetupStore() {
	address := Config.Endpoints.Redis
	if address == "" {
		address = "127.0.0.1:6379"
	}
	store, err := NewRedisStore(address)
	if err != nil {
		log.Fatalln("Failed to connect to redis:", err)
	}
	Stor = store
}

type Store interface {
	Set(key string, value string) error
	SetWithTTL(key string, value string, ttl uint64) error
	Get(key string) (string, error)
	GetRecursive(prefix string) ([]Node, error)
}

type Node struct {
	Key   string
	Value string
}
