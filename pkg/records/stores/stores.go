package stores

import (
	"context"
	"fmt"
	"sort"
	"strings"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/records/mongostore"
	"freelaw.courtlistener.cl-update-index/pkg/records/sqlstore"
)

func init() {
	Register(sqlstore.DRIVER_SQLITE, sqlstore.NewStore)
	Register("mongodb", mongostore.NewStore)
}

var storeFactories = make(map[string]records.StoreFactory)

// Each store implementation must Register itself
func Register(name string, factory records.StoreFactory) {
	log.Debugf("Registering record store factory for %s", name)
	if factory == nil {
		log.Panicf("Record store factory %s does not exist.", name)
	}
	_, registered := storeFactories[name]
	if registered {
		log.Infof("Record store factory %s already registered. Ignoring.", name)
		return
	}
	storeFactories[name] = factory
}

// CreateStore is a factory method that will create the configured store
func CreateStore(ctx context.Context, config records.Config) (records.Store, error) {
	name := config.Driver
	if name == "" {
		name = sqlstore.DRIVER_SQLITE
	}
	factory, ok := storeFactories[name]
	if !ok {
		// Factory has not been registered.
		// Make a list of all available store factories for logging.
		available := make([]string, 0, len(storeFactories))
		for k := range storeFactories {
			available = append(available, k)
		}
		sort.Strings(available)
		return nil, fmt.Errorf("invalid record store driver %q. must be one of: %s", name, strings.Join(available, ", "))
	}

	// Run the factory with the configuration.
	return factory(ctx, config)
}
