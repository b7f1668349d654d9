package factory

import (
	"Go2NetPeriod/internal/config"
	"Go2NetPeriod/internal/model"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// PublisherFactory defines a function that creates a publisher from its config entry.
type PublisherFactory func(def config.PublisherDef) (model.Publisher, error)

// registry holds the mapping of publisher types to their factory functions.
var registry = make(map[string]PublisherFactory)

// RegisterPublisher registers a new publisher type with its factory function.
func RegisterPublisher(name string, factory PublisherFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("publisher type '%s' already registered", name))
	}
	registry[name] = factory
}

// Create builds every enabled publisher of the config. On error, the publishers built
// so far are closed.
func Create(cfg *config.Config) ([]model.Publisher, error) {
	var publishers []model.Publisher

	for _, def := range cfg.Publishers {
		if !def.Enabled {
			continue
		}
		log.Printf("Creating publisher of type: '%s'", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			closeAll(publishers)
			return nil, fmt.Errorf("unknown publisher type: '%s'", def.Type)
		}

		p, err := factory(def)
		if err != nil {
			closeAll(publishers)
			return nil, fmt.Errorf("error creating publisher type '%s': %w", def.Type, err)
		}
		publishers = append(publishers, p)
	}

	return publishers, nil
}

func closeAll(publishers []model.Publisher) {
	for _, p := range publishers {
		if err := p.Close(); err != nil {
			log.Warnf("Failed to close publisher: %v", err)
		}
	}
}
