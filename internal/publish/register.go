package publish

import (
	"Go2NetPeriod/internal/config"
	"Go2NetPeriod/internal/factory"
	"Go2NetPeriod/internal/model"
)

func init() {
	factory.RegisterPublisher("nats", func(def config.PublisherDef) (model.Publisher, error) {
		return NewNATSPublisher(def.NATS)
	})
	factory.RegisterPublisher("kafka", func(def config.PublisherDef) (model.Publisher, error) {
		return NewKafkaPublisher(def.Kafka)
	})
}
