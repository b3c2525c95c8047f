package kafkax

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter builds a writer keyed by hash so events for one aggregate land on one partition.
// Topic is left unset; every message names its own topic.
func NewWriter(brokers string, writeTimeout time.Duration) *kafka.Writer {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(SplitBrokers(brokers)...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}
}
