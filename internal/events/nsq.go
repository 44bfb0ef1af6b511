package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nsqio/go-nsq"
)

// DefaultNSQTopic is the topic friendship events are published to.
const DefaultNSQTopic = "friendships"

// Publisher is the subset of *nsq.Producer used to publish events.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// NSQPublisher publishes events as JSON messages to an NSQ topic.
type NSQPublisher struct {
	producer Publisher
	topic    string
}

// NewNSQProducer connects a producer to the nsqd instance at addr.
func NewNSQProducer(addr string) (*nsq.Producer, error) {
	producer, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create nsq producer for %s: %w", addr, err)
	}
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("ping nsqd at %s: %w", addr, err)
	}
	return producer, nil
}

// NewNSQPublisher constructs a publisher sink. An empty topic uses DefaultNSQTopic.
func NewNSQPublisher(producer Publisher, topic string) *NSQPublisher {
	if topic == "" {
		topic = DefaultNSQTopic
	}
	return &NSQPublisher{producer: producer, topic: topic}
}

// Emit publishes event. The nsq producer blocks without a context, so a
// cancelled context is checked up front.
func (p *NSQPublisher) Emit(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.producer.Publish(p.topic, body); err != nil {
		return fmt.Errorf("publish to nsq topic %q: %w", p.topic, err)
	}
	return nil
}
