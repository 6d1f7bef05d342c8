package queryqueue

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisSettings configures the optional Redis Streams delivery backend.
type RedisSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Group    string `mapstructure:"group"`
	Consumer string `mapstructure:"consumer"`
}

// NewBackend builds the queue transport. With Redis disabled it returns an
// in-memory Go channel Pub/Sub; single in-process drain semantics (FIFO order,
// shared cancellation flags) hold either way because cancellation state lives
// in the Queue, not the transport.
func NewBackend(s RedisSettings) (PubSub, error) {
	logger := NewWatermillLogger(log.Logger)
	if !s.Enabled {
		return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger), nil
	}

	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		return nil, err
	}
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, err
	}
	return &redisBackend{pub: pub, sub: sub}, nil
}

type redisBackend struct {
	pub message.Publisher
	sub message.Subscriber
}

func (b *redisBackend) Publish(topic string, msgs ...*message.Message) error {
	return b.pub.Publish(topic, msgs...)
}

func (b *redisBackend) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.sub.Subscribe(ctx, topic)
}

func (b *redisBackend) Close() error {
	pubErr := b.pub.Close()
	subErr := b.sub.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}
