package queue

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Delivery is one fetched message. The raw broker message stays
// private so acknowledging it goes back through the same consumer.
type Delivery struct {
	Value []byte

	msg kafka.Message
}

// Consumer fetches messages from a consumer-group topic. Offsets are
// committed only through Ack, so a crash before Ack leaves the message
// pending and it is redelivered after the group rebalances. The
// fetch-process-ack loop shape keeps exactly one message in flight per
// instance.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})}
}

func (c *Consumer) Fetch(ctx context.Context) (Delivery, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return Delivery{}, err
	}
	return Delivery{Value: msg.Value, msg: msg}, nil
}

func (c *Consumer) Ack(ctx context.Context, d Delivery) error {
	return c.reader.CommitMessages(ctx, d.msg)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Ping checks broker reachability, for the startup readiness gate.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return nil
	}
	conn, err := kafka.DefaultDialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}
