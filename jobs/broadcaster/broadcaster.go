// Package broadcaster drains the dispatch outbox to Kafka on a ticker.
// Delivery is at-least-once: an entry is marked SENT before publishing
// and ACKED only after the broker confirms, so a crash between the two
// replays the event on the next pass.
package broadcaster

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"coldchain/infra/outbox"
)

type Broadcaster struct {
	ob       *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	logger   *slog.Logger
}

func New(
	ob *outbox.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
	logger *slog.Logger,
) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		ob:       ob,
		producer: producer,
		topic:    topic,
		interval: interval,
		logger:   logger,
	}, nil
}

func (b *Broadcaster) Run(ctx context.Context) {
	b.logger.Info("broadcaster started", "topic", b.topic)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.drainOnce()
		}
	}
}

func (b *Broadcaster) drainOnce() {
	_ = b.ob.ScanPending(func(seq uint64, rec outbox.Record) error {
		if err := b.ob.MarkSent(seq); err != nil {
			return err
		}
		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(strconv.FormatUint(seq, 10)),
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.logger.Warn("publish failed, will retry", "seq", seq, "err", err)
			return nil
		}
		return b.ob.MarkAcked(seq)
	})

	if n, err := b.ob.PurgeAcked(); err == nil && n > 0 {
		b.logger.Debug("purged acked events", "count", n)
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
