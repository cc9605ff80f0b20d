// Package kafka ingests lot arrivals from the receiving topic and feeds
// them into the inventory service.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Arrival is one inbound lot announced by the receiving system.
type Arrival struct {
	Expiry  int32  `json:"expiry"` // YYYYMMDD, validated upstream
	Product string `json:"product"`
	Stock   int32  `json:"stock"`
}

// Inserter is the slice of the inventory service the consumer needs.
type Inserter interface {
	InsertLot(expiry int32, product string, stock int32) error
}

type ArrivalConsumer struct {
	reader *kafka.Reader
	svc    Inserter
	logger *slog.Logger
}

func NewArrivalConsumer(
	brokers []string,
	topic, group string,
	svc Inserter,
	logger *slog.Logger,
) *ArrivalConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArrivalConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: group,
		}),
		svc:    svc,
		logger: logger,
	}
}

// Run consumes until ctx is cancelled. Malformed or rejected arrivals
// are logged and skipped; only transport failures stop the loop.
func (c *ArrivalConsumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var a Arrival
		if err := json.Unmarshal(m.Value, &a); err != nil {
			c.logger.Warn("dropping malformed arrival", "offset", m.Offset, "err", err)
			continue
		}
		if err := c.svc.InsertLot(a.Expiry, a.Product, a.Stock); err != nil {
			c.logger.Warn("arrival rejected", "expiry", a.Expiry, "err", err)
		}
	}
}

func (c *ArrivalConsumer) Close() error {
	return c.reader.Close()
}
