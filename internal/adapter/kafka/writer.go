package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/climate-health-dashboard/internal/config"
	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
	"github.com/couchcryptid/climate-health-dashboard/internal/pipeline"
)

// Header keys set on every snapshot message.
const (
	HeaderRenderID    = "render_id"
	HeaderGeneratedAt = "generated_at"
)

// Publisher produces render snapshots to a Kafka topic, one message per
// merged row. It implements pipeline.SnapshotPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured snapshot topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSnapshotTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes all rows of the snapshot in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, snap pipeline.Snapshot) error {
	if len(snap.Rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snap.Rows))
	for i := range snap.Rows {
		msg, err := serializeToMessage(snap, snap.Rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish snapshot %s: %w", snap.RenderID, err)
	}
	p.logger.Debug("snapshot published", "render_id", snap.RenderID, "messages", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// MessageKey identifies a row across renders.
func MessageKey(row domain.MergedRow) string {
	return row.Region + "|" + row.Date.Format(domain.DateLayout)
}

// serializeToMessage marshals one merged row into a Kafka message.
func serializeToMessage(snap pipeline.Snapshot, row domain.MergedRow) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize merged row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(row)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderRenderID, Value: []byte(snap.RenderID)},
			{Key: HeaderGeneratedAt, Value: []byte(snap.GeneratedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
