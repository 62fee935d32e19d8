package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/minesite-climate-service/internal/domain"
	"github.com/couchcryptid/minesite-climate-service/internal/observability"
)

// WriterConfig selects the cluster, topic and batch size for publishing.
type WriterConfig struct {
	Brokers   []string
	Topic     string
	BatchSize int
}

// Writer publishes melted observations to a Kafka topic.
type Writer struct {
	writer    *kafkago.Writer
	batchSize int
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg WriterConfig, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	return &Writer{writer: w, batchSize: batch, metrics: metrics, logger: logger}
}

// Publish serializes observations and writes them in batches. Messages are keyed by
// series and year so a compacted topic keeps one value per point.
func (w *Writer) Publish(ctx context.Context, obs []domain.Observation, meltedAt time.Time) error {
	for start := 0; start < len(obs); start += w.batchSize {
		end := min(start+w.batchSize, len(obs))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(obs[i], meltedAt)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write observations %d-%d: %w", start, end, err)
		}
		w.metrics.ObservationsPublished.Add(float64(len(msgs)))
		w.logger.Debug("published batch", "topic", w.writer.Topic, "messages", len(msgs))
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// observationMessage is the wire form of an observation. A missing temperature is
// sent as null because JSON has no NaN.
type observationMessage struct {
	Year            int      `json:"year"`
	Minesite        string   `json:"minesite"`
	MinesiteOrdinal int      `json:"minesite_ordinal"`
	Temperature     *float64 `json:"tas"`
	Model           string   `json:"model,omitempty"`
	Scenario        string   `json:"scenario,omitempty"`
	Month           int      `json:"month,omitempty"`
	Group           string   `json:"group,omitempty"`
}

// MessageKey identifies the point an observation describes.
func MessageKey(o domain.Observation) string {
	return o.Minesite + "|" + o.Model + "|" + o.Scenario + "|" + strconv.Itoa(o.Year) + "|" + strconv.Itoa(o.Month)
}

// serializeToMessage marshals an Observation into a Kafka message.
func serializeToMessage(o domain.Observation, meltedAt time.Time) (kafkago.Message, error) {
	m := observationMessage{
		Year:            o.Year,
		Minesite:        o.Minesite,
		MinesiteOrdinal: o.MinesiteOrdinal,
		Model:           o.Model,
		Scenario:        o.Scenario,
		Month:           o.Month,
		Group:           o.Group,
	}
	if !math.IsNaN(o.Temperature) {
		tas := o.Temperature
		m.Temperature = &tas
	}
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(o)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "group", Value: []byte(o.Group)},
			{Key: "melted_at", Value: []byte(meltedAt.Format(time.RFC3339))},
		},
	}, nil
}

// DecodeMessage is the inverse of the writer's serialization, used by consumers
// and tests.
func DecodeMessage(msg kafkago.Message) (domain.Observation, error) {
	var m observationMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return domain.Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	o := domain.Observation{
		Year:            m.Year,
		Minesite:        m.Minesite,
		MinesiteOrdinal: m.MinesiteOrdinal,
		Temperature:     math.NaN(),
		Model:           m.Model,
		Scenario:        m.Scenario,
		Month:           m.Month,
		Group:           m.Group,
	}
	if m.Temperature != nil {
		o.Temperature = *m.Temperature
	}
	return o, nil
}
