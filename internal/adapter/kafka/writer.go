package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/gasparespejo/EFILabs/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	// KindReading marks a message carrying one classified detail row.
	KindReading = "reading"
	// KindSummary marks a message carrying one aggregated group.
	KindSummary = "summary"

	defaultBatchSize = 500
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes run results to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer     messageWriter
	logger     *slog.Logger
	batchSize  int
	maxElapsed time.Duration
}

// NewWriter creates a Kafka producer for the given brokers and topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger, batchSize: defaultBatchSize, maxElapsed: time.Minute}
}

func (w *Writer) Name() string { return "kafka" }

// Load publishes every detail row and every summary group of res. Messages
// are sent in batches; a failed batch is retried with exponential backoff.
func (w *Writer) Load(ctx context.Context, res *pipeline.Result) error {
	msgs, err := buildMessages(res)
	if err != nil {
		return err
	}
	for start := 0; start < len(msgs); start += w.batchSize {
		end := min(start+w.batchSize, len(msgs))
		if err := w.publish(ctx, msgs[start:end]); err != nil {
			return err
		}
	}
	w.logger.Info("results published", "run_id", res.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) publish(ctx context.Context, batch []kafkago.Message) error {
	operation := func() error {
		err := w.writer.WriteMessages(ctx, batch...)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		w.logger.Warn("kafka publish failed, retrying", "error", err, "wait", wait, "batch_size", len(batch))
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = w.maxElapsed
	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return fmt.Errorf("publish %d messages: %w", len(batch), err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// readingMessage is the wire form of a detail row.
type readingMessage struct {
	RunID string `json:"run_id"`
	domain.MetricRecord
}

// summaryMessage is the wire form of one aggregated group.
type summaryMessage struct {
	RunID        string             `json:"run_id"`
	Report       string             `json:"report"`
	Keys         map[string]*string `json:"keys"`
	NRegistros   int                `json:"n_registros"`
	DeltaProm    *float64           `json:"delta_prom"`
	DeltaAbsProm *float64           `json:"delta_abs_prom"`
	EnergiaTotal float64            `json:"energia_total"`
	PctSub       float64            `json:"pct_sub"`
	PctSobre     float64            `json:"pct_sobre"`
}

func buildMessages(res *pipeline.Result) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, len(res.Detail))
	for _, rec := range res.Detail {
		msg, err := serializeReading(res.RunID, rec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for _, s := range res.Summaries {
		for _, g := range s.Groups {
			msg, err := serializeSummary(res.RunID, s.Name, g)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

// serializeReading marshals a detail row into a Kafka message keyed by plate,
// so all readings of a vehicle land on the same partition.
func serializeReading(runID string, rec domain.MetricRecord) (kafkago.Message, error) {
	data, err := json.Marshal(readingMessage{RunID: runID, MetricRecord: rec})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading %s:%d: %w", rec.Archivo, rec.Fila, err)
	}
	var key []byte
	if rec.Patente != nil {
		key = []byte(*rec.Patente)
	}
	return kafkago.Message{
		Key:   key,
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "kind", Value: []byte(KindReading)},
			{Key: "estado", Value: []byte(rec.Estado)},
		},
	}, nil
}

func serializeSummary(runID, report string, g domain.GroupSummary) (kafkago.Message, error) {
	keys := make(map[string]*string, len(g.GroupBy))
	for _, f := range g.GroupBy {
		keys[string(f)] = g.Key(f)
	}
	data, err := json.Marshal(summaryMessage{
		RunID:        runID,
		Report:       report,
		Keys:         keys,
		NRegistros:   g.NRegistros,
		DeltaProm:    g.DeltaProm,
		DeltaAbsProm: g.DeltaAbsProm,
		EnergiaTotal: g.EnergiaTotal,
		PctSub:       g.PctSub,
		PctSobre:     g.PctSobre,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize summary %s: %w", report, err)
	}
	return kafkago.Message{
		Key:   []byte(report),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "kind", Value: []byte(KindSummary)},
		},
	}, nil
}
