//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gasparespejo/EFILabs/internal/adapter/filesystem"
	"github.com/gasparespejo/EFILabs/internal/adapter/kafka"
	"github.com/gasparespejo/EFILabs/internal/adapter/tabular"
	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/gasparespejo/EFILabs/internal/observability"
	"github.com/gasparespejo/EFILabs/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testSinkTopic = "test-tire-readings"

// publishedMessage holds a message read back from the sink topic.
type publishedMessage struct {
	Key     string
	Headers map[string]string
	Value   []byte
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("tire-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}))
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return publishedMessage{Key: string(msg.Key), Headers: headers, Value: msg.Value}
}

// TestPipelineToKafka runs a full batch over the pipeline fixtures plus a
// corrupt file and verifies every detail row and summary group reaches the
// topic with its run id and routing key.
func TestPipelineToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	dir := t.TempDir()
	for _, name := range []string{"nazar.csv", "tccu.csv"} {
		data, err := os.ReadFile(filepath.Join("..", "pipeline", "testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roto.xlsx"), []byte("PK\x03\x04 truncated"), 0o600))

	files, err := filesystem.NewSource([]string{dir}).Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, files, 3)

	writer := kafka.NewWriter([]string{broker}, testSinkTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(tabular.NewParser(), []pipeline.Loader{writer}, pipeline.DefaultOptions(),
		discardLogger(), observability.NewMetricsForTesting())

	res, err := p.Run(ctx, files)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomePartial, res.Outcome())
	require.Len(t, res.Rejected, 1)
	assert.ErrorIs(t, res.Rejected[0].Reason, domain.ErrMalformedFile)

	want := len(res.Detail)
	for _, s := range res.Summaries {
		want += len(s.Groups)
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make([]publishedMessage, 0, want)
	for len(received) < want {
		received = append(received, readPublished(ctx, t, consumer))
	}

	kinds := map[string]int{}
	plates := map[string]int{}
	reports := map[string]int{}
	for _, m := range received {
		assert.Equal(t, res.RunID, m.Headers["run_id"])
		kinds[m.Headers["kind"]]++

		switch m.Headers["kind"] {
		case kafka.KindReading:
			var body struct {
				RunID   string  `json:"run_id"`
				Patente *string `json:"patente"`
				Estado  string  `json:"estado"`
			}
			require.NoError(t, json.Unmarshal(m.Value, &body))
			assert.Equal(t, res.RunID, body.RunID)
			require.NotNil(t, body.Patente)
			assert.Equal(t, *body.Patente, m.Key)
			assert.Equal(t, body.Estado, m.Headers["estado"])
			plates[m.Key]++
		case kafka.KindSummary:
			var body struct {
				Report     string `json:"report"`
				NRegistros int    `json:"n_registros"`
			}
			require.NoError(t, json.Unmarshal(m.Value, &body))
			assert.Equal(t, body.Report, m.Key)
			assert.Positive(t, body.NRegistros)
			reports[body.Report]++
		default:
			t.Errorf("unexpected kind header %q", m.Headers["kind"])
		}
	}

	assert.Equal(t, len(res.Detail), kinds[kafka.KindReading])
	assert.Equal(t, map[string]int{"ABC123": 2, "XYZ789": 2, "DEF456": 2}, plates)
	for _, s := range res.Summaries {
		assert.Equal(t, len(s.Groups), reports[s.Name], s.Name)
	}

	// Nothing beyond the run's own messages is published.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no extra message on sink topic")
}
