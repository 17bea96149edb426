package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/gasparespejo/EFILabs/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	batches  [][]kafkago.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("leader not available")
	}
	f.batches = append(f.batches, msgs)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func newTestWriter(fw *fakeWriter, batchSize int) *Writer {
	return &Writer{writer: fw, logger: slog.Default(), batchSize: batchSize, maxElapsed: 5 * time.Second}
}

func sampleResult() *pipeline.Result {
	patente, operacion := "ABC123", "Norte"
	presion, optima, delta, energia := 100.0, 105.0, -5.0, 5.0
	return &pipeline.Result{
		RunID: "run-1",
		Detail: []domain.MetricRecord{
			{
				CanonicalRecord: domain.CanonicalRecord{
					Archivo: "nazar.csv", Fila: 1, Patente: &patente,
					PresionPSI: &presion, PresionOptimaPSI: &optima,
				},
				DeltaPSI: &delta, EnergiaPerdida: &energia, Estado: domain.EstadoSubinflado,
			},
			{CanonicalRecord: domain.CanonicalRecord{Archivo: "nazar.csv", Fila: 2}},
		},
		Summaries: []pipeline.Summary{{
			Name:    "patente_x_operacion",
			GroupBy: []domain.Field{domain.FieldPatente, domain.FieldOperacion},
			Groups: []domain.GroupSummary{{
				GroupBy:    []domain.Field{domain.FieldPatente, domain.FieldOperacion},
				Keys:       []*string{&patente, &operacion},
				NRegistros: 1, DeltaProm: &delta, EnergiaTotal: 5, PctSub: 100,
			}},
		}},
	}
}

func TestSerializeReading(t *testing.T) {
	res := sampleResult()

	msg, err := serializeReading(res.RunID, res.Detail[0])
	require.NoError(t, err)

	assert.Equal(t, []byte("ABC123"), msg.Key)
	assert.Contains(t, string(msg.Value), `"run_id":"run-1"`)
	assert.Contains(t, string(msg.Value), `"estado":"SUBINFLADO"`)
	assert.Contains(t, string(msg.Value), `"delta_psi":-5`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "kind", msg.Headers[1].Key)
	assert.Equal(t, []byte(KindReading), msg.Headers[1].Value)
	assert.Equal(t, []byte("SUBINFLADO"), msg.Headers[2].Value)

	unkeyed, err := serializeReading(res.RunID, res.Detail[1])
	require.NoError(t, err)
	assert.Nil(t, unkeyed.Key)
	assert.Contains(t, string(unkeyed.Value), `"patente":null`)
}

func TestSerializeSummary(t *testing.T) {
	res := sampleResult()
	s := res.Summaries[0]

	msg, err := serializeSummary(res.RunID, s.Name, s.Groups[0])
	require.NoError(t, err)

	var got summaryMessage
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "patente_x_operacion", got.Report)
	assert.Equal(t, "Norte", *got.Keys["operacion"])
	assert.Equal(t, 1, got.NRegistros)
	assert.Nil(t, got.DeltaAbsProm)
	assert.Equal(t, []byte(KindSummary), msg.Headers[1].Value)
}

func TestWriter_Load_Batches(t *testing.T) {
	fw := &fakeWriter{}
	w := newTestWriter(fw, 2)

	require.NoError(t, w.Load(context.Background(), sampleResult()))

	require.Len(t, fw.batches, 2)
	assert.Len(t, fw.batches[0], 2)
	assert.Len(t, fw.batches[1], 1)
}

func TestWriter_Load_RetriesTransientErrors(t *testing.T) {
	fw := &fakeWriter{failures: 2}
	w := newTestWriter(fw, 10)

	require.NoError(t, w.Load(context.Background(), sampleResult()))
	require.Len(t, fw.batches, 1)
	assert.Len(t, fw.batches[0], 3)
}

func TestWriter_Load_StopsOnCanceledContext(t *testing.T) {
	fw := &fakeWriter{failures: 100}
	w := newTestWriter(fw, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Load(ctx, sampleResult())
	require.Error(t, err)
	assert.Empty(t, fw.batches)
}
