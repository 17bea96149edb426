package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job label of the analysis job.
const PushJob = "tire_pressure_etl"

// Push sends every metric in g to a Pushgateway, replacing the previous
// push of the same job. Batch runs end before any scrape, so this is how
// their metrics reach Prometheus.
func Push(ctx context.Context, url string, g prometheus.Gatherer) error {
	if err := push.New(url, PushJob).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
