package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/redo/internal/logging"
	"github.com/aretw0/redo/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// LogCollector exports the persisted logs of a store: leaves per workflow and
// how many of them last succeeded, failed or never ran.
type LogCollector struct {
	store   ports.LogStore
	timeout time.Duration
	logger  *slog.Logger

	leaves *prometheus.Desc
	failed *prometheus.Desc
}

// NewLogCollector creates a collector reading from store on every scrape.
func NewLogCollector(store ports.LogStore, logger *slog.Logger) *LogCollector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogCollector{
		store:   store,
		timeout: 5 * time.Second,
		logger:  logger,
		leaves: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "log", "tasks"),
			"Leaves in the persisted log by last run state.",
			[]string{"workflow", "state"}, nil,
		),
		failed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "log", "scrape_errors"),
			"Logs that could not be read during the scrape.",
			nil, nil,
		),
	}
}

func (c *LogCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.leaves
	ch <- c.failed
}

func (c *LogCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	errs := 0
	names, err := c.store.List(ctx)
	if err != nil {
		c.logger.Warn("failed to list logs", "error", err)
		errs++
	}
	for _, name := range names {
		log, err := c.store.Load(ctx, name)
		if err != nil {
			c.logger.Warn("failed to load log", "workflow", name, "error", err)
			errs++
			continue
		}
		counts := map[string]float64{"succeeded": 0, "failed": 0, "unknown": 0}
		for _, rec := range log.Leaves() {
			switch {
			case rec.LastRunSuccess == nil:
				counts["unknown"]++
			case *rec.LastRunSuccess:
				counts["succeeded"]++
			default:
				counts["failed"]++
			}
		}
		for state, n := range counts {
			ch <- prometheus.MustNewConstMetric(c.leaves, prometheus.GaugeValue, n, name, state)
		}
	}
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.GaugeValue, float64(errs))
}
