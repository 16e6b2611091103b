// Package observatory ships finalized execution-span hierarchies to the
// external trace-ingestion service. Export is best-effort: hierarchies are
// queued on a bounded buffer and dropped when it is full, and a circuit
// breaker stops hammering an unavailable collector.
package observatory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/execution"
	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/infrastructure/resilience"
)

// ingestPath is the collection endpoint on the observatory service.
const ingestPath = "/v1/executions"

// Config configures the exporter.
type Config struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	BufferSize int
}

// Reporter receives export outcomes; implemented by monitoring.Metrics.
type Reporter interface {
	RecordExport(err error)
}

// Exporter delivers hierarchies to the observatory from a single background
// worker.
type Exporter struct {
	cfg      Config
	client   *retryablehttp.Client
	breaker  *resilience.Breaker
	logger   *zap.Logger
	reporter Reporter
	queue    chan execution.Hierarchy
	done     chan struct{}
}

// New creates an exporter and starts its worker. A nil reporter disables
// outcome reporting.
func New(cfg Config, logger *zap.Logger, reporter Reporter) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil

	e := &Exporter{
		cfg:    cfg,
		client: client,
		breaker: resilience.New("observatory", resilience.Settings{
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
			OnStateChange: func(name string, from, to resilience.State) {
				logger.Warn("observatory breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		logger:   logger,
		reporter: reporter,
		queue:    make(chan execution.Hierarchy, cfg.BufferSize),
		done:     make(chan struct{}),
	}

	go e.run()
	return e
}

// Submit enqueues a hierarchy without blocking the request path; it is
// dropped when the buffer is full.
func (e *Exporter) Submit(h execution.Hierarchy) {
	select {
	case e.queue <- h:
	default:
		e.logger.Warn("export buffer full, dropping hierarchy",
			zap.String("trace_id", string(h.RepoSpan.TraceID)),
		)
	}
}

// Close drains the queue and stops the worker.
func (e *Exporter) Close() error {
	close(e.queue)
	<-e.done
	return nil
}

func (e *Exporter) run() {
	for h := range e.queue {
		e.export(h)
	}
	close(e.done)
}

func (e *Exporter) export(h execution.Hierarchy) {
	err := e.breaker.Execute(func() error {
		return e.post(h)
	})
	if e.reporter != nil {
		e.reporter.RecordExport(err)
	}
	if err != nil {
		e.logger.Warn("failed to export hierarchy",
			zap.String("trace_id", string(h.RepoSpan.TraceID)),
			zap.Error(err),
		)
	}
}

func (e *Exporter) post(h execution.Hierarchy) error {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(h); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode hierarchy: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to compress hierarchy: %w", err)
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, e.cfg.Endpoint+ingestPath, buf.Bytes())
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("observatory returned status %d", resp.StatusCode)
	}
	return nil
}
