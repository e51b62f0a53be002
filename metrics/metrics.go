// ============================================================================
// PIPELINE METRICS
// ============================================================================
//
// Collector reads one Stats snapshot per scrape and turns it into const
// metrics, so nothing on the tick or interrupt path touches Prometheus.

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dmasampler/debug"
	"dmasampler/pipeline"
)

const namespace = "dmasampler"

// Source supplies the counters to export.
type Source interface {
	Stats() pipeline.Stats
}

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(pipeline.Stats) float64
}

func counter(name, help string, v func(pipeline.Stats) uint64) metric {
	return metric{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
		kind:  prometheus.CounterValue,
		value: func(s pipeline.Stats) float64 { return float64(v(s)) },
	}
}

func gauge(name, help string, v func(pipeline.Stats) uint64) metric {
	m := counter(name, help, v)
	m.kind = prometheus.GaugeValue
	return m
}

// Collector exports pipeline stats.
type Collector struct {
	src     Source
	metrics []metric
}

// NewCollector returns a collector over src.
func NewCollector(src Source) *Collector {
	return &Collector{src: src, metrics: []metric{
		counter("ticks_total", "Trigger ticks emitted.",
			func(s pipeline.Stats) uint64 { return s.Ticks }),
		counter("transfers_total", "Bus item exchanges completed.",
			func(s pipeline.Stats) uint64 { return s.Engine.Transfers }),
		counter("transfer_errors_total", "Bus exchanges that returned an error.",
			func(s pipeline.Stats) uint64 { return s.Engine.Errors }),
		counter("overflows_total", "Transfers refused past the end margin.",
			func(s pipeline.Stats) uint64 { return s.Engine.Overflows }),
		counter("half_events_total", "Half-buffer threshold events handled.",
			func(s pipeline.Stats) uint64 { return s.Publisher.HalfEvents }),
		counter("full_events_total", "Full-buffer threshold events handled.",
			func(s pipeline.Stats) uint64 { return s.Publisher.FullEvents }),
		counter("clamped_batches_total", "Full batches clamped to the end margin.",
			func(s pipeline.Stats) uint64 { return s.Publisher.Clamped }),
		counter("out_of_phase_total", "Threshold events handled in the unexpected phase.",
			func(s pipeline.Stats) uint64 { return s.Publisher.OutOfPhase }),
		gauge("max_overrun_ticks", "Largest count past the full threshold seen at capture.",
			func(s pipeline.Stats) uint64 { return uint64(s.Publisher.MaxOverrun) }),
		counter("irq_raised_total", "Interrupt requests raised by the counter.",
			func(s pipeline.Stats) uint64 { return s.IRQRaised }),
		counter("irq_serviced_total", "Interrupt handler runs.",
			func(s pipeline.Stats) uint64 { return s.IRQServiced }),
		counter("notifications_posted_total", "Descriptors posted to the mailbox.",
			func(s pipeline.Stats) uint64 { return s.Notify.Posted }),
		counter("notifications_delivered_total", "Descriptors delivered to the consumer.",
			func(s pipeline.Stats) uint64 { return s.Notify.Delivered }),
		counter("notifications_coalesced_total", "Descriptors overwritten before they were read.",
			func(s pipeline.Stats) uint64 { return s.Notify.Coalesced }),
		counter("notifications_dropped_total", "Descriptors refused by a full queue.",
			func(s pipeline.Stats) uint64 { return s.Notify.Dropped }),
		counter("batches_consumed_total", "Batches read by the consumer loop.",
			func(s pipeline.Stats) uint64 { return s.Consumed }),
	}}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s))
	}
}

// NewRegistry returns a registry holding a collector over src.
func NewRegistry(src Source) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(src)); err != nil {
		return nil, fmt.Errorf("metrics: register: %w", err)
	}
	return reg, nil
}

// ============================================================================
// HTTP ENDPOINT
// ============================================================================

// Server exposes /metrics for one registry.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Serve listens on addr and serves g at /metrics in the background.
func Serve(addr string, g prometheus.Gatherer) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.DropError("METRICS", err)
		}
	}()
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close shuts the endpoint down.
func (s *Server) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
