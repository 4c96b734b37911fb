// Package metrics exposes the engine's window aggregates and the latest
// bandwidth snapshot in the Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pingit/app/internal/cache"
	"pingit/app/internal/stats"
)

const namespace = "pingit"

var (
	probesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "window", "probes"),
		"Probes inside the trailing window.",
		[]string{"window"}, nil,
	)
	successDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "window", "success_probes"),
		"Successful probes inside the trailing window.",
		[]string{"window"}, nil,
	)
	lossDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "window", "packet_loss_percent"),
		"Failed probes as a percentage of all probes in the window.",
		[]string{"window"}, nil,
	)
	rttDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "window", "avg_rtt_ms"),
		"Mean round trip time in the window, failed probes counted as zero.",
		[]string{"window"}, nil,
	)
	ttlDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "window", "avg_ttl"),
		"Mean reply TTL in the window, failed probes counted as zero.",
		[]string{"window"}, nil,
	)
	historyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "history_records"),
		"Probe records currently retained.",
		nil, nil,
	)

	speedPingDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "speedtest", "ping_ms"),
		"Latency measured by the latest bandwidth test.",
		nil, nil,
	)
	speedDownDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "speedtest", "download_mbps"),
		"Download rate measured by the latest bandwidth test.",
		nil, nil,
	)
	speedUpDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "speedtest", "upload_mbps"),
		"Upload rate measured by the latest bandwidth test.",
		nil, nil,
	)
	speedTimeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "speedtest", "timestamp_seconds"),
		"Unix time the latest bandwidth test finished.",
		nil, nil,
	)
)

// Collector reads the published engine state at scrape time, so scrapes
// never block the probe loop.
type Collector struct {
	engine    *stats.Engine
	speedtest *cache.Snapshot
}

// NewCollector creates a collector. snap may be nil.
func NewCollector(engine *stats.Engine, snap *cache.Snapshot) *Collector {
	return &Collector{engine: engine, speedtest: snap}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		probesDesc, successDesc, lossDesc, rttDesc, ttlDesc, historyDesc,
		speedPingDesc, speedDownDesc, speedUpDesc, speedTimeDesc,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	state := c.engine.State()
	for _, w := range stats.Windows {
		agg := state.Window(w.Name)
		ch <- prometheus.MustNewConstMetric(probesDesc, prometheus.GaugeValue, float64(agg.Count), w.Name)
		ch <- prometheus.MustNewConstMetric(successDesc, prometheus.GaugeValue, float64(agg.Success), w.Name)
		ch <- prometheus.MustNewConstMetric(lossDesc, prometheus.GaugeValue, agg.PacketLoss, w.Name)
		ch <- prometheus.MustNewConstMetric(rttDesc, prometheus.GaugeValue, agg.AvgTime, w.Name)
		ch <- prometheus.MustNewConstMetric(ttlDesc, prometheus.GaugeValue, agg.AvgTTL, w.Name)
	}
	ch <- prometheus.MustNewConstMetric(historyDesc, prometheus.GaugeValue, float64(len(state.History)))

	if c.speedtest == nil {
		return
	}
	snap, ok := c.speedtest.Get()
	if !ok {
		return
	}
	ch <- prometheus.MustNewConstMetric(speedPingDesc, prometheus.GaugeValue, snap.Ping)
	ch <- prometheus.MustNewConstMetric(speedDownDesc, prometheus.GaugeValue, snap.Download)
	ch <- prometheus.MustNewConstMetric(speedUpDesc, prometheus.GaugeValue, snap.Upload)
	ch <- prometheus.MustNewConstMetric(speedTimeDesc, prometheus.GaugeValue, float64(snap.Timestamp.Unix()))
}

// NewRegistry returns a registry holding the collector plus the Go runtime
// and process collectors
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
