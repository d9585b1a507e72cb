/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yazug/gpsd/ntpshm"
)

// poolCollector exports per-slot attach/lease state on every scrape
// rather than snapshotting on a timer, the way sptp's stats.FetchCounters
// based exporter does it: gpsdtimebridge's whole state fits in a handful
// of gauges so there's no need for the interval-sampling dance.
type poolCollector struct {
	pool     *ntpshm.Pool
	segments int

	attached *prometheus.Desc
	inUse    *prometheus.Desc
}

func newPoolCollector(pool *ntpshm.Pool, segments int) *poolCollector {
	return &poolCollector{
		pool:     pool,
		segments: segments,
		attached: prometheus.NewDesc("gpsdtimebridge_segments_attached", "NTP SHM segments successfully attached", nil, nil),
		inUse:    prometheus.NewDesc("gpsdtimebridge_segments_in_use", "NTP SHM segments currently leased to a session", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.attached
	ch <- c.inUse
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.attached, prometheus.GaugeValue, float64(c.pool.Attached()))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(c.pool.InUseCount()))
}
