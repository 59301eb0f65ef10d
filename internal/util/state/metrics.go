// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package state

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/FerretDB/FerretDB/build/version"
)

// metricsCollector exports a single "up" gauge describing the running instance, used
// by external monitoring to detect restarts and version changes.
type metricsCollector struct {
	p        *Provider
	withUUID bool

	desc *prometheus.Desc
}

// MetricsCollector returns a prometheus.Collector exposing the process's identity as
// a single gauge. If withUUID is false, the instance's UUID is not included as a
// label, allowing it to be disabled for telemetry-averse deployments.
func (p *Provider) MetricsCollector(withUUID bool) prometheus.Collector {
	labels := []string{"branch", "commit", "debug", "dirty", "package", "telemetry", "version"}
	if withUUID {
		labels = append(labels, "uuid")
	}

	return &metricsCollector{
		p:        p,
		withUUID: withUUID,
		desc: prometheus.NewDesc(
			"ferretdb_up",
			"FerretDB instance state.",
			labels,
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (mc *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- mc.desc
}

// Collect implements prometheus.Collector.
func (mc *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	s := mc.p.Get()
	v := version.Get()

	telemetry := "undecided"
	if s.Telemetry != nil {
		if *s.Telemetry {
			telemetry = "enabled"
		} else {
			telemetry = "disabled"
		}
	}

	values := []string{
		v.Branch,
		v.Commit,
		boolLabel(v.DebugBuild),
		boolLabel(v.Dirty),
		"unknown",
		telemetry,
		v.Version,
	}

	if mc.withUUID {
		values = append(values, s.UUID)
	}

	ch <- prometheus.MustNewConstMetric(mc.desc, prometheus.GaugeValue, 1, values...)
}

// boolLabel formats b the way the teacher's metrics do: "true"/"false" label values.
func boolLabel(b bool) string {
	if b {
		return "true"
	}

	return "false"
}

// check interfaces
var (
	_ prometheus.Collector = (*metricsCollector)(nil)
)
