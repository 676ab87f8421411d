// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package acl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for rule-set reloads.
var (
	reloadTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nimbus_acl_reload_timestamp_seconds",
		Help: "Unix timestamp of the last successful ACL rule set reload",
	})

	reloadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nimbus_acl_reload_failures_total",
		Help: "Total number of rejected ACL rule set reloads",
	})

	ruleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nimbus_acl_rules",
		Help: "Number of rules in the live ACL rule set",
	})
)
