// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

var (
	evaluateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nimbus_acl_evaluate_duration_seconds",
		Help:    "Histogram of ACL evaluation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nimbus_acl_decisions_total",
		Help: "Total number of ACL decisions by action, permission, and match kind",
	}, []string{"action", "permission", "matched"})
)

// recordDecision records metrics for one completed evaluation.
func recordDecision(action types.ActionKind, d types.Decision, duration time.Duration) {
	evaluateDuration.Observe(duration.Seconds())

	matched := "rule"
	if !d.Matched() {
		matched = "default"
	}
	decisions.WithLabelValues(action.String(), d.Permission.String(), matched).Inc()
}
