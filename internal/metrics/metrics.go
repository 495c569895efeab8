// Package metrics defines and registers all custom Prometheus metrics for
// the social system. It is the single source of truth for metric names,
// labels, and help strings. Metrics self-register with the default registry
// via promauto at package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "social"

// ── Friend graph metrics ─────────────────────────────────────────────────────

// FriendAddsTotal counts AddFriend outcomes.
// Label:
//   - result: "ok", "not_found", "self_reference", "already_friends",
//     "partial" (self side written, reverse side failed), or "error"
var FriendAddsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "friend_adds_total",
		Help:      "Total number of friend-add attempts, by outcome.",
	},
	[]string{"result"},
)

// FriendRemovesTotal counts RemoveFriend outcomes ("ok" or "error").
var FriendRemovesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "friend_removes_total",
		Help:      "Total number of friend-remove attempts, by outcome.",
	},
	[]string{"result"},
)

// FriendListSize observes the number of profiles resolved per ListFriends
// call, spanning multiple batch lookups when above the per-query ceiling.
var FriendListSize = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "friend_list_size",
		Help:      "Resolved friend count per list operation.",
		Buckets:   []float64{0, 1, 5, 10, 30, 60, 100, 250},
	},
)

// ── Repair queue metrics ─────────────────────────────────────────────────────

// RepairsTotal counts executed friend-edge repair jobs.
// Label:
//   - result: "ok" or "error"
var RepairsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "friend_repairs_total",
		Help:      "Total number of friend-edge repair jobs executed, by result.",
	},
	[]string{"result"},
)

// RepairQueueDepth tracks the jobs waiting in each repair worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var RepairQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "friend_repair_queue_depth",
		Help:      "Current number of repair jobs pending per worker channel.",
	},
	[]string{"worker_id"},
)

// ── Session metrics ──────────────────────────────────────────────────────────

// SignInsTotal counts authentication attempts.
// Label:
//   - result: "ok" or "rejected"
var SignInsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signins_total",
		Help:      "Total number of sign-in attempts, by outcome.",
	},
	[]string{"result"},
)

// SignUpsTotal counts registration attempts.
// Label:
//   - result: "ok", "conflict", or "error"
var SignUpsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signups_total",
		Help:      "Total number of sign-up attempts, by outcome.",
	},
	[]string{"result"},
)
