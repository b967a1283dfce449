// Package metrics defines and registers all custom Prometheus metrics for the
// clan registry. It is the single source of truth for metric names, labels,
// and help strings. Metrics register themselves with the default registry via
// promauto at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clanregistry"

// ── Update metrics ────────────────────────────────────────────────────────────

// UpdatesProcessedTotal counts inbound updates that were dispatched.
// Labels:
//   - kind: "command", "callback", or "text"
var UpdatesProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_processed_total",
		Help:      "Total number of inbound updates dispatched, by kind.",
	},
	[]string{"kind"},
)

// UpdatesDeniedTotal counts updates rejected by the authorization gate.
var UpdatesDeniedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_denied_total",
		Help:      "Total number of inbound updates rejected by the authorization gate.",
	},
)

// UpdatesDedupTotal counts deduplication decisions.
// Label:
//   - result: "hit" (duplicate, skipped) or "miss" (new update, processed)
var UpdatesDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_dedup_total",
		Help:      "Total number of deduplication checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// ── Store metrics ─────────────────────────────────────────────────────────────

// StoreSavesTotal counts persistence attempts at the record store boundary.
// Labels:
//   - document: "records" or "authorization"
//   - outcome: "ok", "conflict", or "error"
var StoreSavesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_saves_total",
		Help:      "Total number of document write attempts, by document and outcome.",
	},
	[]string{"document", "outcome"},
)

// StoreRetriesExhaustedTotal counts writes abandoned after all retry attempts.
var StoreRetriesExhaustedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_retries_exhausted_total",
		Help:      "Total number of writes given up after exhausting all retry attempts.",
	},
)

// ── Conversation metrics ──────────────────────────────────────────────────────

// ConversationCommitsTotal counts conversation flow commits.
// Label:
//   - outcome: "created", "updated", or "failed"
var ConversationCommitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversation_commits_total",
		Help:      "Total number of conversation flow commits, by outcome.",
	},
	[]string{"outcome"},
)
