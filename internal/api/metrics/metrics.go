// Package metrics defines and registers all custom Prometheus metrics for
// the timesheet services. It is the single source of truth for metric
// names, labels, and help strings; metrics register with the default
// registry at package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "timesheet"

// EventsPublishedTotal counts domain events successfully enqueued.
// Label:
//   - queue: destination queue name (e.g. "timesheet.saved")
var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of domain events published to a queue.",
	},
	[]string{"queue"},
)

// EventsPublishFailuresTotal counts publish attempts that failed or were
// skipped because the transport was absent. Publishing is best-effort, so
// these do not correspond to failed HTTP requests.
var EventsPublishFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_publish_failures_total",
		Help:      "Total number of event publishes that failed or were skipped.",
	},
	[]string{"queue"},
)

// MessagesConsumedTotal counts consumed messages by outcome.
// Labels:
//   - queue: source queue name
//   - result: "acked", "requeued", or "expired" (dropped past TTL)
var MessagesConsumedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_consumed_total",
		Help:      "Total number of messages handled by the consumer, by result.",
	},
	[]string{"queue", "result"},
)

// MessagesDeadLetteredTotal counts messages that exhausted their delivery
// budget and were moved to the dead-letter destination.
var MessagesDeadLetteredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_dead_lettered_total",
		Help:      "Total number of messages moved to a dead-letter queue.",
	},
	[]string{"queue"},
)

// QueueDepth tracks the last observed number of messages waiting in each
// queue.
var QueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Last observed number of messages waiting in each queue.",
	},
	[]string{"queue"},
)

// TimesheetUpsertsTotal counts persisted timesheet writes.
// Label:
//   - status: "Saved" or "Submitted"
var TimesheetUpsertsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "timesheet_upserts_total",
		Help:      "Total number of timesheet upserts, by resulting status.",
	},
	[]string{"status"},
)

// UsersRegisteredTotal counts successful registrations.
var UsersRegisteredTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_registered_total",
		Help:      "Total number of user accounts created.",
	},
)
