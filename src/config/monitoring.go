package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carries the process-wide counters exposed on the web /metrics
// endpoint. A single instance is built at startup and handed to the
// services and components that account for work done.
type Metrics struct {
	Registry *prometheus.Registry

	ActionsAppended    *prometheus.CounterVec
	MessagesInbound    prometheus.Counter
	MessagesOutbound   prometheus.Counter
	RemindersSent      *prometheus.CounterVec
	InforequestsClosed prometheus.Counter
	SchedulerPasses    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		ActionsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "actions_appended_total",
			Help:      "Actions appended to branches, by action type.",
		}, []string{"type"}),
		MessagesInbound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "messages_inbound_total",
			Help:      "Inbound messages accepted from the mail transport.",
		}),
		MessagesOutbound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "messages_outbound_total",
			Help:      "Outbound messages handed to the mail transport.",
		}),
		RemindersSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "reminders_sent_total",
			Help:      "Reminder mails sent, by reminder kind.",
		}, []string{"kind"}),
		InforequestsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "inforequests_closed_total",
			Help:      "Inforequests closed by the scheduler or on request.",
		}),
		SchedulerPasses: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Name:      "scheduler_pass_duration_seconds",
			Help:      "Duration of scheduler passes, by pass name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pass"}),
	}
}
