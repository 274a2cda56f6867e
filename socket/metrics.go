package socket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_socket_connections",
		Help: "Number of live socket connections on this instance",
	})

	// inboundEventsTotal counts inbound events by name and outcome
	// (ok, invalid, error, rate_limited, dropped, panic)
	inboundEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_socket_inbound_events_total",
		Help: "Total number of inbound socket events, by event and outcome",
	}, []string{"event", "outcome"})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_socket_deliveries_total",
		Help: "Total number of room deliveries issued on this instance, by event",
	}, []string{"event"})

	presenceSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_presence_swept_total",
		Help: "Total number of stale presence records removed",
	})
)
