package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	EventsProcessed    prometheus.Counter
	EventsDropped      prometheus.Counter
	InvalidTransitions prometheus.Counter

	Reservations       prometheus.Counter
	ReservationRejects prometheus.Counter
	Releases           prometheus.Counter

	OrdersCommitted    prometheus.Counter
	DeliveriesAppended prometheus.Counter
	DeliveryFailures   prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	eventsProcessed := prometheus.NewCounter(prometheus.CounterOpts{Name: "merchbot_events_processed_total"})
	eventsDropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "merchbot_events_dropped_total"})
	invalid := prometheus.NewCounter(prometheus.CounterOpts{Name: "merchbot_invalid_transitions_total"})

	reservations := prometheus.NewCounter(prometheus.CounterOpts{Name: "merchbot_reservations_total"})
	rejects := prometheus.NewCounter(prometheus.CounterOpts{Name: "merchbot_reservation_rejects_total"})
	releases := prometheus.NewCounter(prometheus.CounterOpts{Name: "merchbot_releases_total"})

	committed := prometheus.NewCounter(prometheus.CounterOpts{Name: "merchbot_orders_committed_total"})
	deliveries := prometheus.NewCounter(prometheus.CounterOpts{Name: "merchbot_deliveries_appended_total"})
	deliveryFails := prometheus.NewCounter(prometheus.CounterOpts{Name: "merchbot_delivery_failures_total"})

	r.MustRegister(eventsProcessed, eventsDropped, invalid,
		reservations, rejects, releases,
		committed, deliveries, deliveryFails)

	return &Registry{
		reg:                r,
		EventsProcessed:    eventsProcessed,
		EventsDropped:      eventsDropped,
		InvalidTransitions: invalid,
		Reservations:       reservations,
		ReservationRejects: rejects,
		Releases:           releases,
		OrdersCommitted:    committed,
		DeliveriesAppended: deliveries,
		DeliveryFailures:   deliveryFails,
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
