package router

import (
	"buzz-client/internal/authctx"
	"buzz-client/internal/metrics"
)

// AuthSource supplies the auth value navigation is gated on.
type AuthSource interface {
	Snapshot() authctx.Value
}

// Navigator pairs the router with the auth gate for callers that render.
type Navigator struct {
	router  *Router
	auth    AuthSource
	metrics metrics.MetricsCollector
}

func NewNavigator(r *Router, auth AuthSource, collector metrics.MetricsCollector) *Navigator {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Navigator{router: r, auth: auth, metrics: collector}
}

// Navigate moves to page and returns what should be mounted there.
func (n *Navigator) Navigate(page Page, selectedID string) (Decision, error) {
	state, err := n.router.Navigate(page, selectedID)
	if err != nil {
		return Decision{}, err
	}
	d := Gate(state, n.auth.Snapshot())
	n.metrics.RecordNavigation(page.String(), d.Allowed)
	return d, nil
}

// Current gates the mounted state against the latest auth value.
func (n *Navigator) Current() Decision {
	return Gate(n.router.State(), n.auth.Snapshot())
}

// Decide gates an arbitrary state without navigating.
func (n *Navigator) Decide(state State) Decision {
	return Gate(state, n.auth.Snapshot())
}
