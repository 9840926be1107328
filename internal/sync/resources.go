// Package sync keeps client-side views of the gateway fresh. It polls
// the dashboard server's routes on per-resource cadences, collapses
// concurrent fetches for the same resource, and serves the last good
// snapshot while a refresh is failing.
package sync

import "time"

// Resource names a pollable gateway view. Interval is how often a
// subscriber sees a refresh; fast-moving radio data polls tighter than
// near-static device facts.
type Resource struct {
	Name     string
	Path     string
	Interval time.Duration
	// Auth marks resources that need a gateway session. Unauthenticated
	// subscribers skip these instead of burning requests on 401s.
	Auth bool
}

var (
	ResourceSignal    = Resource{Name: "signal", Path: "/api/router/signal", Interval: 3 * time.Second}
	ResourceGateway   = Resource{Name: "gateway", Path: "/api/router/gateway", Interval: 5 * time.Second}
	ResourceCell      = Resource{Name: "cell", Path: "/api/router/cell", Interval: 5 * time.Second, Auth: true}
	ResourceTelemetry = Resource{Name: "telemetry", Path: "/api/router/telemetry", Interval: 5 * time.Second, Auth: true}
	ResourceHealth    = Resource{Name: "health", Path: "/api/router/health", Interval: 5 * time.Second}
	ResourceClients   = Resource{Name: "clients", Path: "/api/router/clients", Interval: 10 * time.Second, Auth: true}
	ResourceSim       = Resource{Name: "sim", Path: "/api/router/sim", Interval: 30 * time.Second, Auth: true}
	ResourceApConfig  = Resource{Name: "ap", Path: "/api/router/ap", Interval: 30 * time.Second, Auth: true}
	ResourceVersion   = Resource{Name: "version", Path: "/api/router/version", Interval: 60 * time.Second}
)

// Resources lists every pollable view, slowest-changing last.
var Resources = []Resource{
	ResourceSignal,
	ResourceGateway,
	ResourceCell,
	ResourceTelemetry,
	ResourceHealth,
	ResourceClients,
	ResourceSim,
	ResourceApConfig,
	ResourceVersion,
}

// Lookup returns the resource with the given name.
func Lookup(name string) (Resource, bool) {
	for _, r := range Resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}
