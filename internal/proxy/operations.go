package proxy

// Operation describes one call the proxy knows how to forward. The mapping
// from operation to device endpoint is fixed; it is not configuration.
type Operation struct {
	Name   string
	Method string
	// Path is the endpoint on the gateway's management API, including the
	// get=/set= selector.
	Path string
	// Auth marks operations that require the bearer token.
	Auth bool
}

// The gateway's management API surface. Device and signal reads are open;
// telemetry, configuration, and reset require the session token issued by
// the login endpoint.
var (
	OpGatewayInfo = Operation{Name: "gateway_info", Method: "GET", Path: "/TMI/v1/gateway?get=all"}
	OpSignalInfo  = Operation{Name: "signal_info", Method: "GET", Path: "/TMI/v1/gateway?get=signal"}
	OpCellInfo    = Operation{Name: "cell_info", Method: "GET", Path: "/TMI/v1/network/telemetry?get=cell", Auth: true}
	OpClients     = Operation{Name: "clients", Method: "GET", Path: "/TMI/v1/network/telemetry?get=clients", Auth: true}
	OpSimInfo     = Operation{Name: "sim_info", Method: "GET", Path: "/TMI/v1/network/telemetry?get=sim", Auth: true}
	OpTelemetry   = Operation{Name: "telemetry", Method: "GET", Path: "/TMI/v1/network/telemetry?get=all", Auth: true}
	OpGetApConfig = Operation{Name: "get_ap_config", Method: "GET", Path: "/TMI/v1/network/configuration/v2?get=ap", Auth: true}
	OpSetApConfig = Operation{Name: "set_ap_config", Method: "POST", Path: "/TMI/v1/network/configuration/v2?set=ap", Auth: true}
	OpReboot      = Operation{Name: "reboot", Method: "POST", Path: "/TMI/v1/gateway/reset?set=reboot", Auth: true}
	OpVersion     = Operation{Name: "version", Method: "GET", Path: "/TMI/v1/version"}
	OpLogin       = Operation{Name: "login", Method: "POST", Path: "/TMI/v1/auth/login"}
)
