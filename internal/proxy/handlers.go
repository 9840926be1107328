package proxy

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Request headers the browser client attaches from its credential store.
const (
	HeaderGatewayIP = "X-Gateway-IP"
	HeaderAuthToken = "X-Auth-Token"
)

// Handler exposes the /api/router surface and forwards each route through
// the Forwarder.
type Handler struct {
	fwd    *Forwarder
	logger *zap.Logger
}

// NewHandler creates the inbound HTTP handler for the proxy.
func NewHandler(fwd *Forwarder, logger *zap.Logger) *Handler {
	return &Handler{fwd: fwd, logger: logger}
}

// RegisterRoutes registers the proxy routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/router/gateway", h.forward(OpGatewayInfo))
	mux.HandleFunc("GET /api/router/signal", h.forward(OpSignalInfo))
	mux.HandleFunc("GET /api/router/cell", h.forward(OpCellInfo))
	mux.HandleFunc("GET /api/router/clients", h.forward(OpClients))
	mux.HandleFunc("GET /api/router/sim", h.forward(OpSimInfo))
	mux.HandleFunc("GET /api/router/telemetry", h.forward(OpTelemetry))
	mux.HandleFunc("GET /api/router/ap", h.forward(OpGetApConfig))
	mux.HandleFunc("POST /api/router/ap", h.handleSetApConfig)
	mux.HandleFunc("POST /api/router/reboot", h.handleReboot)
	mux.HandleFunc("GET /api/router/version", h.forward(OpVersion))
	mux.HandleFunc("POST /api/router/login", h.handleLogin)
	mux.HandleFunc("POST /api/router/logout", h.handleLogout)
	mux.HandleFunc("GET /api/router/health", h.handleHealth)
}

// credentials pulls the per-request gateway address and token off the
// inbound headers. The address is raw here; validation happens in the
// forwarder on every call.
func credentials(r *http.Request) (address, token string) {
	return r.Header.Get(HeaderGatewayIP), r.Header.Get(HeaderAuthToken)
}

// forward builds a GET passthrough handler for the given operation.
func (h *Handler) forward(op Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, token := credentials(r)
		payload, err := h.fwd.Do(r.Context(), Call{Op: op, Address: address, Token: token})
		if err != nil {
			h.writeError(w, op, err)
			return
		}
		writeRawJSON(w, http.StatusOK, payload)
	}
}

// handleSetApConfig forwards a full AP configuration object to the
// gateway. The device replaces the whole configuration; there is no
// field-level patching.
func (h *Handler) handleSetApConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(body) == 0 || !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	address, token := credentials(r)
	if _, err := h.fwd.Do(r.Context(), Call{Op: OpSetApConfig, Address: address, Token: token, Body: body}); err != nil {
		h.writeError(w, OpSetApConfig, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleReboot triggers a gateway reboot. Fire-and-forget: the device
// drops off the network for several minutes afterwards, so callers watch
// the health endpoint rather than this response.
func (h *Handler) handleReboot(w http.ResponseWriter, r *http.Request) {
	address, token := credentials(r)
	if _, err := h.fwd.Do(r.Context(), Call{Op: OpReboot, Address: address, Token: token}); err != nil {
		h.writeError(w, OpReboot, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// loginRequest is the JSON body for POST /api/router/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	RouterIP string `json:"routerIp"`
}

// LoginResponse is the JSON response for a login attempt.
type LoginResponse struct {
	Success    bool   `json:"success"`
	Token      string `json:"token,omitempty"`
	Expiration int64  `json:"expiration,omitempty"`
	RouterIP   string `json:"routerIp,omitempty"`
	Username   string `json:"username,omitempty"`
	Error      string `json:"error,omitempty"`
}

// upstreamLogin is the gateway's own login response shape.
type upstreamLogin struct {
	Auth struct {
		Token      string `json:"token"`
		Expiration int64  `json:"expiration"`
	} `json:"auth"`
	Result struct {
		Message string `json:"message"`
	} `json:"result"`
}

// handleLogin exchanges operator credentials for a gateway session token.
// The token is relayed to the client for its own store; nothing is kept
// server-side.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, LoginResponse{Success: false, Error: "invalid request body"})
		return
	}

	ip := ResolveGatewayAddr(req.RouterIP, h.fwd.Config().DefaultGatewayIP)

	body, err := json.Marshal(map[string]string{
		"username": req.Username,
		"password": req.Password,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, LoginResponse{Success: false, Error: "internal error"})
		return
	}

	payload, err := h.fwd.Do(r.Context(), Call{Op: OpLogin, Address: ip, Body: body})
	if err != nil {
		// The device answers failed logins with an error status; treat those
		// as bad credentials and everything else as unreachable. Upstream
		// internals stay out of the reply.
		switch KindOf(err) {
		case KindUpstream, KindNotAuthenticated:
			h.logger.Info("login rejected by gateway", zap.String("address", ip))
			writeJSON(w, http.StatusUnauthorized, LoginResponse{Success: false, Error: "Invalid credentials"})
		default:
			h.logger.Warn("login forwarding failed", zap.String("address", ip), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, LoginResponse{
				Success: false,
				Error:   "Connection failed. Is the gateway reachable?",
			})
		}
		return
	}

	var up upstreamLogin
	if err := json.Unmarshal(payload, &up); err != nil || up.Auth.Token == "" {
		msg := up.Result.Message
		if msg == "" {
			msg = "Invalid credentials"
		}
		writeJSON(w, http.StatusUnauthorized, LoginResponse{Success: false, Error: msg})
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Success:    true,
		Token:      up.Auth.Token,
		Expiration: up.Auth.Expiration,
		RouterIP:   ip,
		Username:   req.Username,
	})
}

// handleLogout acknowledges a logout. The session lives in the client's
// credential store, so there is nothing to tear down here.
func (h *Handler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HealthStatus is the response for GET /api/router/health.
type HealthStatus struct {
	Status  string `json:"status"` // online, offline, error
	IP      string `json:"ip"`
	Message string `json:"message,omitempty"`
}

// handleHealth probes the gateway with the short health budget. Always
// answers 200; reachability is data, not an error.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	address, _ := credentials(r)
	ip := ResolveGatewayAddr(address, h.fwd.Config().DefaultGatewayIP)

	status := HealthStatus{Status: "online", IP: ip}
	if err := h.fwd.Probe(r.Context(), ip); err != nil {
		switch KindOf(err) {
		case KindTimeout:
			status.Status = "offline"
			status.Message = "Connection timeout"
		case KindUnreachable:
			status.Status = "offline"
			status.Message = err.Error()
		default:
			status.Status = "error"
			status.Message = "Gateway returned error"
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// writeError maps a forwarding failure onto the inbound contract: 401 for
// not-authenticated, 500 with a distinguishing message for the rest.
func (h *Handler) writeError(w http.ResponseWriter, op Operation, err error) {
	if NotAuthenticated(err) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Not authenticated"})
		return
	}
	h.logger.Warn("gateway request failed",
		zap.String("operation", op.Name),
		zap.String("kind", string(KindOf(err))),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeRawJSON writes an already-encoded JSON payload.
func writeRawJSON(w http.ResponseWriter, status int, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
