// Package proxy forwards browser requests to the physical gateway's local
// management API. It is stateless: credentials and the target address
// arrive on each request, are validated, and are never persisted.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Prometheus forward metrics, labeled by operation and outcome kind
// ("ok" for success).
var (
	forwardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellgate_forwards_total",
			Help: "Total number of calls forwarded to the gateway.",
		},
		[]string{"operation", "outcome"},
	)
	forwardDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cellgate_forward_duration_seconds",
			Help:    "Forwarded call duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(forwardsTotal)
	prometheus.MustRegister(forwardDuration)
}

// Call is the input for one forwarded request.
type Call struct {
	Op Operation
	// Address is the raw client-supplied gateway address. It is re-validated
	// here regardless of what the client claims to have validated.
	Address string
	// Token is the bearer token for operations with Op.Auth set.
	Token string
	// Body is the request body for write operations; nil for reads.
	Body json.RawMessage
}

// Forwarder issues outbound calls against the gateway management API and
// normalizes every outcome into either a raw JSON payload or an *Error.
type Forwarder struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewForwarder creates a Forwarder. Pass a nil httpClient for the default;
// tests inject one that rewrites requests to a fake device. The per-call
// timeout is enforced via request context rather than http.Client.Timeout
// so health probes can use a shorter budget on the same client.
func NewForwarder(cfg Config, httpClient *http.Client, logger *zap.Logger) *Forwarder {
	if cfg.DefaultGatewayIP == "" {
		cfg.DefaultGatewayIP = DefaultConfig().DefaultGatewayIP
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.HealthTimeout == 0 {
		cfg.HealthTimeout = DefaultConfig().HealthTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Forwarder{
		cfg:    cfg,
		client: httpClient,
		logger: logger,
	}
}

// Config returns the forwarder's effective configuration.
func (f *Forwarder) Config() Config {
	return f.cfg
}

// Do forwards one call. On success the gateway's raw JSON body is returned,
// with an empty upstream body normalized to "{}" (several write operations
// return nothing). All failures come back as *Error with a Kind.
func (f *Forwarder) Do(ctx context.Context, call Call) (json.RawMessage, error) {
	payload, err := f.do(ctx, call, f.cfg.Timeout)

	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	forwardsTotal.WithLabelValues(call.Op.Name, outcome).Inc()

	return payload, err
}

func (f *Forwarder) do(ctx context.Context, call Call, timeout time.Duration) (json.RawMessage, error) {
	if call.Op.Auth && call.Token == "" {
		return nil, errNotAuthenticated()
	}

	addr := ResolveGatewayAddr(call.Address, f.cfg.DefaultGatewayIP)
	if addr != call.Address && call.Address != "" {
		f.logger.Debug("rejected gateway address, using default",
			zap.String("supplied", call.Address),
			zap.String("default", addr),
		)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if call.Body != nil {
		body = bytes.NewReader(call.Body)
	}

	url := fmt.Sprintf("http://%s%s", addr, call.Op.Path)
	req, err := http.NewRequestWithContext(ctx, call.Op.Method, url, body)
	if err != nil {
		return nil, errUnreachable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if call.Op.Auth {
		req.Header.Set("Authorization", "Bearer "+call.Token)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	forwardDuration.WithLabelValues(call.Op.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			f.logger.Warn("gateway call timed out",
				zap.String("operation", call.Op.Name),
				zap.String("address", addr),
				zap.Duration("timeout", timeout),
			)
			return nil, errTimeout()
		}
		return nil, errUnreachable(err)
	}
	defer resp.Body.Close()

	// An expired or missing session looks the same to callers no matter how
	// the gateway phrases it.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errNotAuthenticated()
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errUnreachable(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errUpstream(resp.StatusCode, upstreamMessage(payload))
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(payload) {
		return nil, errMalformed()
	}
	return payload, nil
}

// upstreamResult is the error envelope the gateway wraps its messages in.
type upstreamResult struct {
	Result struct {
		Message string `json:"message"`
	} `json:"result"`
}

// upstreamMessage extracts the gateway's own error message from an error
// body, or "" if the body is not parseable.
func upstreamMessage(body []byte) string {
	var r upstreamResult
	if err := json.Unmarshal(body, &r); err != nil {
		return ""
	}
	return r.Result.Message
}

// Probe checks gateway reachability with the unauthenticated version
// endpoint and the short health budget. It reports nil when the gateway
// answered 2xx, and a normalized *Error otherwise.
func (f *Forwarder) Probe(ctx context.Context, address string) error {
	_, err := f.do(ctx, Call{Op: OpVersion, Address: address}, f.cfg.HealthTimeout)
	return err
}
