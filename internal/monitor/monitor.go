// Package monitor watches the gateway from the server side. It probes
// the device on a fixed cadence and publishes reachability transitions,
// so connected dashboards learn about an outage without waiting for
// their own poll to fail.
package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/cellgate/cellgate/internal/proxy"
)

var (
	gatewayUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cellgate_gateway_up",
		Help: "Whether the gateway answered the last probe (1 = online).",
	})
	gatewayPingRTT = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cellgate_gateway_ping_rtt_seconds",
		Help: "ICMP round-trip time to the gateway from the last probe.",
	})
)

// Config holds the monitor settings.
type Config struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
	// PingCount is how many ICMP echoes each probe sends. Zero disables
	// the ICMP leg; reachability then rests on the HTTP probe alone.
	PingCount int `mapstructure:"ping_count"`
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Interval:    5 * time.Second,
		PingTimeout: 2 * time.Second,
		PingCount:   1,
	}
}

// Prober answers whether the gateway's API is reachable.
type Prober interface {
	Probe(ctx context.Context, address string) error
}

// Status is one observation of the gateway.
type Status struct {
	Status    string    `json:"status"` // online, offline, error
	IP        string    `json:"ip"`
	Message   string    `json:"message,omitempty"`
	Reachable bool      `json:"reachable"` // ICMP echo answered
	PingMs    float64   `json:"pingMs,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Monitor probes one gateway and notifies listeners on state changes.
type Monitor struct {
	cfg     Config
	prober  Prober
	address string
	logger  *zap.Logger

	mu        sync.Mutex
	last      Status
	observed  bool
	listeners []func(Status)
}

// New creates a monitor for the gateway at address.
func New(cfg Config, prober Prober, address string, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		prober:  prober,
		address: address,
		logger:  logger,
	}
}

// OnChange registers a listener for status transitions. Register before
// Run; listeners are called from the monitor goroutine.
func (m *Monitor) OnChange(fn func(Status)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Status returns the last observation, zero before the first probe.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run probes until ctx is done. The first probe happens immediately.
func (m *Monitor) Run(ctx context.Context) {
	if !m.cfg.Enabled {
		m.logger.Info("gateway monitor disabled")
		return
	}

	m.logger.Info("gateway monitor started",
		zap.String("address", m.address),
		zap.Duration("interval", m.cfg.Interval),
	)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		m.observe(m.check(ctx))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// check runs one probe cycle: the HTTP API probe decides the status, an
// ICMP echo adds the network-level signal.
func (m *Monitor) check(ctx context.Context) Status {
	st := Status{Status: "online", IP: m.address, CheckedAt: time.Now()}

	if err := m.prober.Probe(ctx, m.address); err != nil {
		switch proxy.KindOf(err) {
		case proxy.KindTimeout:
			st.Status = "offline"
			st.Message = "Connection timeout"
		case proxy.KindUnreachable:
			st.Status = "offline"
			st.Message = err.Error()
		default:
			st.Status = "error"
			st.Message = "Gateway returned error"
		}
	}

	if m.cfg.PingCount > 0 {
		if rtt, ok := m.ping(ctx); ok {
			st.Reachable = true
			st.PingMs = float64(rtt) / float64(time.Millisecond)
			gatewayPingRTT.Set(rtt.Seconds())
		}
	}

	if st.Status == "online" {
		gatewayUp.Set(1)
	} else {
		gatewayUp.Set(0)
	}
	return st
}

// ping sends ICMP echoes to the gateway and returns the average RTT.
func (m *Monitor) ping(ctx context.Context) (time.Duration, bool) {
	pinger, err := probing.NewPinger(m.address)
	if err != nil {
		m.logger.Debug("failed to create pinger", zap.String("ip", m.address), zap.Error(err))
		return 0, false
	}

	pinger.Count = m.cfg.PingCount
	pinger.Timeout = m.cfg.PingTimeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			m.logger.Debug("ping failed", zap.String("ip", m.address), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		return 0, false
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		return stats.AvgRtt, true
	}
	return 0, false
}

// observe stores the observation and notifies listeners when the status
// changed since the previous one.
func (m *Monitor) observe(st Status) {
	m.mu.Lock()
	changed := !m.observed || m.last.Status != st.Status
	m.last = st
	m.observed = true
	listeners := m.listeners
	m.mu.Unlock()

	if !changed {
		return
	}

	m.logger.Info("gateway status changed",
		zap.String("status", st.Status),
		zap.String("address", st.IP),
		zap.String("message", st.Message),
	)
	for _, fn := range listeners {
		fn(st)
	}
}
