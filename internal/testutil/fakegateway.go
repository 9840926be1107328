// Package testutil provides test fixtures shared across packages, chiefly
// a fake gateway device speaking the TMI management API.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// Default credentials and token issued by the fake gateway.
const (
	FakeUsername = "admin"
	FakePassword = "secret"
	FakeToken    = "fake-gateway-token"
)

// FakeGateway is an httptest-backed stand-in for the physical device. All
// mutable knobs are guarded by mu; tests flip them mid-run to simulate
// reboots, hangs, and driver errors.
type FakeGateway struct {
	Server *httptest.Server

	mu sync.Mutex
	// Down makes every endpoint answer 503.
	Down bool
	// Hang delays every response; set it beyond the caller's timeout to
	// exercise the abort path.
	Hang time.Duration
	// ApSetError, when non-empty, is returned as the upstream message for
	// AP configuration writes.
	ApSetError string

	hits      map[string]int
	lastHosts []string
}

// NewFakeGateway starts a fake device. The caller must Close it.
func NewFakeGateway() *FakeGateway {
	g := &FakeGateway{hits: make(map[string]int)}
	g.Server = httptest.NewServer(http.HandlerFunc(g.serve))
	return g
}

// Close shuts the fake device down.
func (g *FakeGateway) Close() {
	g.Server.Close()
}

// Transport returns an http.Client that rewrites every outbound request to
// the fake device while preserving the original target host for
// inspection via Hosts().
func (g *FakeGateway) Transport() *http.Client {
	target, _ := url.Parse(g.Server.URL)
	return &http.Client{
		Transport: &rewriteTransport{gateway: g, target: target},
	}
}

type rewriteTransport struct {
	gateway *FakeGateway
	target  *url.URL
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.gateway.mu.Lock()
	t.gateway.lastHosts = append(t.gateway.lastHosts, req.URL.Host)
	t.gateway.mu.Unlock()

	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.target.Scheme
	clone.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(clone)
}

// Hits returns how many requests reached the given endpoint key
// ("path?query").
func (g *FakeGateway) Hits(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hits[key]
}

// Hosts returns the hosts the client attempted to reach, in order.
func (g *FakeGateway) Hosts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.lastHosts...)
}

// SetDown toggles the 503 mode.
func (g *FakeGateway) SetDown(down bool) {
	g.mu.Lock()
	g.Down = down
	g.mu.Unlock()
}

// SetHang sets the artificial response delay.
func (g *FakeGateway) SetHang(d time.Duration) {
	g.mu.Lock()
	g.Hang = d
	g.mu.Unlock()
}

// SetApSetError configures the message returned for AP config writes.
func (g *FakeGateway) SetApSetError(msg string) {
	g.mu.Lock()
	g.ApSetError = msg
	g.mu.Unlock()
}

func (g *FakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}

	g.mu.Lock()
	g.hits[key]++
	down, hang, apErr := g.Down, g.Hang, g.ApSetError
	g.mu.Unlock()

	if hang > 0 {
		select {
		case <-time.After(hang):
		case <-r.Context().Done():
			return
		}
	}
	if down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	switch key {
	case "/TMI/v1/auth/login":
		g.serveLogin(w, r)
	case "/TMI/v1/version":
		fmt.Fprint(w, `{"version": 1}`)
	case "/TMI/v1/gateway?get=all":
		fmt.Fprint(w, gatewayInfoJSON)
	case "/TMI/v1/gateway?get=signal":
		fmt.Fprint(w, signalInfoJSON)
	case "/TMI/v1/network/telemetry?get=cell":
		g.authenticated(w, r, cellInfoJSON)
	case "/TMI/v1/network/telemetry?get=clients":
		g.authenticated(w, r, clientsJSON)
	case "/TMI/v1/network/telemetry?get=sim":
		g.authenticated(w, r, simInfoJSON)
	case "/TMI/v1/network/telemetry?get=all":
		g.authenticated(w, r, telemetryJSON)
	case "/TMI/v1/network/configuration/v2?get=ap":
		g.authenticated(w, r, apConfigJSON)
	case "/TMI/v1/network/configuration/v2?set=ap":
		if apErr != "" {
			writeUpstreamError(w, http.StatusInternalServerError, apErr)
			return
		}
		g.authenticated(w, r, "") // empty body, like the real device
	case "/TMI/v1/gateway/reset?set=reboot":
		g.authenticated(w, r, "")
	default:
		writeUpstreamError(w, http.StatusNotFound, "no such endpoint")
	}
}

func (g *FakeGateway) serveLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil ||
		creds.Username != FakeUsername || creds.Password != FakePassword {
		writeUpstreamError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	fmt.Fprintf(w, `{"auth":{"token":%q,"expiration":%d}}`,
		FakeToken, time.Now().Add(time.Hour).Unix())
}

func (g *FakeGateway) authenticated(w http.ResponseWriter, r *http.Request, body string) {
	if r.Header.Get("Authorization") != "Bearer "+FakeToken {
		writeUpstreamError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	fmt.Fprint(w, body)
}

func writeUpstreamError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"result":{"message":%q}}`, msg)
}

// Canned device payloads, trimmed to the fields the dashboard renders.
const (
	gatewayInfoJSON = `{
		"device": {"hardwareVersion":"R01","macId":"aa:bb:cc:dd:ee:ff","manufacturer":"Arcadyan","model":"KVD21","role":"gateway","serial":"GW1234567","softwareVersion":"1.00.18"},
		"signal": {
			"5g": {"antennaUsed":"Internal","bands":["n41"],"bars":4,"cid":1234,"gNBID":567,"rsrp":-95,"rsrq":-10,"rssi":-80,"sinr":15},
			"generic": {"apn":"fast.example","hasIPv6":true,"registration":"registered"}
		},
		"time": {"localTime":1700000000,"localTimeZone":"UTC","upTime":86400}
	}`

	signalInfoJSON = `{
		"signal": {
			"5g": {"antennaUsed":"Internal","bands":["n41"],"bars":4,"cid":1234,"gNBID":567,"rsrp":-95,"rsrq":-10,"rssi":-80,"sinr":15},
			"generic": {"apn":"fast.example","hasIPv6":true,"registration":"registered"}
		}
	}`

	cellInfoJSON = `{
		"cell": {
			"5g": {"bandwidth":"100MHz","cqi":12,"earfcn":"520110","ecgi":"310260123","mcc":"310","mnc":"260","pci":"233","plmn":"310260",
				"sector":{"antennaUsed":"Internal","bands":["n41"],"bars":4,"cid":1234,"gNBID":567,"rsrp":-95,"rsrq":-10,"rssi":-80,"sinr":15},
				"status":true,"supportedBands":["n41","n71"],"tac":"12345"},
			"generic": {"apn":"fast.example","hasIPv6":true,"registration":"registered","roaming":false},
			"gps": {"latitude":47.6,"longitude":-122.3}
		}
	}`

	clientsJSON = `{
		"clients": {
			"2.4ghz": [{"connected":true,"ipv4":"192.168.12.100","ipv6":[],"mac":"11:22:33:44:55:66","name":"thermostat","signal":-60}],
			"5.0ghz": [{"connected":true,"ipv4":"192.168.12.101","ipv6":[],"mac":"22:33:44:55:66:77","name":"laptop","signal":-52}],
			"ethernet": [{"connected":true,"ipv4":"192.168.12.10","ipv6":[],"mac":"33:44:55:66:77:88","name":"nas"}],
			"wifi": []
		}
	}`

	simInfoJSON = `{
		"sim": {"iccId":"8901260000000000001","imei":"356938035643809","imsi":"310260000000001","msisdn":"15551234567","status":true}
	}`

	telemetryJSON = `{
		"cell": {
			"5g": {"bandwidth":"100MHz","cqi":12,"earfcn":"520110","ecgi":"310260123","mcc":"310","mnc":"260","pci":"233","plmn":"310260",
				"sector":{"antennaUsed":"Internal","bands":["n41"],"bars":4,"cid":1234,"gNBID":567,"rsrp":-95,"rsrq":-10,"rssi":-80,"sinr":15},
				"status":true,"supportedBands":["n41","n71"],"tac":"12345"},
			"generic": {"apn":"fast.example","hasIPv6":true,"registration":"registered","roaming":false},
			"gps": {"latitude":47.6,"longitude":-122.3}
		},
		"clients": {"2.4ghz":[],"5.0ghz":[],"ethernet":[],"wifi":[]},
		"sim": {"iccId":"8901260000000000001","imei":"356938035643809","imsi":"310260000000001","msisdn":"15551234567","status":true}
	}`

	apConfigJSON = `{
		"2.4ghz": {"airtimeFairness":true,"channel":"Auto","channelBandwidth":"Auto","isMUMIMOEnabled":true,"isRadioEnabled":true,"isWMMEnabled":true,"maxClients":128,"mode":"802.11ax","transmissionPower":"100%"},
		"5.0ghz": {"airtimeFairness":true,"channel":"Auto","channelBandwidth":"80MHz","isMUMIMOEnabled":true,"isRadioEnabled":true,"isWMMEnabled":true,"maxClients":128,"mode":"802.11ax","transmissionPower":"100%"},
		"ssids": [{"2.4ghzSsid":true,"5.0ghzSsid":true,"encryptionMode":"AES","encryptionVersion":"WPA2/WPA3","guest":false,"isBroadcastEnabled":true,"ssidName":"HomeNet","wpaKey":"hunter22222"}]
	}`
)
