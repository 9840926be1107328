// Package models defines the data shapes reported by the gateway's local
// management API. Signal-quality metrics (rsrp, rsrq, sinr, rssi, cqi) are
// carried as opaque numeric fields; cellgate renders them, it does not
// interpret them.
package models

// DeviceInfo identifies the physical gateway hardware.
type DeviceInfo struct {
	HardwareVersion string `json:"hardwareVersion"`
	MacID           string `json:"macId"`
	Manufacturer    string `json:"manufacturer"`
	Model           string `json:"model"`
	Role            string `json:"role"`
	Serial          string `json:"serial"`
	SoftwareVersion string `json:"softwareVersion"`
}

// Sector holds per-radio signal readings for one cellular connection.
// GNBID is set for 5G sectors, ENBID for 4G; the other is zero.
type Sector struct {
	AntennaUsed string   `json:"antennaUsed"`
	Bands       []string `json:"bands"`
	Bars        float64  `json:"bars"`
	CID         int      `json:"cid"`
	GNBID       int      `json:"gNBID,omitempty"`
	ENBID       int      `json:"eNBID,omitempty"`
	RSRP        float64  `json:"rsrp"`
	RSRQ        float64  `json:"rsrq"`
	RSSI        float64  `json:"rssi"`
	SINR        float64  `json:"sinr"`
}

// GenericSignal holds connection attributes common to all radios.
type GenericSignal struct {
	APN          string `json:"apn"`
	HasIPv6      bool   `json:"hasIPv6"`
	Registration string `json:"registration"`
	Roaming      bool   `json:"roaming,omitempty"`
}

// Signal groups per-technology sector readings. The 4G sector is omitted
// on 5G-standalone connections.
type Signal struct {
	FiveG   *Sector       `json:"5g,omitempty"`
	FourG   *Sector       `json:"4g,omitempty"`
	Generic GenericSignal `json:"generic"`
}

// TimeInfo reports the gateway's clock and uptime.
type TimeInfo struct {
	LocalTime     int64  `json:"localTime"`
	LocalTimeZone string `json:"localTimeZone"`
	UpTime        int64  `json:"upTime"`
}

// GatewayInfo is the combined device/signal/time payload.
type GatewayInfo struct {
	Device DeviceInfo `json:"device"`
	Signal Signal     `json:"signal"`
	Time   TimeInfo   `json:"time"`
}

// SignalInfo is the signal-only payload used for fast polling.
type SignalInfo struct {
	Signal Signal `json:"signal"`
}

// CellSector describes one cell/tower attachment.
type CellSector struct {
	Bandwidth      string   `json:"bandwidth"`
	CQI            float64  `json:"cqi"`
	EARFCN         string   `json:"earfcn"`
	ECGI           string   `json:"ecgi"`
	MCC            string   `json:"mcc"`
	MNC            string   `json:"mnc"`
	PCI            string   `json:"pci"`
	PLMN           string   `json:"plmn"`
	Sector         Sector   `json:"sector"`
	Status         bool     `json:"status"`
	SupportedBands []string `json:"supportedBands"`
	TAC            string   `json:"tac"`
}

// GPS is the gateway's reported location.
type GPS struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Cell is the tower-attachment payload including location.
type Cell struct {
	FiveG   *CellSector   `json:"5g,omitempty"`
	FourG   *CellSector   `json:"4g,omitempty"`
	Generic GenericSignal `json:"generic"`
	GPS     GPS           `json:"gps"`
}

// CellInfo wraps the cell payload as returned by the telemetry endpoint.
type CellInfo struct {
	Cell Cell `json:"cell"`
}

// Client is one device connected to the gateway.
type Client struct {
	Connected bool     `json:"connected"`
	IPv4      string   `json:"ipv4"`
	IPv6      []string `json:"ipv6"`
	MAC       string   `json:"mac"`
	Name      string   `json:"name"`
	Signal    *float64 `json:"signal,omitempty"`
}

// ClientList groups connected devices by attachment band.
type ClientList struct {
	Band24   []Client `json:"2.4ghz"`
	Band50   []Client `json:"5.0ghz"`
	Band60   []Client `json:"6.0ghz,omitempty"`
	Ethernet []Client `json:"ethernet"`
	WiFi     []Client `json:"wifi"`
}

// ClientInfo wraps the connected-client lists.
type ClientInfo struct {
	Clients ClientList `json:"clients"`
}

// Sim holds SIM card identifiers and status.
type Sim struct {
	ICCID  string `json:"iccId"`
	IMEI   string `json:"imei"`
	IMSI   string `json:"imsi"`
	MSISDN string `json:"msisdn"`
	Status bool   `json:"status"`
}

// SimInfo wraps the SIM payload.
type SimInfo struct {
	Sim Sim `json:"sim"`
}

// TelemetryAll is the combined cell+clients+sim payload fetched in a
// single upstream call.
type TelemetryAll struct {
	Cell    Cell       `json:"cell"`
	Clients ClientList `json:"clients"`
	Sim     Sim        `json:"sim"`
}

// VersionInfo is the gateway management API version.
type VersionInfo struct {
	Version int `json:"version"`
}
