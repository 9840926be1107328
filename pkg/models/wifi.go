package models

// RadioConfig holds the per-band radio settings of the access point.
type RadioConfig struct {
	AirtimeFairness   bool   `json:"airtimeFairness"`
	Channel           string `json:"channel"`
	ChannelBandwidth  string `json:"channelBandwidth"`
	IsMUMIMOEnabled   bool   `json:"isMUMIMOEnabled"`
	IsRadioEnabled    bool   `json:"isRadioEnabled"`
	IsWMMEnabled      bool   `json:"isWMMEnabled"`
	MaxClients        int    `json:"maxClients"`
	Mode              string `json:"mode"`
	TransmissionPower string `json:"transmissionPower"`
}

// SSID is one broadcast network. The per-band booleans select which
// radios carry it.
type SSID struct {
	Band24Enabled      bool   `json:"2.4ghzSsid"`
	Band50Enabled      bool   `json:"5.0ghzSsid"`
	Band60Enabled      *bool  `json:"6.0ghzSsid,omitempty"`
	EncryptionMode     string `json:"encryptionMode"`
	EncryptionVersion  string `json:"encryptionVersion"`
	Guest              bool   `json:"guest"`
	IsBroadcastEnabled bool   `json:"isBroadcastEnabled"`
	SSIDName           string `json:"ssidName"`
	WPAKey             string `json:"wpaKey"`
}

// BandSteering toggles automatic band selection for clients.
type BandSteering struct {
	IsEnabled bool `json:"isEnabled"`
}

// ApConfig is the full WiFi access-point configuration. Writes replace the
// whole object; the gateway does not support field-level patching.
type ApConfig struct {
	Band24       *RadioConfig  `json:"2.4ghz,omitempty"`
	Band50       *RadioConfig  `json:"5.0ghz,omitempty"`
	Band60       *RadioConfig  `json:"6.0ghz,omitempty"`
	BandSteering *BandSteering `json:"bandSteering,omitempty"`
	SSIDs        []SSID        `json:"ssids"`
}
