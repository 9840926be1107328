package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	stdsync "sync"

	"github.com/cellgate/cellgate/pkg/models"
)

// ErrConfirmRequired is returned by Save when the edit disables the 5GHz
// radio and the caller has not confirmed. Most clients sit on that band;
// disabling it silently would cut them off.
var ErrConfirmRequired = errors.New("disabling the 5GHz radio requires confirmation")

// ErrNoActiveBand is returned when an SSID has every band switched off.
var ErrNoActiveBand = errors.New("each network needs at least one band enabled")

// Draft is a local working copy of the access-point configuration.
// Edits accumulate against a loaded snapshot and are written back as one
// full object; the gateway has no field-level patching.
type Draft struct {
	client *Client
	mgr    *Manager

	mu     stdsync.Mutex
	base   models.ApConfig
	cur    models.ApConfig
	loaded bool
}

// NewDraft creates an empty draft. Load it before editing.
func NewDraft(client *Client, mgr *Manager) *Draft {
	return &Draft{client: client, mgr: mgr}
}

// Load fetches the current configuration and resets the draft to it.
// Pending edits are discarded.
func (d *Draft) Load(ctx context.Context) error {
	payload, err := d.client.Get(ctx, ResourceApConfig.Path)
	if err != nil {
		return fmt.Errorf("load ap config: %w", err)
	}

	var cfg models.ApConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return fmt.Errorf("decode ap config: %w", err)
	}

	d.mu.Lock()
	d.base = cfg
	d.cur = cloneConfig(cfg)
	d.loaded = true
	d.mu.Unlock()
	return nil
}

// Config returns the draft's current state.
func (d *Draft) Config() models.ApConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneConfig(d.cur)
}

// Update applies an edit to the draft.
func (d *Draft) Update(fn func(*models.ApConfig)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return errors.New("draft not loaded")
	}
	fn(&d.cur)
	return nil
}

// Dirty reports whether the draft differs from the loaded snapshot.
func (d *Draft) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded && !reflect.DeepEqual(d.base, d.cur)
}

// Reset discards pending edits, restoring the loaded snapshot.
func (d *Draft) Reset() {
	d.mu.Lock()
	d.cur = cloneConfig(d.base)
	d.mu.Unlock()
}

// Disables5GHz reports whether the draft turns the 5GHz radio off while
// the loaded snapshot had it on.
func (d *Draft) Disables5GHz() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	wasOn := d.base.Band50 != nil && d.base.Band50.IsRadioEnabled
	isOn := d.cur.Band50 != nil && d.cur.Band50.IsRadioEnabled
	return wasOn && !isOn
}

// Validate checks the draft against the device's rules.
func (d *Draft) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return errors.New("draft not loaded")
	}
	for _, s := range d.cur.SSIDs {
		band60 := s.Band60Enabled != nil && *s.Band60Enabled
		if !s.Band24Enabled && !s.Band50Enabled && !band60 {
			return fmt.Errorf("%w: %s", ErrNoActiveBand, s.SSIDName)
		}
	}
	return nil
}

// Save validates the draft and writes it to the gateway as one full
// object. When the edit disables the 5GHz radio, confirmed must be set.
// Writes race naively: the device offers no version token, so the last
// save wins. On success the draft re-bases onto what was written and the
// cached ap view is invalidated.
func (d *Draft) Save(ctx context.Context, confirmed bool) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Disables5GHz() && !confirmed {
		return ErrConfirmRequired
	}

	d.mu.Lock()
	cfg := cloneConfig(d.cur)
	d.mu.Unlock()

	if _, err := d.client.Post(ctx, ResourceApConfig.Path, cfg); err != nil {
		return errors.New(FriendlyError(err))
	}

	d.mu.Lock()
	d.base = cfg
	d.cur = cloneConfig(cfg)
	d.mu.Unlock()

	if d.mgr != nil {
		d.mgr.Invalidate(ResourceApConfig.Name)
	}
	return nil
}

// FriendlyError rewrites known device failure strings into messages an
// operator can act on. Unknown failures pass through unchanged.
func FriendlyError(err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case errors.Is(err, ErrAuthExpired):
		return "Your session has expired. Please log in again."
	case strings.Contains(lower, "driver is busy"):
		return "The gateway's WiFi driver is busy. Wait a moment and try again."
	case strings.Contains(lower, "not authenticated"):
		return "Your session has expired. Please log in again."
	default:
		return msg
	}
}

// cloneConfig deep-copies a configuration so draft edits never alias the
// loaded snapshot.
func cloneConfig(c models.ApConfig) models.ApConfig {
	out := c
	if c.Band24 != nil {
		v := *c.Band24
		out.Band24 = &v
	}
	if c.Band50 != nil {
		v := *c.Band50
		out.Band50 = &v
	}
	if c.Band60 != nil {
		v := *c.Band60
		out.Band60 = &v
	}
	if c.BandSteering != nil {
		v := *c.BandSteering
		out.BandSteering = &v
	}
	out.SSIDs = make([]models.SSID, len(c.SSIDs))
	copy(out.SSIDs, c.SSIDs)
	for i := range out.SSIDs {
		if b := c.SSIDs[i].Band60Enabled; b != nil {
			v := *b
			out.SSIDs[i].Band60Enabled = &v
		}
	}
	return out
}
