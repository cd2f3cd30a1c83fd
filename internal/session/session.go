// Package session drives a single device visit: open a connector session,
// identify the device, enumerate its neighbors, and always release the
// session on exit.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/user/netcrawl/internal/connect"
	"github.com/user/netcrawl/internal/model"
	"github.com/user/netcrawl/internal/textfsm"
	"github.com/user/netcrawl/internal/util"
)

// ErrParse means command output matched no usable record, or a required
// identification field was absent.
var ErrParse = errors.New("parse error")

// Options configures visit behavior.
type Options struct {
	Credentials    connect.Credentials
	CommandTimeout time.Duration
	Retries        int
	RetryBackoff   time.Duration
	DefaultFamily  string
}

// Manager performs device visits over a Connector, structuring command
// output through the template store. Managers are safe for concurrent use;
// each visit holds exactly one live session.
type Manager struct {
	connector connect.Connector
	templates *textfsm.Store
	opts      Options
}

// NewManager creates a session manager.
func NewManager(connector connect.Connector, templates *textfsm.Store, opts Options) *Manager {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 30 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.DefaultFamily == "" {
		opts.DefaultFamily = "cisco_ios"
	}
	return &Manager{connector: connector, templates: templates, opts: opts}
}

// Visit opens a session to target, identifies the device and enumerates its
// CDP neighbors. Zero neighbors is a valid result (a leaf device). The
// returned record carries raw parsed values; key normalization and
// persistence are the caller's responsibility.
func (m *Manager) Visit(ctx context.Context, target, family string) (*model.DeviceRecord, []model.Neighbor, error) {
	fam, ok := FamilyFor(family)
	if !ok {
		fam, ok = FamilyFor(m.opts.DefaultFamily)
		if !ok {
			return nil, nil, errors.Errorf("unknown device family %q", family)
		}
	}

	log := util.Log().With().Str("device", target).Str("family", fam.Name).Logger()

	log.Debug().Str("phase", "connecting").Msg("opening session")
	sess, err := m.connector.Open(ctx, target, m.opts.Credentials, fam.Name)
	if err != nil {
		return nil, nil, err
	}
	// The session is released on every exit path, success or failure.
	defer func() {
		log.Debug().Str("phase", "closing").Msg("releasing session")
		if cerr := sess.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("session close failed")
		}
	}()

	log.Debug().Str("phase", "identifying").Msg("issuing identification command")
	record, err := m.identify(ctx, sess, fam)
	if err != nil {
		return nil, nil, err
	}

	log.Debug().Str("phase", "discovering").Msg("issuing neighbor enumeration command")
	neighbors, err := m.discover(ctx, sess, fam)
	if err != nil {
		return nil, nil, err
	}

	log.Debug().Int("neighbors", len(neighbors)).Msg("visit complete")
	return record, neighbors, nil
}

func (m *Manager) identify(ctx context.Context, sess connect.Session, fam Family) (*model.DeviceRecord, error) {
	output, err := m.runCommand(ctx, sess, fam.IdentifyCommand)
	if err != nil {
		return nil, err
	}

	tmpl, err := m.templates.Load(fam.IdentifyTemplate)
	if err != nil {
		return nil, err
	}
	records, err := textfsm.NewParser(tmpl).ParseString(output)
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "identify via %s: %v", fam.IdentifyTemplate, err)
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(ErrParse, "identification yielded no record for %q", fam.IdentifyCommand)
	}

	rec := records[0]
	hostname := rec.String("HOSTNAME")
	if hostname == "" {
		return nil, errors.Wrap(ErrParse, "identification record has no hostname")
	}

	return &model.DeviceRecord{
		Hostname:       hostname,
		DeviceType:     fam.Name,
		Version:        rec.String("VERSION"),
		Rommon:         rec.String("ROMMON"),
		Uptime:         rec.String("UPTIME"),
		ConfigRegister: rec.String("CONFIG_REGISTER"),
		Platforms:      rec.List("HARDWARE"),
		Serials:        rec.List("SERIAL"),
		MACAddresses:   rec.List("MAC_ADDRESS"),
	}, nil
}

func (m *Manager) discover(ctx context.Context, sess connect.Session, fam Family) ([]model.Neighbor, error) {
	output, err := m.runCommand(ctx, sess, fam.NeighborCommand)
	if err != nil {
		return nil, err
	}

	tmpl, err := m.templates.Load(fam.NeighborTemplate)
	if err != nil {
		return nil, err
	}
	records, err := textfsm.NewParser(tmpl).ParseString(output)
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "discover via %s: %v", fam.NeighborTemplate, err)
	}

	neighbors := make([]model.Neighbor, 0, len(records))
	for _, rec := range records {
		name := rec.String("NEIGHBOR_NAME")
		if name == "" {
			// A malformed neighbor block is dropped; the rest of the
			// records from this device are still used.
			continue
		}
		neighbors = append(neighbors, model.Neighbor{
			Hostname:        name,
			MgmtIP:          rec.String("MGMT_ADDRESS"),
			Platform:        rec.String("PLATFORM"),
			Capabilities:    rec.String("CAPABILITIES"),
			LocalInterface:  rec.String("LOCAL_INTERFACE"),
			RemoteInterface: rec.String("NEIGHBOR_INTERFACE"),
			Version:         rec.String("NEIGHBOR_DESCRIPTION"),
		})
	}
	return neighbors, nil
}

// runCommand issues one command, retrying on timeout, command rejection and
// empty output up to the configured bound with linear backoff.
func (m *Manager) runCommand(ctx context.Context, sess connect.Session, command string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= m.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * m.opts.RetryBackoff):
			case <-ctx.Done():
				return "", errors.Wrapf(connect.ErrCommandTimeout, "run %q: %v", command, ctx.Err())
			}
		}

		output, err := sess.Run(ctx, command, m.opts.CommandTimeout)
		if err == nil {
			if strings.TrimSpace(output) == "" {
				lastErr = errors.Wrapf(connect.ErrCommand, "empty output for %q", command)
				continue
			}
			return output, nil
		}
		lastErr = err
		if !errors.Is(err, connect.ErrCommandTimeout) && !errors.Is(err, connect.ErrCommand) {
			break
		}
	}
	return "", lastErr
}
