package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netcrawl/internal/connect"
	"github.com/user/netcrawl/internal/textfsm"
)

const fakeShowVersion = `Cisco IOS Software, C3850 Software (CAT3K_CAA-UNIVERSALK9-M), Version 16.06.05, RELEASE SOFTWARE (fc2)
ROM: IOS-XE ROMMON
SITE-01-SW uptime is 1 week, 2 days
cisco WS-C3850-24T (MIPS) processor with 4194304K bytes of physical memory.
Processor board ID FOC12345ABC
Configuration register is 0x102
`

const fakeShowCDP = `-------------------------
Device ID: SITE-01-SW2.example.com
Entry address(es):
  IP Address: 10.0.0.2
Platform: cisco WS-C3850-48T, Capabilities: Switch IGMP
Interface: GigabitEthernet1/0/1,  Port ID (outgoing port): GigabitEthernet1/0/24
-------------------------
Device ID: SITE-01-RTR.example.com
Entry address(es):
  IP Address: 10.0.0.1
Platform: cisco ISR4451-X/K9, Capabilities: Router
Interface: GigabitEthernet1/0/48,  Port ID (outgoing port): GigabitEthernet0/0/1
`

// reply is one scripted command response.
type reply struct {
	output string
	err    error
}

type fakeSession struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   map[string]int
	closed  int
}

func (s *fakeSession) Run(_ context.Context, command string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[command]++
	queue := s.replies[command]
	if len(queue) == 0 {
		return "", errors.Wrapf(connect.ErrCommand, "no scripted reply for %q", command)
	}
	r := queue[0]
	s.replies[command] = queue[1:]
	return r.output, r.err
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type fakeConnector struct {
	session *fakeSession
	openErr error
	opened  []string
}

func (c *fakeConnector) Open(_ context.Context, host string, _ connect.Credentials, _ string) (connect.Session, error) {
	c.opened = append(c.opened, host)
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.session, nil
}

func scripted(replies map[string][]reply) *fakeSession {
	return &fakeSession{replies: replies, calls: make(map[string]int)}
}

func newTestManager(connector connect.Connector, retries int) *Manager {
	return NewManager(connector, textfsm.NewStore(""), Options{
		Retries:       retries,
		RetryBackoff:  time.Millisecond,
		DefaultFamily: "cisco_ios",
	})
}

func TestVisitIdentifiesAndDiscovers(t *testing.T) {
	sess := scripted(map[string][]reply{
		"show version":              {{output: fakeShowVersion}},
		"show cdp neighbors detail": {{output: fakeShowCDP}},
	})
	connector := &fakeConnector{session: sess}
	m := newTestManager(connector, 0)

	rec, neighbors, err := m.Visit(context.Background(), "site-01-sw", "cisco_ios")
	require.NoError(t, err)

	assert.Equal(t, "SITE-01-SW", rec.Hostname)
	assert.Equal(t, "16.06.05", rec.Version)
	assert.Equal(t, "cisco_ios", rec.DeviceType)
	assert.Contains(t, rec.Serials, "FOC12345ABC")

	require.Len(t, neighbors, 2)
	assert.Equal(t, "SITE-01-SW2.example.com", neighbors[0].Hostname)
	assert.Equal(t, "10.0.0.2", neighbors[0].MgmtIP)
	assert.Equal(t, "GigabitEthernet1/0/1", neighbors[0].LocalInterface)
	assert.Equal(t, "SITE-01-RTR.example.com", neighbors[1].Hostname)

	assert.Equal(t, 1, sess.closed, "session must be closed exactly once")
}

func TestVisitZeroNeighborsIsValid(t *testing.T) {
	sess := scripted(map[string][]reply{
		"show version":              {{output: fakeShowVersion}},
		"show cdp neighbors detail": {{output: "CDP is not enabled on any interface\n"}},
	})
	m := newTestManager(&fakeConnector{session: sess}, 0)

	rec, neighbors, err := m.Visit(context.Background(), "leaf-switch", "cisco_ios")
	require.NoError(t, err)
	assert.Equal(t, "SITE-01-SW", rec.Hostname)
	assert.Empty(t, neighbors)
}

func TestVisitRetriesOnCommandTimeout(t *testing.T) {
	sess := scripted(map[string][]reply{
		"show version": {
			{err: errors.Wrap(connect.ErrCommandTimeout, "command timed out")},
			{output: fakeShowVersion},
		},
		"show cdp neighbors detail": {{output: fakeShowCDP}},
	})
	m := newTestManager(&fakeConnector{session: sess}, 2)

	rec, _, err := m.Visit(context.Background(), "slow-switch", "cisco_ios")
	require.NoError(t, err)
	assert.Equal(t, "SITE-01-SW", rec.Hostname)
	assert.Equal(t, 2, sess.calls["show version"])
}

func TestVisitRetriesOnEmptyOutput(t *testing.T) {
	sess := scripted(map[string][]reply{
		"show version": {
			{output: "   \n"},
			{output: fakeShowVersion},
		},
		"show cdp neighbors detail": {{output: fakeShowCDP}},
	})
	m := newTestManager(&fakeConnector{session: sess}, 1)

	_, _, err := m.Visit(context.Background(), "quiet-switch", "cisco_ios")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.calls["show version"])
}

func TestVisitExhaustedRetriesReturnLastError(t *testing.T) {
	sess := scripted(map[string][]reply{
		"show version": {
			{err: errors.Wrap(connect.ErrCommandTimeout, "attempt 1")},
			{err: errors.Wrap(connect.ErrCommandTimeout, "attempt 2")},
		},
	})
	m := newTestManager(&fakeConnector{session: sess}, 1)

	_, _, err := m.Visit(context.Background(), "dead-switch", "cisco_ios")
	require.Error(t, err)
	assert.True(t, errors.Is(err, connect.ErrCommandTimeout))
	assert.Equal(t, 1, sess.closed, "session must be closed on failure")
}

func TestVisitParseFailureClosesSession(t *testing.T) {
	sess := scripted(map[string][]reply{
		"show version": {{output: "% Unrecognized gibberish that matches nothing\n"}},
	})
	m := newTestManager(&fakeConnector{session: sess}, 0)

	_, _, err := m.Visit(context.Background(), "weird-switch", "cisco_ios")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.Equal(t, 1, sess.closed)
}

func TestVisitConnectionErrorPropagates(t *testing.T) {
	connector := &fakeConnector{
		openErr: errors.Wrap(connect.ErrConnection, "dial tcp 10.0.0.2:22: connection refused"),
	}
	m := newTestManager(connector, 0)

	_, _, err := m.Visit(context.Background(), "unreachable", "cisco_ios")
	require.Error(t, err)
	assert.True(t, errors.Is(err, connect.ErrConnection))
}

func TestVisitDropsMalformedNeighborBlock(t *testing.T) {
	// The middle block never states a Device ID, so it cannot become a
	// neighbor; the blocks around it survive.
	malformedCDP := `-------------------------
Device ID: good-1
Interface: GigabitEthernet1/0/1,  Port ID (outgoing port): Gi0/1
-------------------------
Interface: GigabitEthernet1/0/2,  Port ID (outgoing port): Gi0/2
-------------------------
Device ID: good-2
Interface: GigabitEthernet1/0/3,  Port ID (outgoing port): Gi0/3
`
	sess := scripted(map[string][]reply{
		"show version":              {{output: fakeShowVersion}},
		"show cdp neighbors detail": {{output: malformedCDP}},
	})
	m := newTestManager(&fakeConnector{session: sess}, 0)

	_, neighbors, err := m.Visit(context.Background(), "sw1", "cisco_ios")
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "good-1", neighbors[0].Hostname)
	assert.Equal(t, "good-2", neighbors[1].Hostname)
}

func TestVisitUnknownFamilyFallsBackToDefault(t *testing.T) {
	sess := scripted(map[string][]reply{
		"show version":              {{output: fakeShowVersion}},
		"show cdp neighbors detail": {{output: fakeShowCDP}},
	})
	m := newTestManager(&fakeConnector{session: sess}, 0)

	rec, _, err := m.Visit(context.Background(), "sw1", "made_up_family")
	require.NoError(t, err)
	assert.Equal(t, "cisco_ios", rec.DeviceType)
}
