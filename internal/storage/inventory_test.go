package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netcrawl/internal/model"
)

func newTestStore(t *testing.T) *InventoryStorage {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewInventoryStorage(db)
}

func TestTryClaimSingleWinner(t *testing.T) {
	store := newTestStore(t)

	const contenders = 32
	var wg sync.WaitGroup
	wins := make(chan bool, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.TryClaim("contested-switch")
			assert.NoError(t, err)
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestTryClaimDeniedForVisitedHost(t *testing.T) {
	store := newTestStore(t)

	won, err := store.TryClaim("sw1")
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, store.UpsertDevice(&model.DeviceRecord{
		Hostname: "sw1",
		Status:   model.StatusCrawled,
	}))

	won, err = store.TryClaim("sw1")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestUpsertDeviceRoundTrip(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	rec := &model.DeviceRecord{
		Hostname:       "site-01-sw",
		IP:             "10.0.0.2",
		Serials:        []string{"FOC12345ABC", "FOC67890DEF"},
		DeviceType:     "cisco_ios",
		Platforms:      []string{"WS-C3850-24T"},
		Version:        "16.06.05",
		Rommon:         "IOS-XE ROMMON",
		ConfigRegister: "0x102",
		MACAddresses:   []string{"00:1a:2b:3c:4d:5e"},
		Uptime:         "2 years, 3 weeks",
		LastCrawled:    now,
		Status:         model.StatusCrawled,
	}
	require.NoError(t, store.UpsertDevice(rec))

	got, err := store.GetDevice("site-01-sw")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Serials, got.Serials)
	assert.Equal(t, rec.Platforms, got.Platforms)
	assert.Equal(t, rec.Version, got.Version)
	assert.Equal(t, model.StatusCrawled, got.Status)
	assert.WithinDuration(t, now, got.LastCrawled, time.Second)

	// Upsert overwrites in place.
	rec.Version = "16.12.04"
	require.NoError(t, store.UpsertDevice(rec))
	got, err = store.GetDevice("site-01-sw")
	require.NoError(t, err)
	assert.Equal(t, "16.12.04", got.Version)
}

func TestGetDeviceAbsent(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetDevice("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMarkErroredOverwritesClaim(t *testing.T) {
	store := newTestStore(t)

	won, err := store.TryClaim("dead-switch")
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, store.MarkErrored("dead-switch", "ConnectionError: dial tcp: timeout"))

	got, err := store.GetDevice("dead-switch")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusErrored, got.Status)
	assert.Equal(t, "ConnectionError: dial tcp: timeout", got.Error)
}

func TestRecordEdgeUpsertsOnConflict(t *testing.T) {
	store := newTestStore(t)

	edge := &model.NeighborEdge{
		FromHostname:      "sw1",
		ToHostname:        "sw2",
		LocalInterface:    "Gi1/0/1",
		NeighborInterface: "Gi1/0/24",
		DiscoveredAt:      time.Now(),
	}
	require.NoError(t, store.RecordEdge(edge))

	edge.NeighborInterface = "Gi1/0/48"
	require.NoError(t, store.RecordEdge(edge))

	edges, err := store.AllEdges()
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "Gi1/0/48", edges[0].NeighborInterface)
}

func TestAllDevicesSortedByHostname(t *testing.T) {
	store := newTestStore(t)

	for _, h := range []string{"zulu", "alpha", "mike"} {
		require.NoError(t, store.UpsertDevice(&model.DeviceRecord{
			Hostname: h,
			Status:   model.StatusCrawled,
		}))
	}

	devices, err := store.AllDevices()
	require.NoError(t, err)
	require.Len(t, devices, 3)
	assert.Equal(t, "alpha", devices[0].Hostname)
	assert.Equal(t, "mike", devices[1].Hostname)
	assert.Equal(t, "zulu", devices[2].Hostname)
}

func TestSummaryCountsAndDetails(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertDevice(&model.DeviceRecord{
		Hostname: "sw1", Status: model.StatusCrawled,
	}))
	require.NoError(t, store.UpsertDevice(&model.DeviceRecord{
		Hostname: "sw2", Status: model.StatusCrawled,
	}))
	require.NoError(t, store.MarkErrored("bad-switch", "ConnectionError: unreachable"))
	won, err := store.TryClaim("never-visited")
	require.NoError(t, err)
	require.True(t, won)

	summary, err := store.Summary()
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Crawled)
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.Incomplete)

	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "bad-switch", summary.Errors[0].Hostname)
	assert.Equal(t, "ConnectionError: unreachable", summary.Errors[0].Reason)

	assert.Equal(t, []string{"never-visited"}, summary.Claimed)
}

func TestResetClearsEverything(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertDevice(&model.DeviceRecord{
		Hostname: "sw1", Status: model.StatusCrawled,
	}))
	require.NoError(t, store.RecordEdge(&model.NeighborEdge{
		FromHostname: "sw1", ToHostname: "sw2", LocalInterface: "Gi1/0/1",
	}))

	require.NoError(t, store.Reset())

	summary, err := store.Summary()
	require.NoError(t, err)
	assert.Zero(t, summary.Total)

	edges, err := store.AllEdges()
	require.NoError(t, err)
	assert.Empty(t, edges)

	// A reset hostname can be claimed again.
	won, err := store.TryClaim("sw1")
	require.NoError(t, err)
	assert.True(t, won)
}
