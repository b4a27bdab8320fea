package tuya

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records written frames and can be made to fail.
type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	sent   chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(chan struct{}, 16)}
}

func (f *fakeTransport) WriteDatapoints(_ context.Context, _ string, frame []byte) error {
	f.mu.Lock()
	f.frames = append(f.frames, frame)
	err := f.err
	f.mu.Unlock()
	f.sent <- struct{}{}
	return err
}

func (f *fakeTransport) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport write")
	}
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	d, err := NewDevice(DeviceInfo{
		Address:   "DC:23:4D:11:22:33",
		DeviceID:  "bf1234",
		Category:  "szjqr",
		ProductID: "3yqdo5yt",
	}, DeviceOptions{})
	require.NoError(t, err)
	return d
}

func TestNewDevice_RequiresIdentity(t *testing.T) {
	_, err := NewDevice(DeviceInfo{DeviceID: "bf1234"}, DeviceOptions{})
	assert.ErrorIs(t, err, ErrInvalidDevice)
}

func TestDatapoints_GetOrCreateAndHasID(t *testing.T) {
	d := newTestDevice(t)
	dps := d.Datapoints()

	assert.False(t, dps.HasID(2, TypeUnspecified))
	_, ok := dps.Get(2)
	assert.False(t, ok)

	dp := dps.GetOrCreate(2, TypeEnum, 1)
	assert.Equal(t, uint32(1), dp.Value())
	assert.True(t, dps.HasID(2, TypeUnspecified))
	assert.True(t, dps.HasID(2, TypeEnum))
	assert.False(t, dps.HasID(2, TypeBool))

	// Existing datapoints keep type and value.
	again := dps.GetOrCreate(2, TypeBool, true)
	assert.Same(t, dp, again)
	assert.Equal(t, TypeEnum, again.Type())

	// A default that does not fit falls back to the zero value.
	assert.Equal(t, int32(0), dps.GetOrCreate(3, TypeValue, "x").Value())
}

func TestDatapoint_Coercion(t *testing.T) {
	d := newTestDevice(t)
	d.HandleReport([]Record{
		{ID: 1, Type: TypeBool, Value: true},
		{ID: 2, Type: TypeEnum, Value: uint32(3)},
		{ID: 3, Type: TypeString, Value: "stop"},
		{ID: 4, Type: TypeRaw, Value: []byte{0xAA}},
	}, true)
	dps := d.Datapoints()

	b, ok := mustGet(t, dps, 1).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	n, ok := mustGet(t, dps, 2).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	s, ok := mustGet(t, dps, 3).AsString()
	assert.True(t, ok)
	assert.Equal(t, "stop", s)

	_, ok = mustGet(t, dps, 3).AsInt()
	assert.False(t, ok)

	raw, ok := mustGet(t, dps, 4).AsBytes()
	assert.True(t, ok)
	raw[0] = 0 // copies never alias the cached value
	again, _ := mustGet(t, dps, 4).AsBytes()
	assert.Equal(t, []byte{0xAA}, again)
}

func TestHandleReport_FiresCallbacksInOrder(t *testing.T) {
	d := newTestDevice(t)

	var calls []string
	d.RegisterCallback(func(dps []*Datapoint) {
		require.Len(t, dps, 1)
		calls = append(calls, "first")
	})
	remove := d.RegisterCallback(func([]*Datapoint) { calls = append(calls, "second") })
	d.RegisterCallback(func([]*Datapoint) { calls = append(calls, "third") })

	updated := d.HandleReport([]Record{{ID: 24, Type: TypeBool, Value: true}}, true)
	require.Len(t, updated, 1)
	assert.True(t, updated[0].ChangedByDevice())
	assert.Equal(t, []string{"first", "second", "third"}, calls)

	remove()
	calls = nil
	d.HandleReport([]Record{{ID: 24, Type: TypeBool, Value: false}}, false)
	assert.Equal(t, []string{"first", "third"}, calls)
	assert.False(t, mustGet(t, d.Datapoints(), 24).ChangedByDevice())
}

func TestHandleReport_NormalizesValues(t *testing.T) {
	d := newTestDevice(t)
	updated := d.HandleReport([]Record{
		{ID: 105, Type: TypeBitmap, Value: 1},
		{ID: 8, Type: TypeEnum, Value: 1},
		{ID: 5, Type: TypeValue, Value: float64(80)},
	}, true)
	require.Len(t, updated, 3)
	dps := d.Datapoints()

	assert.Equal(t, uint32(1), mustGet(t, dps, 105).Value())
	on, ok := mustGet(t, dps, 105).AsBool()
	assert.True(t, ok)
	assert.True(t, on)

	mode, ok := mustGet(t, dps, 8).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(1), mode)

	assert.Equal(t, int32(80), mustGet(t, dps, 5).Value())
}

func TestHandleReport_DropsUnrepresentableValues(t *testing.T) {
	d := newTestDevice(t)

	var fired int
	d.RegisterCallback(func([]*Datapoint) { fired++ })

	updated := d.HandleReport([]Record{
		{ID: 1, Type: TypeBool, Value: "yes"},
		{ID: 2, Type: TypeEnum, Value: -1},
		{ID: 3, Type: TypeBool, Value: true},
	}, true)
	require.Len(t, updated, 1)
	assert.Equal(t, uint8(3), updated[0].ID())
	assert.False(t, d.Datapoints().HasID(1, TypeUnspecified))
	assert.False(t, d.Datapoints().HasID(2, TypeUnspecified))
	assert.Equal(t, 1, fired)

	assert.Nil(t, d.HandleReport([]Record{{ID: 4, Type: TypeString, Value: 7}}, true))
	assert.Equal(t, 1, fired)
}

func TestConnectionCallbacks(t *testing.T) {
	d := newTestDevice(t)

	var connected, disconnected int
	d.RegisterConnectedCallback(func() { connected++ })
	removeDisc := d.RegisterDisconnectedCallback(func() { disconnected++ })

	d.HandleConnected()
	d.HandleDisconnected()
	removeDisc()
	d.HandleDisconnected()

	assert.Equal(t, 1, connected)
	assert.Equal(t, 1, disconnected)
}

func TestSetValue_QueuesWrite(t *testing.T) {
	d := newTestDevice(t)
	d.HandleReport([]Record{{ID: 2, Type: TypeEnum, Value: uint32(1)}}, true)

	dp := mustGet(t, d.Datapoints(), 2)
	require.NoError(t, dp.SetValue(0))
	assert.Equal(t, uint32(0), dp.Value())
	assert.False(t, dp.ChangedByDevice())

	transport := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, d.Run(ctx, transport))
	}()

	transport.wait(t)
	cancel()
	<-done

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Len(t, transport.frames, 1)
	assert.Equal(t, []byte{2, 4, 1, 0}, transport.frames[0])
}

func TestSetValue_RejectsWrongType(t *testing.T) {
	d := newTestDevice(t)
	dp := d.Datapoints().GetOrCreate(1, TypeBool, false)

	err := dp.SetValue("on")
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, false, dp.Value())
}

func TestDrain_CoalescesLatestValue(t *testing.T) {
	d := newTestDevice(t)
	dp := d.Datapoints().GetOrCreate(1, TypeBool, false)

	require.NoError(t, dp.SetValue(true))
	require.NoError(t, dp.SetValue(false))
	require.NoError(t, d.Datapoints().GetOrCreate(2, TypeEnum, 0).SetValue(1))

	first := <-d.writes
	batch := d.drain([]Record{first})
	assert.Equal(t, []Record{
		{ID: 1, Type: TypeBool, Value: false},
		{ID: 2, Type: TypeEnum, Value: uint32(1)},
	}, batch)
}

func TestEnqueue_DropsWhenFull(t *testing.T) {
	d, err := NewDevice(DeviceInfo{Address: "a", DeviceID: "b"}, DeviceOptions{QueueSize: 1})
	require.NoError(t, err)
	dp := d.Datapoints().GetOrCreate(1, TypeBool, false)

	require.NoError(t, dp.SetValue(true))
	require.NoError(t, dp.SetValue(false)) // dropped, never blocks

	assert.Len(t, d.writes, 1)
	assert.Equal(t, false, dp.Value())
}

func TestRun_WriteFailureReportsDisconnect(t *testing.T) {
	d := newTestDevice(t)
	disconnected := make(chan struct{}, 1)
	d.RegisterDisconnectedCallback(func() { disconnected <- struct{}{} })

	transport := newFakeTransport()
	transport.err = errors.New("gateway offline")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx, transport) //nolint:errcheck // returns nil on cancel

	require.NoError(t, d.Datapoints().GetOrCreate(1, TypeBool, false).SetValue(true))
	transport.wait(t)

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("write failure did not report a disconnect")
	}
}

func TestDatapoints_All(t *testing.T) {
	d := newTestDevice(t)
	d.HandleReport([]Record{
		{ID: 9, Type: TypeEnum, Value: uint32(0)},
		{ID: 2, Type: TypeBool, Value: true},
	}, true)

	all := d.Datapoints().All()
	require.Len(t, all, 2)
	assert.Equal(t, uint8(2), all[0].ID())
	assert.Equal(t, uint8(9), all[1].ID())
	assert.Equal(t, 2, d.Datapoints().Len())
}

func mustGet(t *testing.T, dps *Datapoints, id uint8) *Datapoint {
	t.Helper()
	dp, ok := dps.Get(id)
	require.True(t, ok, "datapoint %d missing", id)
	return dp
}
