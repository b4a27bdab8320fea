package entity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-tuyable/internal/products"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

// fakeCoordinator is a Coordinator whose state tests set directly.
type fakeCoordinator struct {
	connected bool
	listeners []func()
}

func (f *fakeCoordinator) Connected() bool { return f.connected }

func (f *fakeCoordinator) AddListener(fn func()) func() {
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeCoordinator) notify() {
	for _, fn := range f.listeners {
		fn()
	}
}

func newDeps(t *testing.T, category, productID string) (Deps, *fakeCoordinator) {
	t.Helper()
	dev, err := tuya.NewDevice(tuya.DeviceInfo{
		Address:   "DC:23:4D:11:22:33",
		DeviceID:  "bf1234",
		Category:  category,
		ProductID: productID,
	}, tuya.DeviceOptions{QueueSize: 64})
	require.NoError(t, err)

	product, _ := products.Lookup(category, productID)
	coord := &fakeCoordinator{connected: true}
	return Deps{Device: dev, Product: product, Coordinator: coord}, coord
}

func report(deps Deps, records ...tuya.Record) {
	deps.Device.HandleReport(records, true)
}

func dpValue(t *testing.T, deps Deps, id uint8) any {
	t.Helper()
	dp, ok := deps.Device.Datapoints().Get(id)
	require.True(t, ok, "datapoint %d missing", id)
	return dp.Value()
}

func keys[E Entity](entities []E) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Key())
	}
	return out
}

func bindingKeys[M mapping](ms []M) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.binding().Description.Key)
	}
	return out
}
