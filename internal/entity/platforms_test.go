package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-tuyable/internal/products"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

func TestIsFingerbotInPushMode(t *testing.T) {
	deps, _ := newDeps(t, "szjqr", "3yqdo5yt")
	dps := deps.Device.Datapoints()

	assert.True(t, IsFingerbotInPushMode(products.Info{Name: "plain"}, dps), "no fingerbot")
	assert.True(t, IsFingerbotInPushMode(deps.Product, dps), "mode not reported")

	report(deps, tuya.Record{ID: 2, Type: tuya.TypeEnum, Value: uint32(0)})
	assert.True(t, IsFingerbotInPushMode(deps.Product, dps))

	report(deps, tuya.Record{ID: 2, Type: tuya.TypeEnum, Value: uint32(1)})
	assert.False(t, IsFingerbotInPushMode(deps.Product, dps))
}

func TestButton_AvailableOnlyInPushMode(t *testing.T) {
	deps, coord := newDeps(t, "szjqr", "3yqdo5yt")
	buttons := SetupButtons(deps, ButtonTable)
	require.Len(t, buttons, 1)
	push := buttons[0]

	report(deps, tuya.Record{ID: 2, Type: tuya.TypeEnum, Value: uint32(0)})
	assert.True(t, push.Available())

	report(deps, tuya.Record{ID: 2, Type: tuya.TypeEnum, Value: uint32(1)})
	assert.False(t, push.Available())

	report(deps, tuya.Record{ID: 2, Type: tuya.TypeEnum, Value: uint32(0)})
	coord.connected = false
	assert.False(t, push.Available(), "disconnected device is never available")
}

func TestButton_Press(t *testing.T) {
	deps, _ := newDeps(t, "test", "x")

	raw := NewButton(deps, ButtonMapping{Binding: Bind(162, Description{Key: "reset"}).WithType(tuya.TypeRaw)})
	require.NoError(t, raw.Press())
	assert.Equal(t, []byte{0x01}, dpValue(t, deps, 162))

	report(deps, tuya.Record{ID: 1, Type: tuya.TypeBool, Value: false})
	untyped := NewButton(deps, ButtonMapping{Binding: Bind(1, Description{Key: "push"})})
	require.NoError(t, untyped.Press())
	assert.Equal(t, true, dpValue(t, deps, 1))
	require.NoError(t, untyped.Press())
	assert.Equal(t, false, dpValue(t, deps, 1))

	value := NewButton(deps, ButtonMapping{Binding: Bind(30, Description{Key: "v"}).WithType(tuya.TypeValue)})
	require.NoError(t, value.Press())
	assert.Equal(t, int32(1), dpValue(t, deps, 30))

	assert.Nil(t, value.State())
}

func TestSwitch_Bitmap(t *testing.T) {
	deps, _ := newDeps(t, "co2bj", "59s19z5m")
	switches := SetupSwitches(deps, SwitchTable)
	require.Len(t, switches, 3)
	severe, lowBattery := switches[0], switches[1]

	assert.Nil(t, severe.State(), "unknown before first report")

	report(deps, tuya.Record{ID: 11, Type: tuya.TypeBitmap, Value: uint32(0x02)})
	assert.False(t, severe.IsOn())
	assert.True(t, lowBattery.IsOn())

	require.NoError(t, severe.TurnOn())
	assert.Equal(t, uint32(0x03), dpValue(t, deps, 11))

	require.NoError(t, lowBattery.TurnOff())
	assert.Equal(t, uint32(0x01), dpValue(t, deps, 11))
	assert.Equal(t, true, severe.State())
	assert.Equal(t, false, lowBattery.State())
}

func TestSwitch_Plain(t *testing.T) {
	deps, _ := newDeps(t, "sfkzq", "nxquc5lb")
	switches := SetupSwitches(deps, SwitchTable)
	require.Len(t, switches, 1)
	valve := switches[0]

	require.NoError(t, valve.TurnOn())
	assert.True(t, valve.IsOn())
	require.NoError(t, valve.Toggle())
	assert.False(t, valve.IsOn())
	assert.Equal(t, false, dpValue(t, deps, 1))
}

func TestSwitch_Hooks(t *testing.T) {
	deps, _ := newDeps(t, "test", "x")
	var written []bool
	s := NewSwitch(deps, SwitchMapping{
		Binding:     Bind(1, Description{Key: "hooked"}),
		Getter:      func(*Switch, products.Info) (bool, bool) { return true, true },
		Setter: func(_ *Switch, _ products.Info, on bool) error {
			written = append(written, on)
			return nil
		},
		IsAvailable: func(*Switch, products.Info) bool { return false },
	})

	assert.True(t, s.IsOn())
	require.NoError(t, s.TurnOff())
	assert.Equal(t, []bool{false}, written)
	assert.False(t, s.Available())
	_, ok := deps.Device.Datapoints().Get(1)
	assert.False(t, ok, "setter must bypass the datapoint")
}

func TestSelect(t *testing.T) {
	deps, _ := newDeps(t, "szjqr", "blliqpsj")
	selects := SetupSelects(deps, SelectTable)
	require.Len(t, selects, 1)
	mode := selects[0]

	_, ok := mode.CurrentOption()
	assert.False(t, ok)

	report(deps, tuya.Record{ID: 8, Type: tuya.TypeEnum, Value: uint32(1)})
	opt, ok := mode.CurrentOption()
	assert.True(t, ok)
	assert.Equal(t, FingerbotModeSwitch, opt)

	report(deps, tuya.Record{ID: 8, Type: tuya.TypeEnum, Value: uint32(7)})
	assert.Nil(t, mode.State(), "out of range index has no option")

	require.NoError(t, mode.SelectOption(FingerbotModeProgram))
	assert.Equal(t, uint32(2), dpValue(t, deps, 8))

	err := mode.SelectOption("turbo")
	assert.ErrorIs(t, err, ErrUnknownOption)
	assert.Equal(t, uint32(2), dpValue(t, deps, 8))

	assert.Equal(t, []string{"push", "switch", "program"}, mode.Options())
}

// A binary sensor bound to dp 24 turns on once the update handler runs.
func TestBinarySensor_RefreshedOnCoordinatorUpdate(t *testing.T) {
	table := Table[BinarySensorMapping]{
		"test": {Products: map[string][]BinarySensorMapping{
			"sensor": {{Binding: Bind(24, Description{Key: "contact"})}},
		}},
	}
	deps, coord := newDeps(t, "test", "sensor")
	sensors := SetupBinarySensors(deps, table)
	require.Len(t, sensors, 1)
	contact := sensors[0]
	require.Len(t, coord.listeners, 1)

	assert.False(t, contact.IsOn())

	report(deps, tuya.Record{ID: 24, Type: tuya.TypeBool, Value: true})
	assert.False(t, contact.IsOn(), "state only changes in the update handler")

	coord.notify()
	assert.True(t, contact.IsOn())
	assert.Equal(t, true, contact.State())
}

func TestBinarySensor_Getter(t *testing.T) {
	deps, _ := newDeps(t, "test", "x")
	s := NewBinarySensor(deps, BinarySensorMapping{
		Binding: Bind(3, Description{Key: "g"}),
		Getter:  func(*BinarySensor, products.Info) (bool, bool) { return true, true },
	})
	s.HandleCoordinatorUpdate()
	assert.True(t, s.IsOn())
}

func TestCover(t *testing.T) {
	deps, _ := newDeps(t, "cl", "abc")
	covers := SetupCovers(deps, CoverTable)
	require.Len(t, covers, 1)
	curtain := covers[0]

	v, ok := curtain.Value()
	assert.True(t, ok)
	assert.Equal(t, CoverStop, v, "default before first report")

	require.NoError(t, curtain.Open())
	assert.Equal(t, CoverOpen, dpValue(t, deps, 1))
	require.NoError(t, curtain.Close())
	assert.Equal(t, CoverClose, curtain.State())

	require.NoError(t, curtain.SetValue("continue"))
	assert.Equal(t, "continue", curtain.State())
}

func TestCover_NoDefault(t *testing.T) {
	deps, _ := newDeps(t, "test", "x")
	c := NewCover(deps, CoverMapping{Binding: Bind(1, Description{Key: "c"})})
	assert.Nil(t, c.State())
}

func TestLock(t *testing.T) {
	deps, _ := newDeps(t, "ms", "isk2p555")
	locks := SetupLocks(deps, LockTable)
	require.Len(t, locks, 1)
	lock := locks[0]

	assert.True(t, lock.IsLocked(), "motor state defaults to false")
	assert.Equal(t, LockStateLocked, lock.State())

	report(deps, tuya.Record{ID: 47, Type: tuya.TypeBool, Value: true})
	assert.False(t, lock.IsLocked())

	require.NoError(t, lock.Lock())
	assert.Equal(t, true, dpValue(t, deps, 46))
	require.NoError(t, lock.Unlock())
	assert.Equal(t, false, dpValue(t, deps, 46))
	require.NoError(t, lock.Lock())
	require.NoError(t, lock.Open())
	assert.Equal(t, false, dpValue(t, deps, 46))
}

func TestAvailable_NilCoordinator(t *testing.T) {
	deps, _ := newDeps(t, "test", "x")
	deps.Coordinator = nil
	assert.False(t, NewSwitch(deps, SwitchMapping{Binding: Bind(1, Description{Key: "s"})}).Available())
}
