package entity

import (
	"github.com/nerrad567/gray-logic-tuyable/internal/products"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

// SwitchMapping binds a switch to a datapoint, or to bits of a bitmap
// datapoint when BitmapMask is set.
type SwitchMapping struct {
	Binding
	BitmapMask uint32

	IsAvailable func(*Switch, products.Info) bool
	Getter      func(*Switch, products.Info) (on bool, ok bool)
	Setter      func(*Switch, products.Info, bool) error
}

// Switch is an on/off control.
type Switch struct {
	base
	mapping SwitchMapping
}

// NewSwitch creates a switch entity.
func NewSwitch(deps Deps, m SwitchMapping) *Switch {
	return &Switch{base: newBase(deps, m.Binding, PlatformSwitch), mapping: m}
}

// SetupSwitches materialises the switches resolved from table for the device.
func SetupSwitches(deps Deps, table Table[SwitchMapping]) []*Switch {
	ms := table.Resolve(deps.Device.Category(), deps.Device.ProductID())
	return materialize(deps.Device.Datapoints(), ms, func(m SwitchMapping) *Switch {
		return NewSwitch(deps, m)
	})
}

// Available implements Entity.
func (s *Switch) Available() bool {
	if !s.connected() {
		return false
	}
	return s.mapping.IsAvailable == nil || s.mapping.IsAvailable(s, s.deps.Product)
}

// State implements Entity.
func (s *Switch) State() any {
	on, ok := s.isOn()
	if !ok {
		return nil
	}
	return on
}

// IsOn reports the switch state; false when unknown.
func (s *Switch) IsOn() bool {
	on, _ := s.isOn()
	return on
}

func (s *Switch) isOn() (bool, bool) {
	if s.mapping.Getter != nil {
		return s.mapping.Getter(s, s.deps.Product)
	}
	dp, ok := s.datapoint()
	if !ok {
		return false, false
	}
	if s.mapping.BitmapMask != 0 {
		v, ok := dp.AsInt()
		return ok && uint32(v)&s.mapping.BitmapMask != 0, ok //nolint:gosec // bitmap values are uint32
	}
	return dp.AsBool()
}

// TurnOn switches on.
func (s *Switch) TurnOn() error { return s.set(true) }

// TurnOff switches off.
func (s *Switch) TurnOff() error { return s.set(false) }

// Toggle flips the current state.
func (s *Switch) Toggle() error { return s.set(!s.IsOn()) }

func (s *Switch) set(on bool) error {
	if s.mapping.Setter != nil {
		return s.mapping.Setter(s, s.deps.Product, on)
	}
	if s.mapping.BitmapMask == 0 {
		return s.write(s.typeOr(tuya.TypeBool), on)
	}

	dp := s.deps.Device.Datapoints().GetOrCreate(s.mapping.DPID, s.typeOr(tuya.TypeBitmap), uint32(0))
	cur, _ := dp.AsInt()
	bits := uint32(cur) //nolint:gosec // bitmap values are uint32
	if on {
		bits |= s.mapping.BitmapMask
	} else {
		bits &^= s.mapping.BitmapMask
	}
	return dp.SetValue(bits)
}
