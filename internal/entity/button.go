package entity

import (
	"github.com/nerrad567/gray-logic-tuyable/internal/products"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

// ButtonMapping binds a button to a datapoint.
type ButtonMapping struct {
	Binding
	IsAvailable func(*Button, products.Info) bool
}

// Button is a momentary action.
type Button struct {
	base
	mapping ButtonMapping
}

// NewButton creates a button entity.
func NewButton(deps Deps, m ButtonMapping) *Button {
	return &Button{base: newBase(deps, m.Binding, PlatformButton), mapping: m}
}

// SetupButtons materialises the buttons resolved from table for the device.
func SetupButtons(deps Deps, table Table[ButtonMapping]) []*Button {
	ms := table.Resolve(deps.Device.Category(), deps.Device.ProductID())
	return materialize(deps.Device.Datapoints(), ms, func(m ButtonMapping) *Button {
		return NewButton(deps, m)
	})
}

// Available implements Entity.
func (b *Button) Available() bool {
	if !b.connected() {
		return false
	}
	return b.mapping.IsAvailable == nil || b.mapping.IsAvailable(b, b.deps.Product)
}

// State implements Entity. Buttons have no state.
func (b *Button) State() any { return nil }

// Press triggers the button.
//
// Raw datapoints receive 0x01. Bool datapoints, and untyped ones which are
// treated as bool, are toggled. Any other type receives true.
func (b *Button) Press() error {
	var value any = true
	typ := b.mapping.DPType
	switch typ {
	case tuya.TypeRaw:
		value = []byte{0x01}
	case tuya.TypeUnspecified:
		typ = tuya.TypeBool
	}

	dp := b.deps.Device.Datapoints().GetOrCreate(b.mapping.DPID, typ, value)
	if typ == tuya.TypeBool {
		cur, _ := dp.AsBool()
		return dp.SetValue(!cur)
	}
	return dp.SetValue(value)
}
