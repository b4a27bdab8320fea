package entity

import (
	"github.com/nerrad567/gray-logic-tuyable/internal/products"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

// Coordinator is the connection state and update fan-out entities read from.
type Coordinator interface {
	Connected() bool
	AddListener(fn func()) (remove func())
}

// Deps are what every entity of a device shares.
type Deps struct {
	Device      *tuya.Device
	Product     products.Info
	Coordinator Coordinator
}

// Entity is the common surface of all platforms.
type Entity interface {
	UniqueID() string
	Key() string
	Platform() Platform
	Description() Description
	DPID() uint8

	// Available is true when the device is connected and the mapping's
	// availability predicate, if any, agrees.
	Available() bool

	// State is the value published to consumers; nil when unknown.
	State() any
}

// base carries the fields shared by every platform.
type base struct {
	deps     Deps
	binding  Binding
	desc     Description
	platform Platform
}

func newBase(deps Deps, b Binding, p Platform) base {
	return base{deps: deps, binding: b, desc: b.Description.withDefaults(), platform: p}
}

// UniqueID returns "<device_id>-<key>".
func (b *base) UniqueID() string { return b.deps.Device.DeviceID() + "-" + b.desc.Key }

// Key returns the description key.
func (b *base) Key() string { return b.desc.Key }

// Platform returns the entity platform.
func (b *base) Platform() Platform { return b.platform }

// Description returns the entity description.
func (b *base) Description() Description { return b.desc }

// DPID returns the bound datapoint id.
func (b *base) DPID() uint8 { return b.binding.DPID }

// Device returns the device session.
func (b *base) Device() *tuya.Device { return b.deps.Device }

// Product returns the resolved product info.
func (b *base) Product() products.Info { return b.deps.Product }

func (b *base) connected() bool {
	return b.deps.Coordinator != nil && b.deps.Coordinator.Connected()
}

func (b *base) datapoint() (*tuya.Datapoint, bool) {
	return b.deps.Device.Datapoints().Get(b.binding.DPID)
}

// typeOr returns the bound type, or def when the mapping leaves it open.
func (b *base) typeOr(def tuya.DatapointType) tuya.DatapointType {
	if b.binding.DPType == tuya.TypeUnspecified {
		return def
	}
	return b.binding.DPType
}

// write creates the datapoint if needed and queues v.
func (b *base) write(t tuya.DatapointType, v any) error {
	return b.deps.Device.Datapoints().GetOrCreate(b.binding.DPID, t, v).SetValue(v)
}
