package entity

import (
	"github.com/nerrad567/gray-logic-tuyable/internal/products"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

// Lock states as published.
const (
	LockStateLocked   = "locked"
	LockStateUnlocked = "unlocked"
)

// LockMapping binds a lock to its manual-lock and motor-state datapoints.
// Binding.DPID is the manual-lock datapoint.
type LockMapping struct {
	Binding
	MotorStateDP uint8

	IsAvailable func(*Lock, products.Info) bool
}

// NewLockMapping returns a forced lock mapping.
func NewLockMapping(manualLockDP, motorStateDP uint8, desc Description) LockMapping {
	return LockMapping{
		Binding:      Bind(manualLockDP, desc).WithType(tuya.TypeBool),
		MotorStateDP: motorStateDP,
	}
}

// Lock is a door lock with an open (unlatch) action.
type Lock struct {
	base
	mapping LockMapping
}

// NewLock creates a lock entity.
func NewLock(deps Deps, m LockMapping) *Lock {
	return &Lock{base: newBase(deps, m.Binding, PlatformLock), mapping: m}
}

// SetupLocks materialises the locks resolved from table for the device.
func SetupLocks(deps Deps, table Table[LockMapping]) []*Lock {
	ms := table.Resolve(deps.Device.Category(), deps.Device.ProductID())
	return materialize(deps.Device.Datapoints(), ms, func(m LockMapping) *Lock {
		return NewLock(deps, m)
	})
}

// Available implements Entity.
func (l *Lock) Available() bool {
	if !l.connected() {
		return false
	}
	return l.mapping.IsAvailable == nil || l.mapping.IsAvailable(l, l.deps.Product)
}

// State implements Entity.
func (l *Lock) State() any {
	if l.IsLocked() {
		return LockStateLocked
	}
	return LockStateUnlocked
}

// IsLocked is true while the motor state datapoint reads false.
func (l *Lock) IsLocked() bool {
	motor := l.deps.Device.Datapoints().GetOrCreate(l.mapping.MotorStateDP, tuya.TypeBool, false)
	running, _ := motor.AsBool()
	return !running
}

// Lock engages the manual lock.
func (l *Lock) Lock() error { return l.setManualLock(true) }

// Unlock releases the manual lock.
func (l *Lock) Unlock() error { return l.setManualLock(false) }

// Open releases the manual lock; the device has no separate unlatch.
func (l *Lock) Open() error { return l.setManualLock(false) }

func (l *Lock) setManualLock(v bool) error {
	return l.deps.Device.Datapoints().GetOrCreate(l.mapping.DPID, tuya.TypeBool, v).SetValue(v)
}
