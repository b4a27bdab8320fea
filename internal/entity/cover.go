package entity

import (
	"fmt"

	"github.com/nerrad567/gray-logic-tuyable/internal/products"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

// Cover control strings understood by Tuya curtain motors.
const (
	CoverOpen  = "open"
	CoverClose = "close"
	CoverStop  = "stop"
)

// CoverMapping binds a cover to a string datapoint.
type CoverMapping struct {
	Binding

	// DefaultValue is reported while the datapoint is unknown.
	DefaultValue string

	IsAvailable func(*Cover, products.Info) bool
	Getter      func(*Cover, products.Info) (value string, ok bool)
	Setter      func(*Cover, products.Info, string) error
}

// Cover is a curtain or blind driven by control strings.
type Cover struct {
	base
	mapping CoverMapping
}

// NewCover creates a cover entity.
func NewCover(deps Deps, m CoverMapping) *Cover {
	return &Cover{base: newBase(deps, m.Binding, PlatformCover), mapping: m}
}

// SetupCovers materialises the covers resolved from table for the device.
func SetupCovers(deps Deps, table Table[CoverMapping]) []*Cover {
	ms := table.Resolve(deps.Device.Category(), deps.Device.ProductID())
	return materialize(deps.Device.Datapoints(), ms, func(m CoverMapping) *Cover {
		return NewCover(deps, m)
	})
}

// Available implements Entity.
func (c *Cover) Available() bool {
	if !c.connected() {
		return false
	}
	return c.mapping.IsAvailable == nil || c.mapping.IsAvailable(c, c.deps.Product)
}

// State implements Entity.
func (c *Cover) State() any {
	v, ok := c.Value()
	if !ok {
		return nil
	}
	return v
}

// Value returns the datapoint as a string, else DefaultValue.
func (c *Cover) Value() (string, bool) {
	if c.mapping.Getter != nil {
		return c.mapping.Getter(c, c.deps.Product)
	}
	if dp, ok := c.datapoint(); ok {
		if s, ok := dp.AsString(); ok {
			return s, true
		}
		if v := dp.Value(); v != nil {
			return fmt.Sprint(v), true
		}
	}
	if c.mapping.DefaultValue != "" {
		return c.mapping.DefaultValue, true
	}
	return "", false
}

// SetValue writes value as a string datapoint.
func (c *Cover) SetValue(value string) error {
	if c.mapping.Setter != nil {
		return c.mapping.Setter(c, c.deps.Product, value)
	}
	return c.write(tuya.TypeString, value)
}

// Open sends the open control string.
func (c *Cover) Open() error { return c.SetValue(CoverOpen) }

// Close sends the close control string.
func (c *Cover) Close() error { return c.SetValue(CoverClose) }

// Stop sends the stop control string.
func (c *Cover) Stop() error { return c.SetValue(CoverStop) }
