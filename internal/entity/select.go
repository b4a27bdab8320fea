package entity

import (
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-tuyable/internal/products"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

// Temperature unit options.
const (
	UnitCelsius    = "°C"
	UnitFahrenheit = "°F"
)

// SelectMapping binds a select to an enum datapoint. The enum index is
// the position in Description.Options.
type SelectMapping struct {
	Binding

	IsAvailable func(*Select, products.Info) bool
	Getter      func(*Select, products.Info) (option string, ok bool)
	Setter      func(*Select, products.Info, string) error
}

// Select picks one of a fixed list of options.
type Select struct {
	base
	mapping SelectMapping
}

// NewSelect creates a select entity.
func NewSelect(deps Deps, m SelectMapping) *Select {
	return &Select{base: newBase(deps, m.Binding, PlatformSelect), mapping: m}
}

// SetupSelects materialises the selects resolved from table for the device.
func SetupSelects(deps Deps, table Table[SelectMapping]) []*Select {
	ms := table.Resolve(deps.Device.Category(), deps.Device.ProductID())
	return materialize(deps.Device.Datapoints(), ms, func(m SelectMapping) *Select {
		return NewSelect(deps, m)
	})
}

// Available implements Entity.
func (s *Select) Available() bool {
	if !s.connected() {
		return false
	}
	return s.mapping.IsAvailable == nil || s.mapping.IsAvailable(s, s.deps.Product)
}

// State implements Entity.
func (s *Select) State() any {
	opt, ok := s.CurrentOption()
	if !ok {
		return nil
	}
	return opt
}

// Options returns the selectable options.
func (s *Select) Options() []string { return slices.Clone(s.desc.Options) }

// CurrentOption returns the option at the datapoint's enum index. It
// reports false when the datapoint is missing or out of range.
func (s *Select) CurrentOption() (string, bool) {
	if s.mapping.Getter != nil {
		return s.mapping.Getter(s, s.deps.Product)
	}
	dp, ok := s.datapoint()
	if !ok {
		return "", false
	}
	idx, ok := dp.AsInt()
	if !ok || idx < 0 || idx >= int64(len(s.desc.Options)) {
		return "", false
	}
	return s.desc.Options[idx], true
}

// SelectOption writes the index of option. Unknown options fail with
// ErrUnknownOption and write nothing.
func (s *Select) SelectOption(option string) error {
	idx := slices.Index(s.desc.Options, option)
	if idx < 0 {
		return fmt.Errorf("%w: %q for %s", ErrUnknownOption, option, s.desc.Key)
	}
	if s.mapping.Setter != nil {
		return s.mapping.Setter(s, s.deps.Product, option)
	}
	return s.write(s.typeOr(tuya.TypeEnum), idx)
}
