package entity

import (
	"sync"

	"github.com/nerrad567/gray-logic-tuyable/internal/products"
)

// BinarySensorMapping binds a read-only on/off sensor to a datapoint.
type BinarySensorMapping struct {
	Binding

	IsAvailable func(*BinarySensor, products.Info) bool
	Getter      func(*BinarySensor, products.Info) (on bool, ok bool)
}

// BinarySensor is a read-only on/off value. Its state is refreshed on
// every coordinator update rather than read live.
type BinarySensor struct {
	base
	mapping BinarySensorMapping

	mu   sync.RWMutex
	isOn bool
}

// NewBinarySensor creates a binary sensor entity.
func NewBinarySensor(deps Deps, m BinarySensorMapping) *BinarySensor {
	return &BinarySensor{base: newBase(deps, m.Binding, PlatformBinarySensor), mapping: m}
}

// SetupBinarySensors materialises the binary sensors resolved from table
// and subscribes each to coordinator updates.
func SetupBinarySensors(deps Deps, table Table[BinarySensorMapping]) []*BinarySensor {
	ms := table.Resolve(deps.Device.Category(), deps.Device.ProductID())
	sensors := materialize(deps.Device.Datapoints(), ms, func(m BinarySensorMapping) *BinarySensor {
		return NewBinarySensor(deps, m)
	})
	if deps.Coordinator != nil {
		for _, s := range sensors {
			deps.Coordinator.AddListener(s.HandleCoordinatorUpdate)
		}
	}
	return sensors
}

// Available implements Entity.
func (s *BinarySensor) Available() bool {
	if !s.connected() {
		return false
	}
	return s.mapping.IsAvailable == nil || s.mapping.IsAvailable(s, s.deps.Product)
}

// State implements Entity.
func (s *BinarySensor) State() any { return s.IsOn() }

// IsOn returns the state captured by the last coordinator update.
func (s *BinarySensor) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOn
}

// HandleCoordinatorUpdate refreshes IsOn from the getter or the datapoint.
// A missing datapoint leaves the previous state.
func (s *BinarySensor) HandleCoordinatorUpdate() {
	var (
		on bool
		ok bool
	)
	if s.mapping.Getter != nil {
		on, ok = s.mapping.Getter(s, s.deps.Product)
	} else if dp, found := s.datapoint(); found {
		on, ok = truthy(dp.Value()), true
	}
	if !ok {
		return
	}

	s.mu.Lock()
	s.isOn = on
	s.mu.Unlock()
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int32:
		return x != 0
	case uint32:
		return x != 0
	case string:
		return x != ""
	case []byte:
		return len(x) > 0
	default:
		return false
	}
}
