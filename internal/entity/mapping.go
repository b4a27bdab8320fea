package entity

import "github.com/nerrad567/gray-logic-tuyable/internal/tuya"

// Binding ties an entity description to a datapoint. Every platform
// mapping embeds one.
type Binding struct {
	DPID        uint8              `json:"dp_id" yaml:"dp_id"`
	DPType      tuya.DatapointType `json:"dp_type,omitempty" yaml:"dp_type,omitempty"`
	Description Description        `json:"description" yaml:"description"`

	// ForceAdd creates the entity before its datapoint has been seen.
	ForceAdd bool `json:"force_add" yaml:"force_add"`
}

// Bind returns a Binding with ForceAdd set.
func Bind(dpID uint8, desc Description) Binding {
	return Binding{DPID: dpID, Description: desc, ForceAdd: true}
}

// WithType constrains the datapoint type.
func (b Binding) WithType(t tuya.DatapointType) Binding {
	b.DPType = t
	return b
}

// Optional clears ForceAdd, so the entity only appears once the device
// has reported the datapoint.
func (b Binding) Optional() Binding {
	b.ForceAdd = false
	return b
}

func (b Binding) binding() Binding { return b }

type mapping interface {
	binding() Binding
}

// CategoryMapping holds the mappings of one category: lists per product
// id and a fallback list for the rest of the category.
type CategoryMapping[M any] struct {
	Products map[string][]M
	Mapping  []M
}

// Table maps category codes to their mappings for one platform.
type Table[M any] map[string]CategoryMapping[M]

// Resolve returns the mappings for a device. A product list wins over the
// category fallback; the two are never merged. Unknown categories and
// products resolve to nothing.
func (t Table[M]) Resolve(category, productID string) []M {
	cat, ok := t[category]
	if !ok {
		return nil
	}
	if ms := cat.Products[productID]; len(ms) > 0 {
		return ms
	}
	return cat.Mapping
}

// ForProducts gives several product ids the same mapping list.
func ForProducts[M any](ms []M, productIDs ...string) map[string][]M {
	out := make(map[string][]M, len(productIDs))
	for _, id := range productIDs {
		out[id] = ms
	}
	return out
}

// Merge combines product maps built with ForProducts.
func Merge[M any](maps ...map[string][]M) map[string][]M {
	out := make(map[string][]M)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// materialize builds one entity per mapping that is forced or whose
// datapoint the device has already reported.
func materialize[M mapping, E any](dps *tuya.Datapoints, ms []M, build func(M) E) []E {
	var out []E
	for _, m := range ms {
		b := m.binding()
		if b.ForceAdd || dps.HasID(b.DPID, b.DPType) {
			out = append(out, build(m))
		}
	}
	return out
}
