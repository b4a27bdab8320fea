package tuya

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// DatapointType is the kind of value a datapoint carries.
//
// TypeUnspecified is never seen on the wire. Mappings use it to match a
// datapoint id regardless of its type.
type DatapointType uint8

// Datapoint types. Wire codes are the constant minus one.
const (
	TypeUnspecified DatapointType = iota
	TypeRaw
	TypeBool
	TypeValue
	TypeString
	TypeEnum
	TypeBitmap
)

var typeNames = [...]string{
	TypeUnspecified: "unspecified",
	TypeRaw:         "raw",
	TypeBool:        "bool",
	TypeValue:       "value",
	TypeString:      "string",
	TypeEnum:        "enum",
	TypeBitmap:      "bitmap",
}

func (t DatapointType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// MarshalText encodes the type by name.
func (t DatapointType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *DatapointType) UnmarshalText(b []byte) error {
	parsed, err := ParseDatapointType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Numeric reports whether values of this type are integers or booleans.
func (t DatapointType) Numeric() bool {
	switch t {
	case TypeBool, TypeValue, TypeEnum, TypeBitmap:
		return true
	default:
		return false
	}
}

// ParseDatapointType maps a type name back to its DatapointType.
func ParseDatapointType(s string) (DatapointType, error) {
	for i, name := range typeNames {
		if strings.EqualFold(s, name) {
			return DatapointType(i), nil
		}
	}
	return TypeUnspecified, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// wireCode returns the on-air type byte.
func (t DatapointType) wireCode() (byte, error) {
	if t == TypeUnspecified || t > TypeBitmap {
		return 0, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return byte(t - 1), nil
}

func typeFromWire(code byte) (DatapointType, error) {
	if code > byte(TypeBitmap-1) {
		return TypeUnspecified, fmt.Errorf("%w: code %d", ErrUnknownType, code)
	}
	return DatapointType(code) + 1, nil
}

// Datapoint is a live value cell owned by a device session.
// All accessors are safe for concurrent use.
type Datapoint struct {
	owner *Datapoints

	id              uint8
	typ             DatapointType
	value           any
	changedByDevice bool
}

// ID returns the datapoint number.
func (dp *Datapoint) ID() uint8 { return dp.id }

// Type returns the datapoint type.
func (dp *Datapoint) Type() DatapointType {
	dp.owner.mu.RLock()
	defer dp.owner.mu.RUnlock()
	return dp.typ
}

// Value returns the cached value: bool, int32, string, uint32 or []byte.
func (dp *Datapoint) Value() any {
	dp.owner.mu.RLock()
	defer dp.owner.mu.RUnlock()
	if b, ok := dp.value.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return dp.value
}

// ChangedByDevice reports whether the last value came from the device
// rather than from SetValue.
func (dp *Datapoint) ChangedByDevice() bool {
	dp.owner.mu.RLock()
	defer dp.owner.mu.RUnlock()
	return dp.changedByDevice
}

// AsBool coerces the value to bool. Numbers are true when non-zero.
func (dp *Datapoint) AsBool() (bool, bool) {
	switch v := dp.Value().(type) {
	case bool:
		return v, true
	case int32:
		return v != 0, true
	case uint32:
		return v != 0, true
	default:
		return false, false
	}
}

// AsInt coerces the value to int64. Booleans map to 0/1.
func (dp *Datapoint) AsInt() (int64, bool) {
	switch v := dp.Value().(type) {
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case int32:
		return int64(v), true
	case uint32:
		return int64(v), true
	default:
		return 0, false
	}
}

// AsString returns the value of a string datapoint.
func (dp *Datapoint) AsString() (string, bool) {
	v, ok := dp.Value().(string)
	return v, ok
}

// AsBytes returns a copy of the value of a raw datapoint.
func (dp *Datapoint) AsBytes() ([]byte, bool) {
	v, ok := dp.Value().([]byte)
	return v, ok
}

// SetValue updates the cached value and queues a write to the device.
//
// The write is fire-and-forget: SetValue never waits for the radio and
// never reports transport failures. It fails only when v cannot be
// represented by the datapoint type.
func (dp *Datapoint) SetValue(v any) error {
	d := dp.owner

	d.mu.Lock()
	nv, err := normalizeValue(dp.typ, v)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("dp %d: %w", dp.id, err)
	}
	dp.value = nv
	dp.changedByDevice = false
	rec := Record{ID: dp.id, Type: dp.typ, Value: nv}
	d.mu.Unlock()

	if d.enqueue != nil {
		d.enqueue(rec)
	}
	return nil
}

// Datapoints is the keyed collection of live datapoints of one device.
type Datapoints struct {
	mu      sync.RWMutex
	byID    map[uint8]*Datapoint
	enqueue func(Record)
}

func newDatapoints(enqueue func(Record)) *Datapoints {
	return &Datapoints{
		byID:    make(map[uint8]*Datapoint),
		enqueue: enqueue,
	}
}

// Get returns the datapoint with the given id.
func (d *Datapoints) Get(id uint8) (*Datapoint, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dp, ok := d.byID[id]
	return dp, ok
}

// GetOrCreate returns the datapoint with the given id, creating it with
// typ and def when it has not been seen yet. An existing datapoint keeps
// its type and value. A def that does not fit typ falls back to the
// type's zero value.
func (d *Datapoints) GetOrCreate(id uint8, typ DatapointType, def any) *Datapoint {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dp, ok := d.byID[id]; ok {
		return dp
	}

	v, err := normalizeValue(typ, def)
	if err != nil {
		v = zeroValue(typ)
	}
	dp := &Datapoint{owner: d, id: id, typ: typ, value: v}
	d.byID[id] = dp
	return dp
}

// HasID reports whether a datapoint with the id has been observed.
// TypeUnspecified matches any type.
func (d *Datapoints) HasID(id uint8, typ DatapointType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dp, ok := d.byID[id]
	if !ok {
		return false
	}
	return typ == TypeUnspecified || dp.typ == typ
}

// All returns every datapoint ordered by id.
func (d *Datapoints) All() []*Datapoint {
	d.mu.RLock()
	out := make([]*Datapoint, 0, len(d.byID))
	for _, dp := range d.byID {
		out = append(out, dp)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of known datapoints.
func (d *Datapoints) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

// apply stores reported records. A reported type replaces the cached one.
// Records whose value the type cannot represent are skipped and returned
// as errors.
func (d *Datapoints) apply(records []Record, changedByDevice bool) ([]*Datapoint, []error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	updated := make([]*Datapoint, 0, len(records))
	var rejected []error
	for _, r := range records {
		value, err := normalizeValue(r.Type, r.Value)
		if err != nil {
			rejected = append(rejected, fmt.Errorf("dp %d: %w", r.ID, err))
			continue
		}
		dp, ok := d.byID[r.ID]
		if !ok {
			dp = &Datapoint{owner: d, id: r.ID}
			d.byID[r.ID] = dp
		}
		dp.typ = r.Type
		dp.value = value
		dp.changedByDevice = changedByDevice
		updated = append(updated, dp)
	}
	return updated, rejected
}

func zeroValue(t DatapointType) any {
	switch t {
	case TypeBool:
		return false
	case TypeValue:
		return int32(0)
	case TypeString:
		return ""
	case TypeEnum, TypeBitmap:
		return uint32(0)
	case TypeRaw:
		return []byte{}
	default:
		return nil
	}
}

// normalizeValue converts v to the canonical Go type for t.
// Integer-valued float64 is accepted so JSON numbers can be written directly.
func normalizeValue(t DatapointType, v any) (any, error) {
	switch t {
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeRaw:
		switch b := v.(type) {
		case []byte:
			return append([]byte(nil), b...), nil
		case string:
			return []byte(b), nil
		}
	case TypeValue:
		if n, ok := toInt64(v); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), nil
		}
	case TypeEnum, TypeBitmap:
		if n, ok := toInt64(v); ok && n >= 0 && n <= math.MaxUint32 {
			return uint32(n), nil
		}
	case TypeUnspecified:
		// Untyped datapoints keep whatever was handed in.
		return v, nil
	}
	return nil, fmt.Errorf("%w: %T for %s", ErrInvalidValue, v, t)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
