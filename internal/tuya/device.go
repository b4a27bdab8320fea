package tuya

import (
	"context"
	"fmt"
	"sync"
)

const defaultQueueSize = 32

// Logger is the logging interface used by device sessions.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport delivers encoded datapoint frames to a device.
// The bridge implements it on top of the MQTT gateway link.
type Transport interface {
	WriteDatapoints(ctx context.Context, address string, frame []byte) error
}

// DeviceInfo is the static identity of a paired device.
type DeviceInfo struct {
	Address         string
	DeviceID        string
	Category        string
	ProductID       string
	Name            string
	ProductModel    string
	ProductName     string
	HardwareVersion string
	DeviceVersion   string
	ProtocolVersion string
}

// DeviceOptions configures a Device.
type DeviceOptions struct {
	// QueueSize bounds pending writes. Zero uses 32.
	QueueSize int

	// Logger is optional.
	Logger Logger
}

type callbackEntry[F any] struct {
	id int
	fn F
}

// Device is the session-side view of one Tuya BLE device: its identity,
// the live datapoints, and the update and connection callbacks.
//
// Inbound reports arrive through HandleReport, HandleConnected and
// HandleDisconnected. Outbound writes queue up from Datapoint.SetValue and
// are sent by Run.
type Device struct {
	info   DeviceInfo
	dps    *Datapoints
	writes chan Record
	logger Logger

	mu             sync.Mutex
	nextID         int
	onUpdate       []callbackEntry[func([]*Datapoint)]
	onConnected    []callbackEntry[func()]
	onDisconnected []callbackEntry[func()]
}

// NewDevice creates a session for the device. Address and DeviceID are required.
func NewDevice(info DeviceInfo, opts DeviceOptions) (*Device, error) {
	if info.Address == "" || info.DeviceID == "" {
		return nil, fmt.Errorf("%w: address and device_id are required", ErrInvalidDevice)
	}

	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	d := &Device{
		info:   info,
		writes: make(chan Record, size),
		logger: opts.Logger,
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	d.dps = newDatapoints(d.enqueue)
	return d, nil
}

// Info returns the device identity.
func (d *Device) Info() DeviceInfo { return d.info }

// Address returns the BLE MAC address.
func (d *Device) Address() string { return d.info.Address }

// DeviceID returns the Tuya device id.
func (d *Device) DeviceID() string { return d.info.DeviceID }

// Category returns the Tuya category code.
func (d *Device) Category() string { return d.info.Category }

// ProductID returns the Tuya product id.
func (d *Device) ProductID() string { return d.info.ProductID }

// Name returns the user-facing device name.
func (d *Device) Name() string { return d.info.Name }

// Datapoints returns the live datapoint collection.
func (d *Device) Datapoints() *Datapoints { return d.dps }

// RegisterCallback adds an update callback. It returns a func that removes it.
func (d *Device) RegisterCallback(fn func([]*Datapoint)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.onUpdate = append(d.onUpdate, callbackEntry[func([]*Datapoint)]{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.onUpdate = removeEntry(d.onUpdate, id)
	}
}

// RegisterConnectedCallback adds a connect callback. It returns a func that removes it.
func (d *Device) RegisterConnectedCallback(fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.onConnected = append(d.onConnected, callbackEntry[func()]{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.onConnected = removeEntry(d.onConnected, id)
	}
}

// RegisterDisconnectedCallback adds a disconnect callback. It returns a func that removes it.
func (d *Device) RegisterDisconnectedCallback(fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.onDisconnected = append(d.onDisconnected, callbackEntry[func()]{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.onDisconnected = removeEntry(d.onDisconnected, id)
	}
}

// HandleReport stores reported datapoints and fires the update callbacks
// with the datapoints that changed. It returns the updated datapoints.
func (d *Device) HandleReport(records []Record, changedByDevice bool) []*Datapoint {
	if len(records) == 0 {
		return nil
	}
	updated, rejected := d.dps.apply(records, changedByDevice)
	for _, err := range rejected {
		d.logger.Warn("dropping reported datapoint", "address", d.info.Address, "error", err)
	}
	if len(updated) == 0 {
		return nil
	}

	d.mu.Lock()
	callbacks := make([]func([]*Datapoint), 0, len(d.onUpdate))
	for _, e := range d.onUpdate {
		callbacks = append(callbacks, e.fn)
	}
	d.mu.Unlock()

	for _, fn := range callbacks {
		fn(updated)
	}
	return updated
}

// HandleConnected fires the connect callbacks.
func (d *Device) HandleConnected() {
	d.mu.Lock()
	callbacks := snapshot(d.onConnected)
	d.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// HandleDisconnected fires the disconnect callbacks.
func (d *Device) HandleDisconnected() {
	d.mu.Lock()
	callbacks := snapshot(d.onDisconnected)
	d.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// Run sends queued writes through t until ctx is cancelled.
//
// Writes queued back to back are coalesced into one frame. A failed write
// is logged and reported as a disconnect; it is not retried.
func (d *Device) Run(ctx context.Context, t Transport) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec := <-d.writes:
			batch := d.drain([]Record{rec})
			d.send(ctx, t, batch)
		}
	}
}

// drain appends whatever else is already queued, keeping the last value
// per datapoint id.
func (d *Device) drain(batch []Record) []Record {
	for {
		select {
		case rec := <-d.writes:
			batch = append(batch, rec)
		default:
			return dedupeRecords(batch)
		}
	}
}

func (d *Device) send(ctx context.Context, t Transport, batch []Record) {
	frame, err := Encode(batch)
	if err != nil {
		d.logger.Error("encoding datapoint write", "address", d.info.Address, "error", err)
		return
	}
	if err := t.WriteDatapoints(ctx, d.info.Address, frame); err != nil {
		if ctx.Err() != nil {
			return
		}
		d.logger.Warn("datapoint write failed",
			"address", d.info.Address,
			"device_id", d.info.DeviceID,
			"records", len(batch),
			"error", err,
		)
		d.HandleDisconnected()
		return
	}
	d.logger.Debug("datapoints written", "address", d.info.Address, "records", len(batch))
}

func (d *Device) enqueue(rec Record) {
	select {
	case d.writes <- rec:
	default:
		d.logger.Warn("write queue full, dropping datapoint",
			"address", d.info.Address,
			"dp_id", rec.ID,
		)
	}
}

// allocID must be called with d.mu held.
func (d *Device) allocID() int {
	d.nextID++
	return d.nextID
}

func removeEntry[F any](entries []callbackEntry[F], id int) []callbackEntry[F] {
	out := entries[:0:0]
	for _, e := range entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}

func snapshot(entries []callbackEntry[func()]) []func() {
	out := make([]func(), 0, len(entries))
	for _, e := range entries {
		out = append(out, e.fn)
	}
	return out
}

func dedupeRecords(batch []Record) []Record {
	if len(batch) < 2 { //nolint:mnd // nothing to merge
		return batch
	}
	last := make(map[uint8]int, len(batch))
	for i, r := range batch {
		last[r.ID] = i
	}
	out := batch[:0:0]
	for i, r := range batch {
		if last[r.ID] == i {
			out = append(out, r)
		}
	}
	return out
}
