package coordinator

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-tuyable/internal/products"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

// DefaultDisconnectDelay is how long a device may stay silent after a
// disconnect before it is reported disconnected.
const DefaultDisconnectDelay = 10 * time.Minute

// EventFingerbotButtonPressed fires when a fingerbot in manual-control
// mode reports its switch datapoint changed by the physical button.
const EventFingerbotButtonPressed = "tuya_ble_fingerbot_button_pressed"

// Event is a device-originated event that is not a state change.
type Event struct {
	Type     string    `json:"type"`
	Address  string    `json:"address"`
	DeviceID string    `json:"device_id"`
	Time     time.Time `json:"time"`
}

// EventSink receives events. FireEvent must not block.
type EventSink interface {
	FireEvent(Event)
}

// EventSinkFunc adapts a func to EventSink.
type EventSinkFunc func(Event)

// FireEvent calls f.
func (f EventSinkFunc) FireEvent(e Event) { f(e) }

// Logger is the logging interface used by the coordinator.
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

// Options configures a Coordinator.
type Options struct {
	// Product is the resolved product info of the device.
	Product products.Info

	// DisconnectDelay debounces disconnects. Zero uses DefaultDisconnectDelay.
	DisconnectDelay time.Duration

	// Events is optional.
	Events EventSink

	// Logger is optional.
	Logger Logger
}

type stopper interface {
	Stop() bool
}

type listener struct {
	id int
	fn func()
}

// Coordinator tracks the connection state of one device and fans its
// updates out to listeners.
//
// A device starts disconnected. Connects and datapoint updates mark it
// connected at once. A disconnect only takes effect if no connect or
// update arrives within the disconnect delay.
//
// All methods are safe for concurrent use. Listeners run outside the
// lock, in registration order.
type Coordinator struct {
	device  *tuya.Device
	product products.Info
	delay   time.Duration
	events  EventSink
	logger  Logger

	afterFunc func(time.Duration, func()) stopper

	mu           sync.Mutex
	disconnected bool
	timer        stopper
	generation   uint64
	listeners    []listener
	nextID       int
	unsubscribe  []func()
	closed       bool
}

// New creates a coordinator and registers it with the device callbacks.
func New(device *tuya.Device, opts Options) *Coordinator {
	c := &Coordinator{
		device:       device,
		product:      opts.Product,
		delay:        opts.DisconnectDelay,
		events:       opts.Events,
		logger:       opts.Logger,
		disconnected: true,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
	if c.delay <= 0 {
		c.delay = DefaultDisconnectDelay
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}

	c.unsubscribe = []func(){
		device.RegisterConnectedCallback(c.handleConnect),
		device.RegisterCallback(c.handleUpdate),
		device.RegisterDisconnectedCallback(c.handleDisconnect),
	}
	return c
}

// Device returns the coordinated device.
func (c *Coordinator) Device() *tuya.Device { return c.device }

// Product returns the product info the coordinator was built with.
func (c *Coordinator) Product() products.Info { return c.product }

// Connected reports whether the device is considered connected.
func (c *Coordinator) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disconnected
}

// AddListener registers fn to run on every update and connection change.
// It returns a func that removes it.
func (c *Coordinator) AddListener(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Close cancels a pending disconnect and detaches from the device.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.listeners = nil
	c.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
}

func (c *Coordinator) handleConnect() {
	c.mu.Lock()
	c.stopTimerLocked()
	changed := c.disconnected && !c.closed
	c.disconnected = false
	c.mu.Unlock()

	if changed {
		c.logger.Info("device connected", "address", c.device.Address())
		c.notify()
	}
}

func (c *Coordinator) handleUpdate(updates []*tuya.Datapoint) {
	c.handleConnect()
	c.notify()

	fb := c.product.Fingerbot
	if fb == nil || fb.ManualControl == 0 || c.events == nil {
		return
	}
	for _, dp := range updates {
		if dp.ID() == fb.Switch && dp.ChangedByDevice() {
			c.events.FireEvent(Event{
				Type:     EventFingerbotButtonPressed,
				Address:  c.device.Address(),
				DeviceID: c.device.DeviceID(),
				Time:     time.Now(),
			})
		}
	}
}

// handleDisconnect arms the debounce timer unless one is already pending.
func (c *Coordinator) handleDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.timer != nil {
		return
	}
	c.generation++
	gen := c.generation
	c.timer = c.afterFunc(c.delay, func() { c.setDisconnected(gen) })
	c.logger.Debug("disconnect pending", "address", c.device.Address(), "delay", c.delay)
}

// setDisconnected runs when the timer fires. Firings from a stopped or
// superseded timer, and repeated firings, change nothing.
func (c *Coordinator) setDisconnected(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.generation || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	changed := !c.disconnected
	c.disconnected = true
	c.mu.Unlock()

	if changed {
		c.logger.Info("device disconnected", "address", c.device.Address())
		c.notify()
	}
}

// stopTimerLocked must be called with c.mu held.
func (c *Coordinator) stopTimerLocked() {
	if c.timer == nil {
		return
	}
	c.timer.Stop()
	c.timer = nil
	c.generation++
}

func (c *Coordinator) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, l := range c.listeners {
		fns = append(fns, l.fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
