package tuyable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-tuyable/internal/coordinator"
	"github.com/nerrad567/gray-logic-tuyable/internal/device"
	"github.com/nerrad567/gray-logic-tuyable/internal/entity"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-tuyable/internal/products"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

// Bridge operation constants.
const (
	// storeTimeout bounds each SQLite write made on behalf of a device.
	storeTimeout = 5 * time.Second

	// touchInterval throttles last-seen updates from datapoint reports.
	touchInterval = time.Minute
)

// Bridge translates between the BLE gateway's datapoint frames and
// entity state and commands on MQTT.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg      config.TuyaConfig
	bridgeID string
	topics   mqtt.Topics
	mqtt     MQTTClient
	health   *HealthReporter

	store       DeviceStore    // optional
	history     StateRecorder  // optional
	discoveries DiscoveryStore // optional
	metrics     MetricsWriter  // optional
	scanner     Scanner        // optional

	// Device set is fixed after NewBridge.
	devices   map[string]*managedDevice
	byAddress map[string]*managedDevice
	order     []string

	// State cache for change detection
	stateCache   map[string]map[string]publishedState
	stateCacheMu sync.Mutex

	observersMu    sync.RWMutex
	stateObservers []func(StateMessage)
	eventObservers []func(EventMessage)

	// Shutdown coordination
	ctx       context.Context
	ctxCancel context.CancelFunc
	runMu     sync.Mutex
	group     *errgroup.Group
	stopOnce  sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// DeviceStore persists the paired devices. Satisfied by *device.Registry.
type DeviceStore interface {
	UpsertDevice(ctx context.Context, d device.Device) error
	TouchDevice(ctx context.Context, id string, seen time.Time) error
}

// StateRecorder persists published entity states.
// Satisfied by *device.SQLiteStateHistoryRepository.
type StateRecorder interface {
	RecordState(ctx context.Context, deviceID, entityKey string, state any, source string) error
}

// DiscoveryStore persists BLE advertisements.
// Satisfied by *device.SQLiteDiscoveryRepository.
type DiscoveryStore interface {
	RecordDiscovery(ctx context.Context, d device.Discovery) error
}

// MetricsWriter records numeric datapoints and link quality as time
// series. Satisfied by *influxdb.Client.
type MetricsWriter interface {
	WriteDatapoint(deviceID, address string, dpID uint8, dpType string, value float64)
	WriteLinkQuality(address string, rssi int, connected bool)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the tuya section of the bridge configuration.
	Config config.TuyaConfig

	// BridgeID names the bridge in health messages.
	BridgeID string

	// Version is reported in health messages.
	Version string

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Devices, History, Discoveries, Metrics and Scanner are optional.
	Devices     DeviceStore
	History     StateRecorder
	Discoveries DiscoveryStore
	Metrics     MetricsWriter
	Scanner     Scanner

	// Logger is optional structured logger.
	Logger Logger
}

// managedDevice is everything the bridge holds for one paired device.
type managedDevice struct {
	device   *tuya.Device
	product  products.Info
	meta     products.DeviceMeta
	coord    *coordinator.Coordinator
	entities []entity.Entity
	byKey    map[string]entity.Entity
	detach   []func()

	mu        sync.Mutex
	rssi      int
	lastSeen  time.Time
	lastTouch time.Time
}

// publishedState is what the state cache compares.
type publishedState struct {
	available bool
	value     any
}

// NewBridge creates a bridge for the configured devices.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, ErrMQTTRequired
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:         opts.Config,
		bridgeID:    opts.BridgeID,
		topics:      mqtt.NewTopics(opts.Config.TopicPrefix),
		mqtt:        opts.MQTTClient,
		store:       opts.Devices,
		history:     opts.History,
		discoveries: opts.Discoveries,
		metrics:     opts.Metrics,
		scanner:     opts.Scanner,
		devices:     make(map[string]*managedDevice, len(opts.Config.Devices)),
		byAddress:   make(map[string]*managedDevice, len(opts.Config.Devices)),
		stateCache:  make(map[string]map[string]publishedState),
		ctx:         ctx,
		ctxCancel:   ctxCancel,
		logger:      opts.Logger,
	}
	if b.bridgeID == "" {
		b.bridgeID = "tuyable"
	}

	for _, dc := range opts.Config.Devices {
		if err := b.addDevice(dc); err != nil {
			ctxCancel()
			b.closeDevices()
			return nil, err
		}
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  b.bridgeID,
		Version:   opts.Version,
		Topic:     b.topics.Health(),
		Interval:  opts.Config.HealthInterval,
		Publisher: opts.MQTTClient,
		Counts:    b.deviceCounts,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// addDevice builds the session, coordinator and entities for one device.
func (b *Bridge) addDevice(dc config.DeviceConfig) error {
	creds, err := tuya.NewCredentials(dc.UUID, dc.LocalKey, dc.DeviceID, dc.Category,
		dc.ProductID, dc.DeviceName, dc.ProductModel, dc.ProductName)
	if err != nil {
		return fmt.Errorf("device %s: %w", dc.Address, err)
	}

	address := normalizeAddress(dc.Address)
	if _, dup := b.devices[creds.DeviceID]; dup {
		return fmt.Errorf("%w: device_id %s", ErrDuplicateDevice, creds.DeviceID)
	}
	if _, dup := b.byAddress[address]; dup {
		return fmt.Errorf("%w: address %s", ErrDuplicateDevice, address)
	}

	dev, err := tuya.NewDevice(tuya.DeviceInfo{
		Address:      address,
		DeviceID:     creds.DeviceID,
		Category:     creds.Category,
		ProductID:    creds.ProductID,
		Name:         creds.DeviceName,
		ProductModel: creds.ProductModel,
		ProductName:  creds.ProductName,
	}, tuya.DeviceOptions{
		QueueSize: b.cfg.WriteQueueSize,
		Logger:    b.getLogger(),
	})
	if err != nil {
		return fmt.Errorf("device %s: %w", address, err)
	}

	product, known := products.Lookup(creds.Category, creds.ProductID)
	if !known {
		name := creds.ProductName
		if name == "" {
			name = creds.DeviceName
		}
		product = products.Info{Name: name, Manufacturer: products.DefaultManufacturer}
	}

	md := &managedDevice{
		device:  dev,
		product: product,
		meta:    products.DeviceInfo(dev, creds.ProductModel),
		byKey:   make(map[string]entity.Entity),
	}
	md.coord = coordinator.New(dev, coordinator.Options{
		Product:         product,
		DisconnectDelay: b.cfg.DisconnectDelay,
		Events:          coordinator.EventSinkFunc(b.handleEvent),
		Logger:          b.getLogger(),
	})
	md.entities = entity.SetupAll(entity.Deps{Device: dev, Product: product, Coordinator: md.coord})
	for _, e := range md.entities {
		md.byKey[e.Key()] = e
	}

	md.detach = append(md.detach,
		md.coord.AddListener(func() { b.publishDevice(md, device.SourceDevice) }),
		dev.RegisterCallback(func(dps []*tuya.Datapoint) { b.recordDatapoints(md, dps) }),
	)

	b.devices[creds.DeviceID] = md
	b.byAddress[address] = md
	b.order = append(b.order, creds.DeviceID)

	b.logInfo("device configured",
		"device", creds.String(),
		"product", product.Name,
		"known_product", known,
		"entities", len(md.entities))
	return nil
}

// Start subscribes to the gateway and command topics, starts the device
// write loops, health reporting and, when enabled, the BLE scanner.
func (b *Bridge) Start(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.group != nil {
		return fmt.Errorf("bridge already started")
	}

	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.persistDevices()

	for _, topic := range []string{
		b.topics.AllGatewayReports(),
		b.topics.AllGatewayStatus(),
		b.topics.AllCommands(),
	} {
		if err := b.mqtt.Subscribe(topic, 1, b.handleMQTTMessage); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		b.logInfo("subscribed", "topic", topic)
	}

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-b.ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	group, gctx := errgroup.WithContext(runCtx)
	transport := gatewayTransport{client: b.mqtt, topics: b.topics}
	for _, id := range b.order {
		dev := b.devices[id].device
		group.Go(func() error {
			return dev.Run(gctx, transport)
		})
	}
	if b.scanner != nil && b.cfg.Scanner.Enabled {
		group.Go(func() error {
			return b.scanLoop(gctx)
		})
	}
	b.group = group

	b.health.Start(gctx)

	// Entities start unavailable; publish that before any report arrives.
	for _, id := range b.order {
		b.publishDevice(b.devices[id], device.SourceDevice)
	}

	b.logInfo("bridge started",
		"bridge_id", b.bridgeID,
		"devices", len(b.order),
		"prefix", b.topics.Prefix)
	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.health.Stop()

		b.runMu.Lock()
		group := b.group
		b.runMu.Unlock()
		if group != nil {
			if err := group.Wait(); err != nil {
				b.logError("device loop failed", err)
			}
		}

		b.closeDevices()
		b.logInfo("bridge stopped")
	})
}

func (b *Bridge) closeDevices() {
	for _, md := range b.devices {
		for _, fn := range md.detach {
			fn()
		}
		md.detach = nil
		md.coord.Close()
	}
}

// persistDevices upserts every configured device into the store.
func (b *Bridge) persistDevices() {
	if b.store == nil {
		return
	}
	for _, id := range b.order {
		md := b.devices[id]
		ctx, cancel := context.WithTimeout(b.ctx, storeTimeout)
		err := b.store.UpsertDevice(ctx, device.Device{
			ID:           md.meta.DeviceID,
			Address:      md.meta.Address,
			Name:         md.meta.Name,
			Category:     md.meta.Category,
			ProductID:    md.meta.ProductID,
			ProductName:  md.product.Name,
			Manufacturer: md.meta.Manufacturer,
		})
		cancel()
		if err != nil {
			b.logError("failed to persist device", fmt.Errorf("%s: %w", id, err))
		}
	}
}

// =============================================================================
// Inbound MQTT
// =============================================================================

// handleMQTTMessage routes gateway and command messages.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	if address, kind, err := b.topics.ParseGatewayTopic(topic); err == nil {
		switch kind {
		case "report":
			b.handleReport(address, payload)
		case "status":
			b.handleStatus(address, payload)
		default:
			b.logDebug("ignoring gateway topic", "topic", topic)
		}
		return
	}

	if deviceID, key, err := b.topics.ParseEntityTopic("command", topic); err == nil {
		b.handleCommand(deviceID, key, payload)
		return
	}

	b.logError("unexpected topic", fmt.Errorf("topic: %s", topic))
}

func (b *Bridge) handleReport(address string, payload []byte) {
	md, ok := b.byAddress[normalizeAddress(address)]
	if !ok {
		b.logDebug("report for unknown address", "address", address)
		return
	}

	var report GatewayReport
	if err := json.Unmarshal(payload, &report); err != nil {
		b.logError("invalid gateway report", fmt.Errorf("%w: %s: %v", ErrInvalidPayload, address, err))
		return
	}
	records, err := tuya.Decode(report.DPS)
	if err != nil {
		b.logError("invalid datapoint frame", fmt.Errorf("%s: %w", address, err))
		return
	}

	b.touch(md)
	md.device.HandleReport(records, report.changedByDevice())
}

func (b *Bridge) handleStatus(address string, payload []byte) {
	md, ok := b.byAddress[normalizeAddress(address)]
	if !ok {
		b.logDebug("status for unknown address", "address", address)
		return
	}

	var status GatewayStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		b.logError("invalid gateway status", fmt.Errorf("%w: %s: %v", ErrInvalidPayload, address, err))
		return
	}

	md.mu.Lock()
	md.rssi = status.RSSI
	md.mu.Unlock()

	if b.metrics != nil {
		b.metrics.WriteLinkQuality(md.device.Address(), status.RSSI, status.Connected)
	}

	if status.Connected {
		b.touch(md)
		md.device.HandleConnected()
	} else {
		md.device.HandleDisconnected()
	}
}

func (b *Bridge) handleCommand(deviceID, key string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.publishAck(NewAckMessage(cmd, deviceID, key, fmt.Errorf("%w: %v", ErrInvalidPayload, err)))
		return
	}
	if cmd.Source == "" {
		cmd.Source = "mqtt"
	}
	// ExecuteCommand publishes the ack.
	b.ExecuteCommand(b.ctx, deviceID, key, cmd) //nolint:errcheck // reported through the ack
}

// ExecuteCommand runs cmd against an entity and publishes the ack.
//
// The returned ack is also the MQTT ack; a non-nil error means the ack
// status is failed and its code is ErrorCode(err).
func (b *Bridge) ExecuteCommand(ctx context.Context, deviceID, key string, cmd CommandMessage) (AckMessage, error) {
	if cmd.ID == "" {
		cmd = NewCommandMessage(cmd.Command, cmd.Value, cmd.Source)
	}

	err := b.execute(ctx, deviceID, key, cmd)
	ack := NewAckMessage(cmd, deviceID, key, err)
	b.publishAck(ack)

	if err != nil {
		b.logError("command failed", fmt.Errorf("%s/%s %s: %w", deviceID, key, cmd.Command, err))
		return ack, err
	}
	b.logDebug("command accepted", "device_id", deviceID, "key", key, "command", cmd.Command, "source", cmd.Source)
	return ack, nil
}

func (b *Bridge) execute(ctx context.Context, deviceID, key string, cmd CommandMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	md, ok := b.devices[deviceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	e, ok := md.byKey[key]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrEntityNotFound, deviceID, key)
	}
	if !e.Available() {
		return fmt.Errorf("%w: %s/%s", ErrDeviceUnavailable, deviceID, key)
	}
	if err := entity.Execute(e, cmd.Command, cmd.Value); err != nil {
		return err
	}

	// Writes update the datapoint cache before the device confirms.
	b.publishDevice(md, device.SourceCommand)
	return nil
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(ack.DeviceID, ack.Key), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// =============================================================================
// Outbound state and events
// =============================================================================

// publishDevice publishes every entity state of md that changed since the
// last publication and records it to history.
func (b *Bridge) publishDevice(md *managedDevice, source string) {
	b.publishStates(md, source, true)
}

func (b *Bridge) publishStates(md *managedDevice, source string, record bool) {
	deviceID := md.device.DeviceID()
	for _, e := range md.entities {
		msg := StateMessage{
			DeviceID:   deviceID,
			Key:        e.Key(),
			Platform:   e.Platform(),
			Timestamp:  time.Now().UTC(),
			Available:  e.Available(),
			Value:      e.State(),
			Attributes: attributes(e.Description()),
		}
		if b.stateUnchanged(deviceID, msg.Key, publishedState{available: msg.Available, value: msg.Value}) {
			continue
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			b.logError("failed to marshal state", err)
			continue
		}
		if err := b.mqtt.Publish(b.topics.State(deviceID, msg.Key), payload, 1, true); err != nil {
			b.logError("failed to publish state", err)
		}

		if record {
			b.recordState(msg, source)
		}
		b.notifyState(msg)
	}
}

func (b *Bridge) recordState(msg StateMessage, source string) {
	if b.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, storeTimeout)
	defer cancel()

	state := map[string]any{"available": msg.Available, "value": msg.Value}
	if err := b.history.RecordState(ctx, msg.DeviceID, msg.Key, state, source); err != nil {
		b.logError("failed to record state history", err)
	}
}

// recordDatapoints writes numeric and bool datapoints to the metrics store.
func (b *Bridge) recordDatapoints(md *managedDevice, dps []*tuya.Datapoint) {
	if b.metrics == nil {
		return
	}
	for _, dp := range dps {
		var v float64
		switch {
		case dp.Type() == tuya.TypeBool:
			on, _ := dp.AsBool()
			if on {
				v = 1
			}
		case dp.Type().Numeric():
			n, ok := dp.AsInt()
			if !ok {
				continue
			}
			v = float64(n)
		default:
			continue
		}
		b.metrics.WriteDatapoint(md.device.DeviceID(), md.device.Address(), dp.ID(), dp.Type().String(), v)
	}
}

// handleEvent is the coordinator's event sink.
func (b *Bridge) handleEvent(e coordinator.Event) {
	msg := EventMessage{
		Event:     e.Type,
		DeviceID:  e.DeviceID,
		Address:   e.Address,
		Timestamp: e.Time.UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal event", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Event(e.DeviceID, e.Type), payload, 1, false); err != nil {
		b.logError("failed to publish event", err)
	}
	b.logInfo("device event", "event", e.Type, "device_id", e.DeviceID)
	b.notifyEvent(msg)
}

// attributes are the static description fields consumers need.
func attributes(d entity.Description) map[string]any {
	attrs := map[string]any{}
	if d.DeviceClass != "" {
		attrs["device_class"] = d.DeviceClass
	}
	if d.Unit != "" {
		attrs["unit"] = d.Unit
	}
	if len(d.Options) > 0 {
		attrs["options"] = d.Options
	}
	if d.Category != entity.CategoryNone {
		attrs["entity_category"] = string(d.Category)
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// stateUnchanged reports whether s equals the cached state, caching s
// when it does not.
func (b *Bridge) stateUnchanged(deviceID, key string, s publishedState) bool {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	if b.stateCache[deviceID] == nil {
		b.stateCache[deviceID] = make(map[string]publishedState)
	}

	cached, ok := b.stateCache[deviceID][key]
	if ok && cached.available == s.available && valuesEqual(cached.value, s.value) {
		return true
	}
	b.stateCache[deviceID][key] = s
	return false
}

// valuesEqual compares two values for equality, handling []byte specially
// since Go's == operator cannot compare slices directly.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	aBytes, aIsBytes := a.([]byte)
	bBytes, bIsBytes := b.([]byte)
	if aIsBytes || bIsBytes {
		return aIsBytes && bIsBytes && string(aBytes) == string(bBytes)
	}

	return a == b
}

// ClearStateCache forces the next notification to republish every state.
func (b *Bridge) ClearStateCache() {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()
	b.stateCache = make(map[string]map[string]publishedState)
}

// RepublishStates publishes the current state of every entity again, for
// example after the broker lost its retained messages. History is not
// written for the repeated states.
func (b *Bridge) RepublishStates() {
	b.ClearStateCache()
	for _, id := range b.order {
		b.publishStates(b.devices[id], device.SourceDevice, false)
	}
	b.logInfo("entity states republished", "devices", len(b.order))
}

// =============================================================================
// Scanner
// =============================================================================

func (b *Bridge) scanLoop(ctx context.Context) error {
	interval := b.cfg.Scanner.Interval
	if interval <= 0 {
		interval = b.cfg.Scanner.Window
	}

	for {
		err := b.scanner.Scan(ctx, b.cfg.Scanner.Window, b.handleAdvertisement)
		if errors.Is(err, ErrScannerUnavailable) {
			b.logError("BLE scanner disabled", err)
			return nil
		}
		if err != nil {
			b.logError("BLE scan failed", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (b *Bridge) handleAdvertisement(adv Advertisement) {
	serviceUUID, ok := TuyaServiceUUID(adv)
	if !ok {
		return
	}
	address := normalizeAddress(adv.Address)
	_, paired := b.byAddress[address]
	now := time.Now().UTC()

	if b.discoveries != nil {
		ctx, cancel := context.WithTimeout(b.ctx, storeTimeout)
		err := b.discoveries.RecordDiscovery(ctx, device.Discovery{
			Address:     address,
			Name:        adv.Name,
			RSSI:        adv.RSSI,
			ServiceUUID: serviceUUID,
			LastSeen:    now,
		})
		cancel()
		if err != nil {
			b.logError("failed to record discovery", err)
		}
	}

	payload, err := json.Marshal(DiscoveryMessage{
		ID:          uuid.NewString(),
		Timestamp:   now,
		Address:     address,
		Name:        adv.Name,
		RSSI:        adv.RSSI,
		ServiceUUID: serviceUUID,
		Paired:      paired,
	})
	if err != nil {
		b.logError("failed to marshal discovery", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Discovery(address), payload, 0, false); err != nil {
		b.logError("failed to publish discovery", err)
	}
}

// =============================================================================
// Read-only views
// =============================================================================

// DeviceView is a snapshot of one managed device.
type DeviceView struct {
	products.DeviceMeta
	Connected   bool       `json:"connected"`
	RSSI        int        `json:"rssi,omitempty"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	EntityCount int        `json:"entity_count"`
}

// EntityView is a snapshot of one entity.
type EntityView struct {
	UniqueID    string             `json:"unique_id"`
	Key         string             `json:"key"`
	Platform    entity.Platform    `json:"platform"`
	DPID        uint8              `json:"dp_id"`
	Available   bool               `json:"available"`
	State       any                `json:"state"`
	Description entity.Description `json:"description"`
	Commands    []string           `json:"commands"`
}

// Devices returns every managed device in configuration order.
func (b *Bridge) Devices() []DeviceView {
	out := make([]DeviceView, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.devices[id].view())
	}
	return out
}

// Device returns one managed device.
func (b *Bridge) Device(id string) (DeviceView, bool) {
	md, ok := b.devices[id]
	if !ok {
		return DeviceView{}, false
	}
	return md.view(), true
}

// Entities returns the entities of a device in setup order.
func (b *Bridge) Entities(id string) ([]EntityView, error) {
	md, ok := b.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	out := make([]EntityView, 0, len(md.entities))
	for _, e := range md.entities {
		out = append(out, EntityView{
			UniqueID:    e.UniqueID(),
			Key:         e.Key(),
			Platform:    e.Platform(),
			DPID:        e.DPID(),
			Available:   e.Available(),
			State:       e.State(),
			Description: e.Description(),
			Commands:    entity.Commands(e.Platform()),
		})
	}
	return out, nil
}

func (md *managedDevice) view() DeviceView {
	md.mu.Lock()
	defer md.mu.Unlock()
	v := DeviceView{
		DeviceMeta:  md.meta,
		Connected:   md.coord.Connected(),
		RSSI:        md.rssi,
		EntityCount: len(md.entities),
	}
	if !md.lastSeen.IsZero() {
		seen := md.lastSeen
		v.LastSeen = &seen
	}
	return v
}

// deviceCounts returns the managed and connected device counts.
func (b *Bridge) deviceCounts() (managed, connected int) {
	for _, md := range b.devices {
		if md.coord.Connected() {
			connected++
		}
	}
	return len(b.devices), connected
}

// touch records that md was heard from, persisting at most once per
// touchInterval.
func (b *Bridge) touch(md *managedDevice) {
	now := time.Now().UTC()
	md.mu.Lock()
	md.lastSeen = now
	persist := b.store != nil && now.Sub(md.lastTouch) >= touchInterval
	if persist {
		md.lastTouch = now
	}
	md.mu.Unlock()

	if !persist {
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, storeTimeout)
	defer cancel()
	if err := b.store.TouchDevice(ctx, md.device.DeviceID(), now); err != nil {
		b.logError("failed to update last seen", err)
	}
}

// =============================================================================
// Observers
// =============================================================================

// OnStateChange registers fn for every published entity state.
func (b *Bridge) OnStateChange(fn func(StateMessage)) {
	b.observersMu.Lock()
	defer b.observersMu.Unlock()
	b.stateObservers = append(b.stateObservers, fn)
}

// OnEvent registers fn for every device event.
func (b *Bridge) OnEvent(fn func(EventMessage)) {
	b.observersMu.Lock()
	defer b.observersMu.Unlock()
	b.eventObservers = append(b.eventObservers, fn)
}

func (b *Bridge) notifyState(msg StateMessage) {
	b.observersMu.RLock()
	fns := slices.Clone(b.stateObservers)
	b.observersMu.RUnlock()
	for _, fn := range fns {
		fn(msg)
	}
}

func (b *Bridge) notifyEvent(msg EventMessage) {
	b.observersMu.RLock()
	fns := slices.Clone(b.eventObservers)
	b.observersMu.RUnlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// =============================================================================
// Logging
// =============================================================================

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

// getLogger returns the logger, or nil when none is set.
func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// normalizeAddress upper-cases a BLE MAC address.
func normalizeAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}
