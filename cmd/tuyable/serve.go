package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-tuyable/internal/api"
	"github.com/nerrad567/gray-logic-tuyable/internal/bridges/tuyable"
	"github.com/nerrad567/gray-logic-tuyable/internal/device"
	"github.com/nerrad567/gray-logic-tuyable/internal/gateway"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-tuyable/migrations"
)

// historyPruneInterval is how often expired state history is deleted.
const historyPruneInterval = time.Hour

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.configPath)
		},
	}
}

// run is the bridge process, separated from the command for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path to the YAML config file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting tuyable",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(&rootOptions{configPath: configPath})
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", configPath, "devices", len(cfg.Tuya.Devices))

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database, migrations.FS))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	history := device.NewSQLiteStateHistoryRepository(db.DB)
	discoveries := device.NewSQLiteDiscoveryRepository(db.DB)

	topics := mqtt.NewTopics(cfg.Tuya.TopicPrefix)
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic_prefix", cfg.Tuya.TopicPrefix,
	)

	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var metrics tuyable.MetricsWriter
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	var gatewayStats api.GatewayStatser
	if cfg.Tuya.Gateway.Managed {
		sup, gwErr := startGateway(ctx, cfg.Tuya.Gateway, log)
		if gwErr != nil {
			return fmt.Errorf("starting gateway: %w", gwErr)
		}
		defer func() {
			log.Info("stopping gateway")
			if stopErr := sup.Stop(); stopErr != nil {
				log.Error("error stopping gateway", "error", stopErr)
			}
		}()
		gatewayStats = sup
	}

	var scanner tuyable.Scanner
	if cfg.Tuya.Scanner.Enabled {
		scanner = tuyable.NewBLEScanner()
	}

	bridge, err := tuyable.NewBridge(tuyable.BridgeOptions{
		Config:      cfg.Tuya,
		BridgeID:    cfg.Site.ID,
		Version:     version,
		MQTTClient:  &mqttBridgeAdapter{client: mqttClient},
		Devices:     deviceRegistry,
		History:     history,
		Discoveries: discoveries,
		Metrics:     metrics,
		Scanner:     scanner,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()
	log.Info("bridge started", "devices", len(cfg.Tuya.Devices), "scanner", cfg.Tuya.Scanner.Enabled)

	// A restarted broker loses retained states, so publish them again.
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		bridge.RepublishStates()
	})

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Security:    cfg.Security,
			Logger:      log,
			Bridge:      bridge,
			Registry:    deviceRegistry,
			History:     history,
			Discoveries: discoveries,
			MQTT:        mqttClient,
			DB:          db,
			Gateway:     gatewayStats,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if cfg.Database.HistoryRetention > 0 {
		go pruneHistoryLoop(ctx, history, cfg.Database.HistoryRetention, log)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API, bridge, gateway, InfluxDB, MQTT, database.
	return nil
}

// startGateway launches the local BLE gateway daemon under supervision.
//
// Parameters:
//   - ctx: Context bounding the supervisor's restart loop
//   - cfg: Gateway section of the tuya config
//   - log: Logger instance
//
// Returns:
//   - *gateway.Supervisor: Running supervisor
//   - error: If the first launch fails
func startGateway(ctx context.Context, cfg config.GatewayConfig, log *logging.Logger) (*gateway.Supervisor, error) {
	sup := gateway.NewSupervisor(gateway.Config{
		Binary:             cfg.Binary,
		Args:               cfg.Args,
		Env:                cfg.Env,
		RestartOnFailure:   cfg.RestartOnFailure,
		RestartDelay:       cfg.RestartDelay,
		MaxRestartDelay:    cfg.MaxRestartDelay,
		MaxRestartAttempts: cfg.MaxRestartAttempts,
		GracefulTimeout:    cfg.GracefulTimeout,
	})
	sup.SetLogger(log)

	if err := sup.Start(ctx); err != nil {
		return nil, err
	}
	log.Info("gateway supervisor running", "binary", cfg.Binary, "pid", sup.Stats().PID)
	return sup, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Gateway reachability is not checked here: devices stay unavailable
	// until the gateway reports them connected.
	return nil
}

// historyPruner deletes old state history.
type historyPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneHistoryLoop prunes once at startup and then every historyPruneInterval.
func pruneHistoryLoop(ctx context.Context, repo historyPruner, retention time.Duration, log *logging.Logger) {
	prune := func() {
		n, err := repo.PruneHistory(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("pruning state history failed", "error", err)
			}
			return
		}
		if n > 0 {
			log.Info("pruned state history", "deleted", n, "retention", retention)
		}
	}

	prune()
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements tuyable.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements tuyable.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements tuyable.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
