// BluOS bridge - adapter for Bluesound/BluOS network players.
//
// This is the main entry point for the bridge. It owns the process
// lifecycle: configuration, the SQLite-backed state store, the optional
// MQTT bus, the BluOS adapter and the optional HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/rookie50/ioBroker.bluos/migrations"

	"github.com/rookie50/ioBroker.bluos/internal/api"
	"github.com/rookie50/ioBroker.bluos/internal/bridges/bluos"
	"github.com/rookie50/ioBroker.bluos/internal/infrastructure/config"
	"github.com/rookie50/ioBroker.bluos/internal/infrastructure/database"
	"github.com/rookie50/ioBroker.bluos/internal/infrastructure/logging"
	"github.com/rookie50/ioBroker.bluos/internal/infrastructure/mqtt"
	"github.com/rookie50/ioBroker.bluos/internal/state"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence with deferred teardown
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting BluOS bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"namespace", cfg.Adapter.Namespace,
		"level", cfg.Logging.Level,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// State store
	storeOpts := state.StoreOptions{
		Repository: state.NewSQLiteRepository(db.DB),
		Logger:     log.Component("state"),
		Source:     "system.adapter." + cfg.Adapter.Namespace,
	}
	if mqttClient != nil {
		storeOpts.Bus = state.NewBus(&mqttBusAdapter{client: mqttClient}, mqttClient.Topics(), mqttClient.QoS(), log.Component("bus"))
	}
	store, err := state.NewStore(storeOpts)
	if err != nil {
		return fmt.Errorf("creating state store: %w", err)
	}
	defer store.Close()
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("starting state store: %w", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// BluOS adapter
	adapterOpts := bluos.AdapterOptions{
		Config:     cfg.Adapter,
		Store:      store,
		Registerer: registry,
		Logger:     log.Component("bluos"),
		Version:    version,
	}
	if mqttClient != nil {
		adapterOpts.Publisher = mqttClient
		adapterOpts.HealthTopic = mqttClient.Topics().Health(bluos.BridgeID)
	}
	adapter, err := bluos.NewAdapter(adapterOpts)
	if err != nil {
		return fmt.Errorf("creating BluOS adapter: %w", err)
	}
	if err := adapter.Start(ctx); err != nil {
		return fmt.Errorf("starting BluOS adapter: %w", err)
	}
	defer func() {
		log.Info("stopping BluOS adapter")
		adapter.Stop()
	}()
	log.Info("BluOS adapter started", "devices", len(adapter.Devices()))

	// HTTP API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log.Component("api"),
			Bridge:   adapter,
			Store:    store,
			Gatherer: registry,
			DB:       db,
			Version:  version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		server, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server (if enabled)
	// 2. BluOS adapter
	// 3. State store subscriptions
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("BluOS bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BLUOS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BLUOS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads path, falling back to the built-in defaults when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating default config: %w", err)
	}
	return cfg, nil
}

// healthCheck verifies the infrastructure connections are healthy.
// mqttClient may be nil when MQTT is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	return nil
}

// mqttBusAdapter adapts the infrastructure MQTT client to state.BusClient.
// The only difference is the named handler type on Subscribe.
type mqttBusAdapter struct {
	client *mqtt.Client
}

// Publish implements state.BusClient.
func (a *mqttBusAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements state.BusClient.
func (a *mqttBusAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, handler)
}
