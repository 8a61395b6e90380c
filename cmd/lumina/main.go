// Lumina Core - Real-Time Home Automation Hub
//
// This is the main entry point for the Lumina Core application.
// Lumina keeps every connected client (desktop, simulator, browser)
// looking at the same device state:
//   - TCP control protocol with JWT-backed sessions
//   - UDP push notifications for registered observers
//   - WebSocket bridge for web dashboards
//   - JPEG camera ingestion and MJPEG distribution
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lumina-home/lumina-core/migrations"

	"github.com/lumina-home/lumina-core/internal/activity"
	"github.com/lumina-home/lumina-core/internal/auth"
	"github.com/lumina-home/lumina-core/internal/browser"
	"github.com/lumina-home/lumina-core/internal/bus"
	"github.com/lumina-home/lumina-core/internal/camera"
	"github.com/lumina-home/lumina-core/internal/control"
	"github.com/lumina-home/lumina-core/internal/device"
	"github.com/lumina-home/lumina-core/internal/house"
	"github.com/lumina-home/lumina-core/internal/infrastructure/config"
	"github.com/lumina-home/lumina-core/internal/infrastructure/database"
	"github.com/lumina-home/lumina-core/internal/infrastructure/influxdb"
	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
	"github.com/lumina-home/lumina-core/internal/infrastructure/mqtt"
	"github.com/lumina-home/lumina-core/internal/notify"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Lumina Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories and registry
	userRepo := auth.NewUserRepository(db.DB)
	houseRepo := house.NewRepository(db.DB)
	deviceRepo := device.NewRepository(db.DB)
	deviceRegistry := device.NewRegistry(deviceRepo, log)

	// Ensure the default admin account exists
	if seedErr := auth.SeedAdmin(ctx, userRepo, log); seedErr != nil {
		return fmt.Errorf("seeding admin user: %w", seedErr)
	}

	// Event hub connecting the control server to every outbound surface
	hub := bus.NewHub(log)
	defer hub.Close()

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Activity log consumes device changes off the bus
	recorder := activity.NewRecorder(activity.NewRepository(db.DB), influxClient, log)
	go recorder.Run(ctx, hub.Subscribe("activity", bus.DefaultBuffer))

	// MQTT event fanout (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		go runMQTTFanout(mqttClient, hub, byte(cfg.MQTT.QoS), log)
	} else {
		log.Info("MQTT fanout disabled")
	}

	// TCP control server
	controlServer := control.NewServer(control.Options{
		Addr:        cfg.ControlAddr(),
		MaxSessions: cfg.Control.MaxSessions,
		JWTSecret:   cfg.Security.JWT.Secret,
		TokenTTL:    cfg.GetTokenTTL(),
		Users:       userRepo,
		Houses:      houseRepo,
		Devices:     deviceRegistry,
		Hub:         hub,
		Logger:      log,
	})
	if startErr := controlServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting control server: %w", startErr)
	}
	defer func() {
		log.Info("stopping control server")
		controlServer.Close()
	}()

	// UDP notification relay
	relay := notify.NewRelay(cfg.NotifyAddr(), hub, log)
	if startErr := relay.Start(ctx); startErr != nil {
		return fmt.Errorf("starting notification relay: %w", startErr)
	}
	defer func() {
		log.Info("stopping notification relay")
		relay.Close()
	}()

	// WebSocket bridge
	bridge := browser.NewServer(cfg.BrowserAddr(), hub, log)
	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting websocket bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping websocket bridge")
		bridge.Close()
	}()

	// Camera pipeline
	cameraPipeline := camera.New(cfg.Camera, log)
	if startErr := cameraPipeline.Start(ctx); startErr != nil {
		return fmt.Errorf("starting camera pipeline: %w", startErr)
	}
	defer func() {
		log.Info("stopping camera pipeline")
		cameraPipeline.Close()
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"control", controlServer.Addr(),
		"notify", relay.Addr(),
		"browser", bridge.Addr(),
		"camera_http", cameraPipeline.HTTPAddr(),
	)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Lumina Core stopped")
	return nil
}

// runMQTTFanout republishes every bus envelope to the event topic so
// external integrations (Home Assistant, Node-RED) can follow device
// state without speaking the control protocol.
func runMQTTFanout(client *mqtt.Client, hub *bus.Hub, qos byte, log *logging.Logger) {
	sub := hub.Subscribe("mqtt", bus.DefaultBuffer)
	topic := mqtt.Topics{}.Event("device_changed")

	for env := range sub.C() {
		if err := client.PublishString(topic, env.Message().String(), qos, false); err != nil {
			log.Warn("mqtt fanout publish failed",
				"topic", topic,
				"device_id", env.DeviceID,
				"error", err,
			)
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses LUMINA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LUMINA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
