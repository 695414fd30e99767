package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartfarm-iot/telemetry-node/internal/conn"
	"github.com/smartfarm-iot/telemetry-node/internal/display"
	"github.com/smartfarm-iot/telemetry-node/internal/hal"
	"github.com/smartfarm-iot/telemetry-node/internal/model"
	"github.com/smartfarm-iot/telemetry-node/internal/node"
	"github.com/smartfarm-iot/telemetry-node/internal/obs"
	"github.com/smartfarm-iot/telemetry-node/internal/sensor"
	"github.com/smartfarm-iot/telemetry-node/pkg/broker"
	"github.com/smartfarm-iot/telemetry-node/pkg/monoclock"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the node config file")
	flag.Parse()

	cfg, err := node.Load(*configPath)
	if err != nil {
		log.Fatalf("node: config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Hardware ===
	link, sampler := buildHardware(cfg)

	// === Wiring ===
	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(reg)
	clock := monoclock.NewWall()

	mgr := conn.NewManager(conn.Config{
		Broker: broker.Config{
			Host:     cfg.MQTT.Host,
			Port:     cfg.MQTT.Port,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		},
		ClientPrefix: cfg.MQTT.ClientPrefix,
		CommandTopic: cfg.Topics.Command,
	}, link, broker.PahoDialer{}, clock, metrics)

	n := node.New(cfg, mgr, sampler, display.Console{Width: cfg.Display.Width}, clock, metrics)

	// === HTTP ===
	hs := obs.NewServer(cfg.Metrics.Addr, reg, n.HealthStats)
	go func() {
		log.Printf("node: http listening on %s", cfg.Metrics.Addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("node: http server error: %v", err)
		}
	}()

	// === Loop ===
	n.Run(ctx)

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
}

func buildHardware(cfg *node.Config) (hal.Link, sensor.Sampler) {
	if cfg.Sim.Enabled {
		log.Printf("node: simulated hardware, seed %d", cfg.Sim.Seed)
		link := &hal.SimLink{Addr: cfg.Sim.Addr, UpAfter: cfg.Sim.LinkUpAfter}
		if cfg.NodeKind() == model.KindWaterLevel {
			pulser := hal.NewSimEchoPulser(sensor.CmPerMicrosecond, 12, 2, 20, cfg.Sim.NoEchoProb, cfg.Sim.Seed)
			return link, sensor.NewWaterSampler(pulser)
		}
		return link, sensor.NewFieldSampler(
			hal.NewSimThermistorADC(sensor.Beta, sensor.RefTempK, sensor.FullScale, 25, cfg.Sim.Seed),
			hal.NewSimSoilADC(sensor.SoilDryRaw, sensor.SoilWetRaw, 0.5, cfg.Sim.Seed+1),
		)
	}

	link := &hal.SysfsLink{Iface: cfg.Iface}
	if cfg.NodeKind() == model.KindWaterLevel {
		return link, sensor.NewWaterSampler(&hal.FileEchoPulser{Path: cfg.Hardware.EchoMicrosPath})
	}
	return link, sensor.NewFieldSampler(
		&hal.FileADC{Path: cfg.Hardware.ThermistorRawPath},
		&hal.FileADC{Path: cfg.Hardware.SoilRawPath},
	)
}
