package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"github.com/smartfarm-iot/telemetry-node/internal/nodetap"
	"github.com/smartfarm-iot/telemetry-node/pkg/broker"
)

func main() {
	host := flag.String("host", env("MQTT_HOST", "localhost"), "broker host")
	port := flag.Int("port", envInt("MQTT_PORT", 1883), "broker port")
	username := flag.String("username", env("MQTT_USERNAME", ""), "broker username")
	password := flag.String("password", env("MQTT_PASSWORD", ""), "broker password")
	fieldTopic := flag.String("field-topic", "smartfarm/field-stats", "field-stats telemetry topic")
	waterTopic := flag.String("water-topic", "smartfarm/water-level", "water-level telemetry topic")
	cmdTopic := flag.String("cmd-topic", "", "command topic to watch (full topic, device already expanded)")
	sendSample := flag.Bool("send-sample", false, "publish one sample command on -cmd-topic and exit")
	flag.Parse()

	cfg := broker.Config{
		Host:     *host,
		Port:     *port,
		Username: *username,
		Password: *password,
		ClientID: fmt.Sprintf("nodetap-%s", uuid.New().String()[:8]),
	}

	session, err := broker.PahoDialer{}.Dial(cfg)
	if err != nil {
		log.Fatalf("nodetap: dial %s: %v", cfg.Addr(), err)
	}
	defer session.Close()

	if *sendSample {
		if *cmdTopic == "" {
			log.Fatalf("nodetap: -send-sample needs -cmd-topic")
		}
		if err := nodetap.SendSample(session, *cmdTopic); err != nil {
			log.Fatalf("nodetap: send sample: %v", err)
		}
		log.Printf("nodetap: sample command sent on %s", *cmdTopic)
		return
	}

	tap := nodetap.New(session, nodetap.Config{
		FieldStatsTopic: *fieldTopic,
		WaterLevelTopic: *waterTopic,
		CommandTopic:    *cmdTopic,
	}, os.Stdout)
	if err := tap.Start(); err != nil {
		log.Fatalf("nodetap: subscribe: %v", err)
	}
	log.Printf("nodetap: watching %s", cfg.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Println("nodetap: shutting down")
}

// ---- ENV ----

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
