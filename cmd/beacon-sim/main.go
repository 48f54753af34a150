package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type beaconPayload struct {
	ID             string `json:"id"`
	RSSI           int    `json:"rssi"`
	BatteryVoltage int    `json:"battery.voltage,omitempty"`
}

type messagePayload struct {
	Ident     string          `json:"ident"`
	Timestamp float64         `json:"timestamp"`
	Latitude  float64         `json:"position.latitude"`
	Longitude float64         `json:"position.longitude"`
	Beacons   []beaconPayload `json:"ble.beacons"`
}

type publisher func(data []byte) error

func main() {
	mode := flag.String("mode", "mqtt", "Delivery mode: mqtt or http")
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	webhookURL := flag.String("url", "http://localhost:8080/flespi", "Webhook URL used in http mode")
	deviceID := flag.String("device", "sim-gw-1", "Gateway device ident")
	beaconList := flag.String("beacons", "sim-beacon-1,sim-beacon-2", "Comma separated beacon ids")
	lat := flag.Float64("lat", -13.8333, "Gateway latitude")
	lon := flag.Float64("lon", -171.7667, "Gateway longitude")
	interval := flag.Duration("interval", 5*time.Second, "Interval between published messages")
	baseRSSI := flag.Int("base-rssi", -65, "Baseline RSSI value to simulate")
	rssiJitter := flag.Int("rssi-jitter", 6, "Maximum random jitter applied to RSSI readings")
	batteryMV := flag.Int("battery-mv", 2900, "Beacon battery voltage in millivolts, 0 to omit")
	dropRate := flag.Float64("drop-rate", 0.1, "Probability that a beacon is missing from a message")

	flag.Parse()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	beacons := splitIDs(*beaconList)

	var publish publisher
	var closeFn func()

	switch *mode {
	case "mqtt":
		topic := fmt.Sprintf("flespi/message/gw/devices/%s", *deviceID)
		clientID := fmt.Sprintf("%s-simulator-%d", *deviceID, time.Now().UnixNano())
		opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(clientID)
		opts = opts.SetOrderMatters(false)

		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Fatalf("failed to connect to broker: %v", token.Error())
		}
		log.Printf("connected to MQTT broker %s as %s", *brokerAddr, clientID)

		publish = func(data []byte) error {
			token := client.Publish(topic, 0, false, data)
			token.Wait()
			return token.Error()
		}
		closeFn = func() { client.Disconnect(250) }
	case "http":
		httpClient := &http.Client{Timeout: 5 * time.Second}
		publish = func(data []byte) error {
			// The webhook receives batches, so wrap the single message in a list.
			body := append(append([]byte("["), data...), ']')
			resp, err := httpClient.Post(*webhookURL, "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("webhook returned %s", resp.Status)
			}
			return nil
		}
		closeFn = func() {}
	default:
		log.Fatalf("unknown mode %q", *mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	send := func() {
		msg := messagePayload{
			Ident:     *deviceID,
			Timestamp: float64(time.Now().Unix()),
			Latitude:  *lat,
			Longitude: *lon,
			Beacons:   []beaconPayload{},
		}
		for _, id := range beacons {
			if rng.Float64() < *dropRate {
				continue
			}
			msg.Beacons = append(msg.Beacons, beaconPayload{
				ID:             id,
				RSSI:           randomRSSI(rng, *baseRSSI, *rssiJitter),
				BatteryVoltage: *batteryMV,
			})
		}

		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("failed to encode payload: %v", err)
			return
		}

		if err := publish(data); err != nil {
			log.Printf("publish error: %v", err)
			return
		}
		log.Printf("published %s beacons=%d", *deviceID, len(msg.Beacons))
	}

	send()

	for {
		select {
		case <-ctx.Done():
			log.Print("received shutdown signal, stopping")
			closeFn()
			return
		case <-ticker.C:
			send()
		}
	}
}

func splitIDs(v string) []string {
	var ids []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func randomRSSI(rng *rand.Rand, base, jitter int) int {
	if jitter <= 0 {
		return base
	}
	delta := rng.Intn(jitter*2+1) - jitter
	return base + delta
}
