package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// devicesim publishes synthetic GPS and sensor payloads so the relay can be
// exercised without real hardware.

type gpsPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type sensorPayload struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker address")
	gpsTopic := flag.String("gps-topic", "esp32/gps", "GPS topic")
	sensorTopic := flag.String("sensor-topic", "esp32/sensor", "sensor topic")
	interval := flag.Duration("interval", 5*time.Second, "publish interval")
	flag.Parse()

	opts := mqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID("esp32-devicesim")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("Failed to connect to broker %s: %v", *broker, token.Error())
	}
	log.Printf("Connected to %s, publishing every %s", *broker, *interval)

	// Random walk around central Jakarta
	lat, lng := -6.2, 106.8

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			log.Println("Stopping simulator")
			client.Disconnect(250)
			return
		case <-ticker.C:
			lat += (rand.Float64() - 0.5) * 0.001
			lng += (rand.Float64() - 0.5) * 0.001
			publish(client, *gpsTopic, gpsPayload{Latitude: lat, Longitude: lng})
			publish(client, *sensorTopic, sensorPayload{
				Temperature: 24 + rand.Float64()*8,
				Humidity:    50 + rand.Float64()*30,
			})
		}
	}
}

func publish(client mqtt.Client, topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling payload for %s: %v", topic, err)
		return
	}
	token := client.Publish(topic, 0, false, data)
	token.Wait()
	if token.Error() != nil {
		log.Printf("Failed to publish to %s: %v", topic, token.Error())
		return
	}
	log.Printf("Published to %s: %s", topic, data)
}
