// Package integration handles external service interactions
package integration

import (
	"crypto/tls"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bagashp/esp32-telemetry-bot/internal/config"
)

// MQTTClient wraps the broker connection. Topic handlers are registered with
// Route before Connect; subscriptions are (re)established on every connect so
// they survive broker reconnects.
type MQTTClient struct {
	opts   *mqtt.ClientOptions
	client mqtt.Client
	routes map[string]func(topic string, payload []byte)
}

// NewMQTTClient builds a client from the broker configuration. The connection
// is not opened until Connect is called.
func NewMQTTClient(cfg config.MQTTConfig) *MQTTClient {
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	broker := fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: cfg.TLSInsecure})
	}

	c := &MQTTClient{
		opts:   opts,
		routes: make(map[string]func(topic string, payload []byte)),
	}
	opts.SetOnConnectHandler(c.subscribeAll)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
	})
	return c
}

// Route registers a handler for one topic. Must be called before Connect.
func (c *MQTTClient) Route(topic string, handler func(topic string, payload []byte)) {
	c.routes[topic] = handler
}

// Connect opens the broker connection and subscribes to all registered topics
func (c *MQTTClient) Connect() error {
	c.client = mqtt.NewClient(c.opts)
	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}
	return nil
}

// subscribeAll runs on every (re)connect
func (c *MQTTClient) subscribeAll(client mqtt.Client) {
	log.Println("MQTT connected")
	for topic, handler := range c.routes {
		h := handler
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			h(msg.Topic(), msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			log.Printf("Failed to subscribe to %s: %v", topic, token.Error())
		} else {
			log.Printf("Subscribed to topic %s", topic)
		}
	}
}

// Publish sends one control message toward the device. The device protocol
// uses bare strings, not JSON.
func (c *MQTTClient) Publish(topic, payload string) error {
	token := c.client.Publish(topic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %v", topic, token.Error())
	}
	log.Printf("Published %q to %s", payload, topic)
	return nil
}

// Disconnect closes the broker connection, letting in-flight work settle
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}
