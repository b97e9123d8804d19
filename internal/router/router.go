// Package router dispatches inbound transport messages by topic
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/bagashp/esp32-telemetry-bot/internal/config"
	"github.com/bagashp/esp32-telemetry-bot/internal/entities"
	"github.com/bagashp/esp32-telemetry-bot/internal/repository"
)

// maxInFlight bounds concurrently handled messages so a device message storm
// cannot grow goroutines without limit
const maxInFlight = 32

// Notifier fans a message out to the given recipients
type Notifier interface {
	Notify(ctx context.Context, recipients []int64, text string, loc *entities.LocationReading)
}

// Registry provides the current notification recipients
type Registry interface {
	Snapshot() []int64
}

type handlerFunc func(ctx context.Context, payload []byte) error

// Router owns the topic subscription table, fixed at startup. Each inbound
// message is decoded, validated and persisted per its topic's handler, and
// topics configured to notify trigger recipient fan-out.
type Router struct {
	repo     repository.ReadingRepository
	registry Registry
	notifier Notifier
	handlers map[string]handlerFunc
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
}

// New builds a router with the declarative topic table. Adding a topic means
// adding one entry here, dispatch logic stays untouched.
func New(repo repository.ReadingRepository, registry Registry, notifier Notifier, topics config.TopicConfig) *Router {
	r := &Router{
		repo:     repo,
		registry: registry,
		notifier: notifier,
		sem:      semaphore.NewWeighted(maxInFlight),
	}
	r.handlers = map[string]handlerFunc{
		topics.GPS:    r.handleGPS,
		topics.Sensor: r.handleSensor,
		topics.Alarm:  r.handleAlarm,
		topics.Notify: r.handleNotification,
	}
	return r
}

// Topics returns every topic the router wants subscribed
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	return topics
}

// OnMessage handles one inbound transport message. Unknown topics are
// ignored, so devices publishing extra topics stay harmless. Handling runs
// in its own goroutine, bounded by the in-flight limit; every per-message
// error is logged here and never escapes to the transport loop.
func (r *Router) OnMessage(ctx context.Context, topic string, payload []byte) {
	handler, ok := r.handlers[topic]
	if !ok {
		return
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		log.Printf("Dropping message on %s: %v", topic, err)
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)
		if err := handler(ctx, payload); err != nil {
			log.Printf("Error handling message on %s: %v", topic, err)
		}
	}()
}

// Wait blocks until all in-flight message handlers have finished. Used
// during graceful shutdown.
func (r *Router) Wait() {
	r.wg.Wait()
}

type gpsPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// handleGPS persists a location reading. Both coordinates must be present,
// numeric and finite, otherwise the message is discarded.
func (r *Router) handleGPS(ctx context.Context, payload []byte) error {
	var p gpsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to decode GPS payload %q: %v", payload, err)
	}
	if p.Latitude == nil || p.Longitude == nil {
		return fmt.Errorf("invalid GPS payload %q: latitude and longitude are required", payload)
	}
	if !isFinite(*p.Latitude) || !isFinite(*p.Longitude) {
		return fmt.Errorf("invalid GPS payload %q: coordinates must be finite", payload)
	}

	id, err := r.repo.SaveLocation(entities.LocationReading{
		Latitude:  *p.Latitude,
		Longitude: *p.Longitude,
	})
	if err != nil {
		return fmt.Errorf("failed to save location reading: %v", err)
	}
	log.Printf("Saved location reading %d: lat=%v lng=%v", id, *p.Latitude, *p.Longitude)
	return nil
}

type sensorPayload struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// handleSensor persists whatever numeric fields the device reported
func (r *Router) handleSensor(ctx context.Context, payload []byte) error {
	var p sensorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to decode sensor payload %q: %v", payload, err)
	}

	id, err := r.repo.SaveSensor(entities.SensorReading{
		Temperature: p.Temperature,
		Humidity:    p.Humidity,
	})
	if err != nil {
		return fmt.Errorf("failed to save sensor reading: %v", err)
	}
	log.Printf("Saved sensor reading %d", id)
	return nil
}

type alarmPayload struct {
	Alarm bool `json:"alarm"`
}

// handleAlarm fans out an alert when the device reports the alarm flag set.
// A false or absent flag is a no-op. The latest known location rides along
// when the store has one.
func (r *Router) handleAlarm(ctx context.Context, payload []byte) error {
	var p alarmPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to decode alarm payload %q: %v", payload, err)
	}
	if !p.Alarm {
		return nil
	}

	loc, err := r.repo.LatestLocation()
	if err != nil {
		// Alert still goes out, just without coordinates
		log.Printf("Error loading latest location for alarm alert: %v", err)
		loc = nil
	}

	r.notifier.Notify(ctx, r.registry.Snapshot(), "🚨 ALARM! Gerakan terdeteksi pada perangkat.", loc)
	return nil
}

// handleNotification forwards device free text verbatim to all recipients
func (r *Router) handleNotification(ctx context.Context, payload []byte) error {
	text := string(payload)
	if text == "" {
		return nil
	}
	r.notifier.Notify(ctx, r.registry.Snapshot(), text, nil)
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
