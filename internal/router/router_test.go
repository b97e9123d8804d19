package router

import (
	"context"
	"sync"
	"testing"

	"github.com/bagashp/esp32-telemetry-bot/internal/config"
	"github.com/bagashp/esp32-telemetry-bot/internal/entities"
)

var testTopics = config.TopicConfig{
	GPS:    "esp32/gps",
	Sensor: "esp32/sensor",
	Alarm:  "esp32/alarm",
	Notify: "esp32/notifikasi",
}

// fakeStore records saves in memory
type fakeStore struct {
	mu        sync.Mutex
	locations []entities.LocationReading
	sensors   []entities.SensorReading
}

func (s *fakeStore) SaveLocation(reading entities.LocationReading) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations = append(s.locations, reading)
	return int64(len(s.locations)), nil
}

func (s *fakeStore) LatestLocation() (*entities.LocationReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.locations) == 0 {
		return nil, nil
	}
	reading := s.locations[len(s.locations)-1]
	return &reading, nil
}

func (s *fakeStore) RecentLocations(n int) ([]entities.LocationReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.locations) <= n {
		return s.locations, nil
	}
	return s.locations[len(s.locations)-n:], nil
}

func (s *fakeStore) SaveSensor(reading entities.SensorReading) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensors = append(s.sensors, reading)
	return int64(len(s.sensors)), nil
}

func (s *fakeStore) LatestSensor() (*entities.SensorReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sensors) == 0 {
		return nil, nil
	}
	reading := s.sensors[len(s.sensors)-1]
	return &reading, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) locationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locations)
}

func (s *fakeStore) sensorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sensors)
}

// fakeNotifier records every fan-out call
type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

type notifyCall struct {
	recipients []int64
	text       string
	loc        *entities.LocationReading
}

func (n *fakeNotifier) Notify(_ context.Context, recipients []int64, text string, loc *entities.LocationReading) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{recipients: recipients, text: text, loc: loc})
}

func (n *fakeNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type fakeRegistry struct {
	members []int64
}

func (r *fakeRegistry) Snapshot() []int64 { return r.members }

func newTestRouter() (*Router, *fakeStore, *fakeNotifier) {
	store := &fakeStore{}
	notif := &fakeNotifier{}
	reg := &fakeRegistry{members: []int64{10, 20}}
	return New(store, reg, notif, testTopics), store, notif
}

func TestValidGPSPayloadIsPersisted(t *testing.T) {
	rtr, store, notif := newTestRouter()

	rtr.OnMessage(context.Background(), "esp32/gps", []byte(`{"latitude": -6.2, "longitude": 106.8}`))
	rtr.Wait()

	if got := store.locationCount(); got != 1 {
		t.Fatalf("Expected 1 saved location, got %d", got)
	}
	latest, _ := store.LatestLocation()
	if latest.Latitude != -6.2 || latest.Longitude != 106.8 {
		t.Errorf("Expected lat=-6.2 lng=106.8, got lat=%v lng=%v", latest.Latitude, latest.Longitude)
	}
	if got := notif.callCount(); got != 0 {
		t.Errorf("GPS topic must not notify, got %d fan-out calls", got)
	}
}

func TestInvalidGPSPayloadsAreDiscarded(t *testing.T) {
	rtr, store, notif := newTestRouter()

	payloads := []string{
		`{"latitude": -6.2}`,
		`{"longitude": 106.8}`,
		`{"latitude": "not a number", "longitude": 106.8}`,
		`not json at all`,
		`{}`,
	}
	for _, payload := range payloads {
		rtr.OnMessage(context.Background(), "esp32/gps", []byte(payload))
	}
	rtr.Wait()

	if got := store.locationCount(); got != 0 {
		t.Errorf("Expected no saved locations, got %d", got)
	}
	if got := notif.callCount(); got != 0 {
		t.Errorf("Expected no fan-out calls, got %d", got)
	}
}

func TestSensorPayloadIsPersisted(t *testing.T) {
	rtr, store, _ := newTestRouter()

	rtr.OnMessage(context.Background(), "esp32/sensor", []byte(`{"temperature": 27.5, "humidity": 61}`))
	rtr.OnMessage(context.Background(), "esp32/sensor", []byte(`{"temperature": 28.1}`))
	rtr.Wait()

	if got := store.sensorCount(); got != 2 {
		t.Errorf("Expected 2 saved sensor readings, got %d", got)
	}
}

func TestAlarmTrueTriggersOneFanOut(t *testing.T) {
	rtr, store, notif := newTestRouter()

	// A location already in the store should ride along with the alert
	store.SaveLocation(entities.LocationReading{Latitude: 1, Longitude: 2})

	rtr.OnMessage(context.Background(), "esp32/alarm", []byte(`{"alarm": true}`))
	rtr.Wait()

	if got := notif.callCount(); got != 1 {
		t.Fatalf("Expected exactly 1 fan-out call, got %d", got)
	}
	call := notif.calls[0]
	if len(call.recipients) != 2 {
		t.Errorf("Expected fan-out to 2 recipients, got %d", len(call.recipients))
	}
	if call.loc == nil || call.loc.Latitude != 1 {
		t.Errorf("Expected latest location attached to the alert, got %+v", call.loc)
	}
}

func TestAlarmFalseIsNoOp(t *testing.T) {
	rtr, _, notif := newTestRouter()

	rtr.OnMessage(context.Background(), "esp32/alarm", []byte(`{"alarm": false}`))
	rtr.OnMessage(context.Background(), "esp32/alarm", []byte(`{}`))
	rtr.Wait()

	if got := notif.callCount(); got != 0 {
		t.Errorf("Expected no fan-out for falsy alarm flag, got %d calls", got)
	}
}

func TestNotificationTopicForwardsVerbatim(t *testing.T) {
	rtr, _, notif := newTestRouter()

	rtr.OnMessage(context.Background(), "esp32/notifikasi", []byte("Baterai lemah: 12%"))
	rtr.Wait()

	if got := notif.callCount(); got != 1 {
		t.Fatalf("Expected 1 fan-out call, got %d", got)
	}
	if notif.calls[0].text != "Baterai lemah: 12%" {
		t.Errorf("Expected verbatim forwarding, got %q", notif.calls[0].text)
	}
	if notif.calls[0].loc != nil {
		t.Error("Free-text notification must not carry a location")
	}
}

func TestUnknownTopicIsIgnored(t *testing.T) {
	rtr, store, notif := newTestRouter()

	rtr.OnMessage(context.Background(), "esp32/extra", []byte(`{"latitude": 1, "longitude": 2}`))
	rtr.Wait()

	if got := store.locationCount(); got != 0 {
		t.Errorf("Expected unknown topic to be ignored, got %d saved locations", got)
	}
	if got := notif.callCount(); got != 0 {
		t.Errorf("Expected unknown topic to be ignored, got %d fan-out calls", got)
	}
}

func TestConcurrentMessagesAllHandled(t *testing.T) {
	rtr, store, _ := newTestRouter()

	for i := 0; i < 100; i++ {
		rtr.OnMessage(context.Background(), "esp32/gps", []byte(`{"latitude": -6.2, "longitude": 106.8}`))
	}
	rtr.Wait()

	if got := store.locationCount(); got != 100 {
		t.Errorf("Expected 100 saved locations, got %d", got)
	}
}
