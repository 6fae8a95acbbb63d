package camera

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbotelescope/turbo/config"
	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/pubsub/dummy"
	"github.com/turbotelescope/turbo/services"
)

func TestControllerCameraStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/telescope_controller/camera/status", r.URL.Path)
		w.Write([]byte(`{"is_online": true, "temperature_celsius": -9.5, "cooler_power_percent": 40, "exposure_state": "exposing", "last_image_time": "2024-03-20T06:00:00Z", "time_since_last_image": 42.5}`))
	}))
	defer server.Close()

	cam := &controllerCamera{name: "camera.north-scope", url: server.URL, client: http.DefaultClient}
	status, err := cam.Status()
	require.NoError(t, err)
	assert.Equal(t, "camera.north-scope", status.CameraName)
	assert.True(t, status.IsOnline)
	assert.Equal(t, -9.5, *status.TemperatureCelsius)
	assert.Equal(t, "exposing", status.ExposureState)
	assert.Equal(t, "2024-03-20T06:00:00Z", status.LastImageTime)
	assert.Equal(t, 42.5, *status.TimeSinceLastImage)
}

func TestControllerCameraOffline(t *testing.T) {
	cam := &controllerCamera{name: "camera.north-scope", url: "http://127.0.0.1:1", client: http.DefaultClient}
	status, err := cam.Status()
	require.NoError(t, err)
	assert.False(t, status.IsOnline)
}

func TestTickPublishes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"is_online": true, "temperature_celsius": -9.5}`))
	}))
	defer server.Close()

	em := &dummy.Publisher{}
	services.Publisher = em
	conf := config.Must(config.OpenRaw([]byte("camera:\n  keep: 5\n")))
	services.Config = conf

	service := &Service{
		statuses: map[string]StatusSource{
			"camera.north-scope": &controllerCamera{name: "camera.north-scope", url: server.URL, client: http.DefaultClient},
		},
		healthy: map[string]bool{},
	}
	service.tick(time.Now())

	require.Len(t, em.Events, 1)
	ev := em.Events[0]
	assert.Equal(t, "camera", ev.Topic)
	assert.Equal(t, "camera.north-scope", ev.Device())
	assert.True(t, ev.BoolField("online"))
	assert.True(t, ev.BoolField("healthy"))
	assert.True(t, service.latest.OverallHealthy)
}

type fakeCamera struct {
	status Status
}

func (f *fakeCamera) Status() (*Status, error) {
	status := f.status
	return &status, nil
}

func alerts(events []*pubsub.Event) []*pubsub.Event {
	var ret []*pubsub.Event
	for _, ev := range events {
		if ev.Topic == "alert" {
			ret = append(ret, ev)
		}
	}
	return ret
}

func TestHealthTransitionAlerts(t *testing.T) {
	em := &dummy.Publisher{}
	services.Publisher = em
	services.Config = config.Must(config.OpenRaw([]byte("camera:\n  alert: slack\n  keep: 5\n")))

	cold := 5.0
	cam := &fakeCamera{Status{CameraName: "camera.north-scope", IsOnline: true, TemperatureCelsius: &cold}}
	service := &Service{
		statuses: map[string]StatusSource{"camera.north-scope": cam},
		healthy:  map[string]bool{},
	}
	service.tick(time.Now())
	assert.Empty(t, alerts(em.Events))

	// cooler loses the battle
	hot := 45.0
	cam.status.TemperatureCelsius = &hot
	service.tick(time.Now())
	problems := alerts(em.Events)
	require.Len(t, problems, 1)
	assert.Equal(t, "slack", problems[0].Target())
	msg := problems[0].StringField("message")
	assert.Contains(t, msg, "Camera camera.north-scope PROBLEM")
	assert.Contains(t, msg, "sensor at 45.0C")

	// no repeat while it stays unhealthy
	service.tick(time.Now())
	assert.Len(t, alerts(em.Events), 1)

	cam.status.TemperatureCelsius = &cold
	service.tick(time.Now())
	recovered := alerts(em.Events)
	require.Len(t, recovered, 2)
	assert.Contains(t, recovered[1].StringField("message"), "Camera camera.north-scope RECOVERED")
}

func TestUnhealthyAtStartupIsBaseline(t *testing.T) {
	em := &dummy.Publisher{}
	services.Publisher = em
	services.Config = config.Must(config.OpenRaw([]byte("camera:\n  alert: slack\n  keep: 5\n")))

	cam := &fakeCamera{Status{CameraName: "camera.north-scope", IsOnline: false}}
	service := &Service{
		statuses: map[string]StatusSource{"camera.north-scope": cam},
		healthy:  map[string]bool{},
	}
	service.tick(time.Now())
	assert.Empty(t, alerts(em.Events))

	// coming online counts as a recovery
	cold := 5.0
	cam.status.IsOnline = true
	cam.status.TemperatureCelsius = &cold
	service.tick(time.Now())
	require.Len(t, alerts(em.Events), 1)
	assert.Contains(t, alerts(em.Events)[0].StringField("message"), "RECOVERED")
}

type mockSnapper struct {
	paths []string
}

func (m *mockSnapper) Snapshot(path string) error {
	m.paths = append(m.paths, path)
	return nil
}

func TestSnapshotCommand(t *testing.T) {
	em := &dummy.Publisher{}
	services.Publisher = em
	services.Config = config.ExampleConfig

	snapper := &mockSnapper{}
	service := &Service{
		snappers: map[string]Snapshotter{"camera.allsky": snapper},
	}
	ev := pubsub.NewEvent("command/camera.allsky", pubsub.Fields{
		"device":  "camera.allsky",
		"command": "snapshot",
		"notify":  "slack",
		"message": "enclosure check",
	})
	service.eventCommand(ev)

	// snapshot happens from a goroutine
	for i := 0; len(em.Events) == 0 && i < 100; i++ {
		time.Sleep(time.Millisecond)
	}
	require.Len(t, snapper.paths, 1)
	require.Len(t, em.Events, 1)
	alert := em.Events[0]
	assert.Equal(t, "alert", alert.Topic)
	assert.Equal(t, "slack", alert.Target())
	assert.Equal(t, "enclosure check", alert.StringField("message"))
}

func TestUnknownDeviceIgnored(t *testing.T) {
	service := &Service{snappers: map[string]Snapshotter{}}
	ev := pubsub.NewCommand("camera.unknown", "snapshot")
	service.eventCommand(ev) // must not panic
}
