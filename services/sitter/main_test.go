package sitter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turbotelescope/turbo/config"
	"github.com/turbotelescope/turbo/lib/telescope"
	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/pubsub/dummy"
	"github.com/turbotelescope/turbo/services"
)

var base = time.Date(2024, 3, 20, 6, 0, 0, 0, time.UTC)

func setup(enclosure string) (*Service, *telescope.MockController, *dummy.Publisher) {
	em := &dummy.Publisher{}
	services.Publisher = em
	services.Config = config.ExampleConfig
	mock := &telescope.MockController{Enclosure: enclosure}
	service := &Service{
		controller: mock,
		night:      func(time.Time) bool { return true },
		poll:       time.Minute,
		delay:      3 * time.Minute,
		repeat:     time.Minute,
	}
	return service, mock, em
}

func goodWeather(at time.Time) *pubsub.Event {
	ev := pubsub.NewEvent("weather", pubsub.Fields{
		"good_conditions": true,
		"no_clouds":       true,
		"low_wind":        true,
		"no_rain":         true,
	})
	ev.Timestamp = at
	return ev
}

func TestClosedEnclosureSafe(t *testing.T) {
	service, _, em := setup("closed")
	for i := 0; i < 10; i++ {
		service.check(base.Add(time.Duration(i) * time.Minute))
	}
	assert.Empty(t, em.Events)
}

func TestNoWeatherDataAlerts(t *testing.T) {
	service, _, em := setup("opened")
	for i := 0; i < 5; i++ {
		service.check(base.Add(time.Duration(i) * time.Minute))
	}
	assert.Len(t, em.Events, 1)
	msg := em.Events[0].StringField("message")
	assert.Contains(t, msg, "Cannot retrieve weather data")
	assert.Contains(t, msg, "No weather data available")
	assert.Equal(t, "slack", em.Events[0].Target())
}

func TestGoodConditionsQuiet(t *testing.T) {
	service, _, em := setup("opened")
	for i := 0; i < 10; i++ {
		now := base.Add(time.Duration(i) * time.Minute)
		service.weather = goodWeather(now)
		service.check(now)
	}
	assert.Empty(t, em.Events)
}

func TestBadConditionsAlert(t *testing.T) {
	service, _, em := setup("opened")
	for i := 0; i < 5; i++ {
		now := base.Add(time.Duration(i) * time.Minute)
		ev := goodWeather(now)
		ev.SetField("good_conditions", false)
		ev.SetField("no_rain", false)
		service.weather = ev
		service.check(now)
	}
	assert.Len(t, em.Events, 1)
	msg := em.Events[0].StringField("message")
	assert.Contains(t, msg, "Bad observing conditions and enclosure still open")
	assert.Contains(t, msg, "No Rain: false")
}

func TestOpenDuringDayAlert(t *testing.T) {
	service, _, em := setup("opened")
	service.night = func(time.Time) bool { return false }
	for i := 0; i < 5; i++ {
		now := base.Add(time.Duration(i) * time.Minute)
		service.weather = goodWeather(now)
		service.check(now)
	}
	assert.Len(t, em.Events, 1)
	assert.Contains(t, em.Events[0].StringField("message"), "Night: false")
}

func TestConnectionErrorAlerts(t *testing.T) {
	service, mock, em := setup("opened")
	mock.Err = errors.New("connection refused")
	for i := 0; i < 5; i++ {
		service.check(base.Add(time.Duration(i) * time.Minute))
	}
	assert.Len(t, em.Events, 1)
	assert.Contains(t, em.Events[0].StringField("message"), "Cannot connect to enclosure")
}

func TestRecoveryClearsTimer(t *testing.T) {
	service, mock, em := setup("opened")
	mock.Err = errors.New("connection refused")
	service.check(base)
	service.check(base.Add(time.Minute))
	// recovers before the alert delay expires
	mock.Err = nil
	mock.Enclosure = "closed"
	for i := 2; i < 10; i++ {
		service.check(base.Add(time.Duration(i) * time.Minute))
	}
	assert.Empty(t, em.Events)
}

func TestRepeatAlerts(t *testing.T) {
	service, _, em := setup("opened")
	for i := 0; i < 10; i++ {
		service.check(base.Add(time.Duration(i) * time.Minute))
	}
	// first alert after the delay, then once per repeat interval
	assert.Len(t, em.Events, 6)
}

func TestRepeatIntervalHonoured(t *testing.T) {
	service, _, em := setup("opened")
	service.repeat = 3 * time.Minute
	for i := 0; i < 10; i++ {
		service.check(base.Add(time.Duration(i) * time.Minute))
	}
	// alerts at minutes 4 and 7
	assert.Len(t, em.Events, 2)
}

func TestStaleWeatherCountsAsMissing(t *testing.T) {
	service, _, em := setup("opened")
	service.weather = goodWeather(base.Add(-time.Hour))
	for i := 0; i < 5; i++ {
		service.check(base.Add(time.Duration(i) * time.Minute))
	}
	assert.Len(t, em.Events, 1)
	assert.Contains(t, em.Events[0].StringField("message"), "Cannot retrieve weather data")
}
