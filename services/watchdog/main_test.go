package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbotelescope/turbo/config"
	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/pubsub/dummy"
	"github.com/turbotelescope/turbo/services"
)

func ExampleInterfaces() {
	var _ services.Service = (*Service)(nil)
	var _ services.Queryable = (*Service)(nil)
	// Output:
}

func setup() *dummy.Publisher {
	em := &dummy.Publisher{}
	services.Publisher = em
	services.Config = config.ExampleConfig
	return em
}

func TestSetup(t *testing.T) {
	setup()
	service := &Service{}
	service.setup(time.Now())

	// configured devices, process heartbeats and ping hosts
	assert.Contains(t, devices, "weather.boltwood")
	assert.Contains(t, devices, "heartbeat.sitter")
	assert.Contains(t, devices, "ping.10.129.9.28")
	assert.Equal(t, "Boltwood cloud sensor", devices["weather.boltwood"].Name)
}

func TestTimeoutAlerts(t *testing.T) {
	em := setup()
	service := &Service{}
	service.setup(time.Now().Add(-time.Hour))

	checkTimeouts()
	require.NotEmpty(t, em.Events)
	ev := em.Events[0]
	assert.Equal(t, "alert", ev.Topic)
	assert.Equal(t, "slack", ev.Target())
	assert.Contains(t, ev.StringField("message"), "Watchdog PROBLEM")
	assert.True(t, devices["weather.boltwood"].Alerted)

	// no repeat before the repeat interval
	count := len(em.Events)
	checkTimeouts()
	assert.Len(t, em.Events, count)
}

func TestEventRecovers(t *testing.T) {
	em := setup()
	service := &Service{}
	service.setup(time.Now())
	devices["weather.boltwood"].Alerted = true
	devices["weather.boltwood"].LastEvent = time.Now().Add(-time.Hour)

	ev := pubsub.NewEvent("weather", pubsub.Fields{"device": "weather.boltwood"})
	checkEvent(ev)

	assert.False(t, devices["weather.boltwood"].Alerted)
	require.NotEmpty(t, em.Events)
	assert.Contains(t, em.Events[0].StringField("message"), "RECOVERED")
}

func TestUnwatchedDeviceIgnored(t *testing.T) {
	em := setup()
	service := &Service{}
	service.setup(time.Now())

	ev := pubsub.NewEvent("weather", pubsub.Fields{"device": "weather.unknown"})
	checkEvent(ev)
	assert.Empty(t, em.Events)
}
