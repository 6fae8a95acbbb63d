package ups

import (
	"testing"

	"github.com/mdlayher/apcupsd"
	"github.com/stretchr/testify/assert"

	"github.com/turbotelescope/turbo/config"
	"github.com/turbotelescope/turbo/pubsub/dummy"
	"github.com/turbotelescope/turbo/services"
)

func Example_interfaces() {
	var _ services.Service = (*Service)(nil)
	var _ services.Queryable = (*Service)(nil)
	// Output:
}

func TestDevice(t *testing.T) {
	services.Config = config.ExampleConfig
	assert.Equal(t, "ups.control", device())
}

func TestCheckTransition(t *testing.T) {
	services.Config = config.ExampleConfig
	em := &dummy.Publisher{}
	services.Publisher = em

	service := &Service{}
	// first observation sets a baseline without alerting
	service.checkTransition(&apcupsd.Status{Status: "ONLINE"})
	assert.Empty(t, em.Events)

	service.checkTransition(&apcupsd.Status{Status: "ONBATT", BatteryChargePercent: 80})
	if assert.Len(t, em.Events, 1) {
		assert.Equal(t, "slack", em.Events[0].Target())
		assert.Contains(t, em.Events[0].StringField("message"), "UPS on battery")
	}

	// no repeat while status unchanged
	service.checkTransition(&apcupsd.Status{Status: "ONBATT"})
	assert.Len(t, em.Events, 1)

	service.checkTransition(&apcupsd.Status{Status: "ONLINE"})
	if assert.Len(t, em.Events, 2) {
		assert.Contains(t, em.Events[1].StringField("message"), "back on mains")
	}
}
