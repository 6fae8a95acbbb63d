package mqtt

import (
	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/turbotelescope/turbo/pubsub"
)

// Publisher for mqtt
type Publisher struct {
	broker string
	client MQTT.Client
}

// ID of Publisher
func (pub *Publisher) ID() string {
	return "mqtt: " + pub.broker
}

// Emit an event
func (pub *Publisher) Emit(ev *pubsub.Event) {
	topic := TopicPrefix + ev.Topic
	token := pub.client.Publish(topic, 1, ev.Retained(), ev.Bytes())
	go func() {
		token.Wait()
		ev.Published.Set()
	}()
}

func (pub *Publisher) Close() {
	pub.client.Disconnect(250)
}
