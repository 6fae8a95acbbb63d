package mqtt

import (
	"fmt"
	"log"
	"math/rand"
	"os"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/turbotelescope/turbo/pubsub"
)

// TopicPrefix namespaces all bus traffic on the mqtt broker.
const TopicPrefix = "turbo/"

type Broker struct {
	broker     string
	client     MQTT.Client
	subscriber *Subscriber
}

func NewBroker(broker string, name string) *Broker {
	self := &Broker{broker: broker}
	self.subscriber = NewSubscriber(self)

	// generate a unique client id
	hostname, _ := os.Hostname()
	clientID := fmt.Sprintf("%s%s-%s-%d-%d", TopicPrefix, name, hostname, os.Getpid(), rand.Int())
	opts := MQTT.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetDefaultPublishHandler(self.subscriber.publishHandler)
	opts.SetOnConnectHandler(self.subscriber.connectHandler)

	self.client = MQTT.NewClient(opts)
	if token := self.client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln("Couldn't connect to mqtt:", token.Error())
	}
	return self
}

func (self *Broker) Id() string {
	return "mqtt: " + self.broker
}

func (self *Broker) Subscriber() pubsub.Subscriber {
	return self.subscriber
}

func (self *Broker) Publisher() pubsub.Publisher {
	return &Publisher{broker: self.broker, client: self.client}
}
