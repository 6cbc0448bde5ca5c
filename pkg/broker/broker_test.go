package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Broker_DeliversToAllSubscribers(t *testing.T) {
	broker := NewBroker[string]()
	go broker.Start()
	defer broker.Stop()

	first := broker.Subscribe()
	second := broker.Subscribe()

	time.Sleep(time.Millisecond * 50)
	broker.Publish("hello")

	assert.Equal(t, "hello", <-first)
	assert.Equal(t, "hello", <-second)
}

func Test_Broker_UnsubscribedChannelReceivesNothing(t *testing.T) {
	broker := NewBroker[int]()
	go broker.Start()
	defer broker.Stop()

	kept := broker.Subscribe()
	dropped := broker.Subscribe()
	broker.Unsubscribe(dropped)

	// Give the broker loop a moment to process the unsubscription before
	// publishing; both arrive on separate channels.
	time.Sleep(time.Millisecond * 50)
	broker.Publish(42)

	assert.Equal(t, 42, <-kept)
	select {
	case msg := <-dropped:
		t.Fatalf("unsubscribed channel received message %v", msg)
	case <-time.After(time.Millisecond * 100):
	}
}
