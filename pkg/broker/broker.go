package broker

// Broker is a generic fan-out pub/sub primitive. Messages published
// while the broker is running are delivered to every subscribed
// channel; a blocked subscriber will block the publish loop, so
// subscribers are buffered on creation.
type Broker[T any] struct {
	publishCh chan T
	subCh     chan chan T
	unsubCh   chan chan T
	stopCh    chan struct{}
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		publishCh: make(chan T, 1),
		subCh:     make(chan chan T, 1),
		unsubCh:   make(chan chan T, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start runs the broker loop. This method blocks until Stop is
// called and is expected to be run in its own goroutine.
func (broker *Broker[T]) Start() {
	subscribers := map[chan T]struct{}{}
	for {
		select {
		case <-broker.stopCh:
			return
		case msgCh := <-broker.subCh:
			subscribers[msgCh] = struct{}{}
		case msgCh := <-broker.unsubCh:
			delete(subscribers, msgCh)
		case msg := <-broker.publishCh:
			for msgCh := range subscribers {
				msgCh <- msg
			}
		}
	}
}

func (broker *Broker[T]) Stop() {
	close(broker.stopCh)
}

func (broker *Broker[T]) Subscribe() chan T {
	msgCh := make(chan T, 5)
	broker.subCh <- msgCh
	return msgCh
}

func (broker *Broker[T]) Unsubscribe(msgCh chan T) {
	broker.unsubCh <- msgCh
}

func (broker *Broker[T]) Publish(msg T) {
	broker.publishCh <- msg
}
