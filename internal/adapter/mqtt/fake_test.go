package mqtt

import (
	"errors"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// doneToken is a paho token that has already completed.
type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	ch := make(chan struct{})
	close(ch)
	return &doneToken{err: err, done: ch}
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

// pendingToken never completes.
type pendingToken struct{}

func (pendingToken) Wait() bool                     { select {} }
func (pendingToken) WaitTimeout(time.Duration) bool { return false }
func (pendingToken) Done() <-chan struct{}          { return make(chan struct{}) }
func (pendingToken) Error() error                   { return nil }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

// fakeBroker stands in for a paho client. Methods the adapter never calls
// fall through to the nil embedded interface and panic.
type fakeBroker struct {
	paho.Client

	mu          sync.Mutex
	open        bool
	hang        bool
	publishErr  error
	published   []published
	subscribed  map[string]paho.MessageHandler
	disconnects int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subscribed: make(map[string]paho.MessageHandler)}
}

func (f *fakeBroker) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeBroker) IsConnected() bool { return f.IsConnectionOpen() }

func (f *fakeBroker) Connect() paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hang {
		return pendingToken{}
	}
	f.open = true
	return newDoneToken(nil)
}

func (f *fakeBroker) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.disconnects++
}

func (f *fakeBroker) Publish(topic string, qos byte, retain bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hang {
		return pendingToken{}
	}
	if f.publishErr != nil {
		return newDoneToken(f.publishErr)
	}
	b, ok := payload.([]byte)
	if !ok {
		return newDoneToken(errors.New("unexpected payload type"))
	}
	f.published = append(f.published, published{topic: topic, qos: qos, retain: retain, payload: b})
	return newDoneToken(nil)
}

func (f *fakeBroker) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[topic] = cb
	return newDoneToken(nil)
}

// deliver routes a message to the handler subscribed under filter.
func (f *fakeBroker) deliver(filter, topic string, payload []byte) {
	f.mu.Lock()
	cb := f.subscribed[filter]
	f.mu.Unlock()
	if cb != nil {
		cb(f, fakeMessage{topic: topic, payload: payload})
	}
}

func (f *fakeBroker) Published() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}
