package notify

import (
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeToken is a completed pahomqtt.Token.
type fakeToken struct {
	done     chan struct{}
	err      error
	timedOut bool
}

func newFakeToken(err error) *fakeToken {
	ch := make(chan struct{})
	close(ch)
	return &fakeToken{done: ch, err: err}
}

func (t *fakeToken) Wait() bool                     { return !t.timedOut }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timedOut }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

// MockPublisher is a mock implementation of the Publisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(pahomqtt.Token)
}

func TestNewMQTTSink_Validation(t *testing.T) {
	pub := &MockPublisher{}

	_, err := NewMQTTSink(nil, MQTTConfig{Topic: "t"})
	assert.Error(t, err)

	_, err = NewMQTTSink(pub, MQTTConfig{})
	assert.ErrorIs(t, err, ErrInvalidTopic)

	_, err = NewMQTTSink(pub, MQTTConfig{Topic: "t", QoS: 3})
	assert.Error(t, err)

	sink, err := NewMQTTSink(pub, MQTTConfig{Topic: "t", QoS: 1})
	assert.NoError(t, err)
	assert.NotNil(t, sink)
}

func TestMQTTSink_Publish(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("Publish", "datastore/profiles", byte(1), true, []byte(ChangedPayload)).Return(newFakeToken(nil))

	sink, err := NewMQTTSink(pub, MQTTConfig{Topic: "datastore/profiles", QoS: 1, Retained: true})
	require.NoError(t, err)

	assert.NoError(t, sink.Publish())
	pub.AssertExpectations(t)
}

func TestMQTTSink_PublishError(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("Publish", "topic", byte(0), false, []byte(ChangedPayload)).Return(newFakeToken(errors.New("broker gone")))

	sink, err := NewMQTTSink(pub, MQTTConfig{Topic: "topic"})
	require.NoError(t, err)

	err = sink.Publish()
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.Contains(t, err.Error(), "broker gone")
}

func TestMQTTSink_PublishTimeout(t *testing.T) {
	tok := newFakeToken(nil)
	tok.timedOut = true
	pub := &MockPublisher{}
	pub.On("Publish", "topic", byte(0), false, []byte(ChangedPayload)).Return(tok)

	sink, err := NewMQTTSink(pub, MQTTConfig{Topic: "topic"})
	require.NoError(t, err)

	err = sink.Publish()
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.Contains(t, err.Error(), "timeout")
}

func TestMQTTSink_AttachPublishesOncePerSignal(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("Publish", "topic", byte(0), false, []byte(ChangedPayload)).Return(newFakeToken(nil))

	sink, err := NewMQTTSink(pub, MQTTConfig{Topic: "topic"})
	require.NoError(t, err)

	sig := NewSignal()
	sub := sink.Attach(sig)
	sig.Notify()
	sig.Notify()
	sub.Cancel()
	sig.Notify()

	pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestMQTTSink_AttachSwallowsErrors(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("Publish", "topic", byte(0), false, []byte(ChangedPayload)).Return(newFakeToken(errors.New("nope")))

	sink, err := NewMQTTSink(pub, MQTTConfig{Topic: "topic"})
	require.NoError(t, err)

	sig := NewSignal()
	sink.Attach(sig)
	assert.NotPanics(t, sig.Notify)
}

func TestNewMQTTClient_RequiresBroker(t *testing.T) {
	_, err := NewMQTTClient(MQTTConfig{})
	assert.ErrorIs(t, err, ErrConnectionFailed)
}
