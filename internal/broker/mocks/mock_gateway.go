// Package mocks contains a hand-maintained gomock mock of the narrow slice
// of the broker.Gateway/Connection/Channel interfaces needed to assert
// call-count and call-order expectations — specifically, that the pool
// initializer releases its exclusive-queue lock exactly once even when the
// critical section returns an error. Everything else in this repo tests
// against the stateful package fake instead, since gomock's expectation
// style does not model a broker that must actually hold and redeliver
// queued messages (see DESIGN.md).
package mocks

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/bucketdist/bucketdist/internal/broker"
)

// MockGateway is a mock of the broker.Gateway interface.
type MockGateway struct {
	ctrl     *gomock.Controller
	recorder *MockGatewayMockRecorder
}

// MockGatewayMockRecorder is the mock recorder for MockGateway.
type MockGatewayMockRecorder struct {
	mock *MockGateway
}

// NewMockGateway creates a new mock instance.
func NewMockGateway(ctrl *gomock.Controller) *MockGateway {
	m := &MockGateway{ctrl: ctrl}
	m.recorder = &MockGatewayMockRecorder{m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockGateway) EXPECT() *MockGatewayMockRecorder {
	return m.recorder
}

// Connect mocks base method.
func (m *MockGateway) Connect(ctx context.Context, url string) (broker.Connection, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Connect", ctx, url)
	ret0, _ := ret[0].(broker.Connection)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Connect indicates an expected call of Connect.
func (mr *MockGatewayMockRecorder) Connect(ctx, url any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Connect", reflect.TypeOf((*MockGateway)(nil).Connect), ctx, url)
}

// MockConnection is a mock of the broker.Connection interface.
type MockConnection struct {
	ctrl     *gomock.Controller
	recorder *MockConnectionMockRecorder
}

// MockConnectionMockRecorder is the mock recorder for MockConnection.
type MockConnectionMockRecorder struct {
	mock *MockConnection
}

// NewMockConnection creates a new mock instance.
func NewMockConnection(ctrl *gomock.Controller) *MockConnection {
	m := &MockConnection{ctrl: ctrl}
	m.recorder = &MockConnectionMockRecorder{m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockConnection) EXPECT() *MockConnectionMockRecorder {
	return m.recorder
}

// Channel mocks base method.
func (m *MockConnection) Channel() (broker.Channel, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Channel")
	ret0, _ := ret[0].(broker.Channel)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Channel indicates an expected call of Channel.
func (mr *MockConnectionMockRecorder) Channel() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Channel", reflect.TypeOf((*MockConnection)(nil).Channel))
}

// Close mocks base method.
func (m *MockConnection) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

// Close indicates an expected call of Close.
func (mr *MockConnectionMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockConnection)(nil).Close))
}

// IsClosed mocks base method.
func (m *MockConnection) IsClosed() bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "IsClosed")
	ret0, _ := ret[0].(bool)
	return ret0
}

// IsClosed indicates an expected call of IsClosed.
func (mr *MockConnectionMockRecorder) IsClosed() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsClosed", reflect.TypeOf((*MockConnection)(nil).IsClosed))
}

// MockChannel is a mock of the broker.Channel interface. Every method
// dispatches through the gomock controller, so any call not set up with
// EXPECT fails the test.
type MockChannel struct {
	ctrl     *gomock.Controller
	recorder *MockChannelMockRecorder
}

// MockChannelMockRecorder is the mock recorder for MockChannel.
type MockChannelMockRecorder struct {
	mock *MockChannel
}

// NewMockChannel creates a new mock instance.
func NewMockChannel(ctrl *gomock.Controller) *MockChannel {
	m := &MockChannel{ctrl: ctrl}
	m.recorder = &MockChannelMockRecorder{m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockChannel) EXPECT() *MockChannelMockRecorder {
	return m.recorder
}

func (m *MockChannel) DeclareQueue(name string, opts broker.QueueOptions) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeclareQueue", name, opts)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) DeclareQueue(name, opts any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeclareQueue", reflect.TypeOf((*MockChannel)(nil).DeclareQueue), name, opts)
}

func (m *MockChannel) DeclareQueuePassive(name string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeclareQueuePassive", name)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) DeclareQueuePassive(name any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeclareQueuePassive", reflect.TypeOf((*MockChannel)(nil).DeclareQueuePassive), name)
}

func (m *MockChannel) DeleteQueue(name string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteQueue", name)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) DeleteQueue(name any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteQueue", reflect.TypeOf((*MockChannel)(nil).DeleteQueue), name)
}

func (m *MockChannel) DeclareFanoutExchange(name string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeclareFanoutExchange", name)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) DeclareFanoutExchange(name any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeclareFanoutExchange", reflect.TypeOf((*MockChannel)(nil).DeclareFanoutExchange), name)
}

func (m *MockChannel) Bind(queue, exchange string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Bind", queue, exchange)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) Bind(queue, exchange any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Bind", reflect.TypeOf((*MockChannel)(nil).Bind), queue, exchange)
}

func (m *MockChannel) Publish(ctx context.Context, exchange, routingKey string, body []byte, headers broker.Headers) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Publish", ctx, exchange, routingKey, body, headers)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) Publish(ctx, exchange, routingKey, body, headers any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Publish", reflect.TypeOf((*MockChannel)(nil).Publish), ctx, exchange, routingKey, body, headers)
}

func (m *MockChannel) SetPrefetch(n int) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetPrefetch", n)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) SetPrefetch(n any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetPrefetch", reflect.TypeOf((*MockChannel)(nil).SetPrefetch), n)
}

func (m *MockChannel) Subscribe(queue string, handler broker.DeliveryHandler) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Subscribe", queue, handler)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockChannelMockRecorder) Subscribe(queue, handler any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Subscribe", reflect.TypeOf((*MockChannel)(nil).Subscribe), queue, handler)
}

func (m *MockChannel) Ack(tag uint64) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Ack", tag)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) Ack(tag any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Ack", reflect.TypeOf((*MockChannel)(nil).Ack), tag)
}

func (m *MockChannel) RejectRequeue(tag uint64) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RejectRequeue", tag)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) RejectRequeue(tag any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RejectRequeue", reflect.TypeOf((*MockChannel)(nil).RejectRequeue), tag)
}

func (m *MockChannel) Cancel(consumerTag string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Cancel", consumerTag)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) Cancel(consumerTag any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Cancel", reflect.TypeOf((*MockChannel)(nil).Cancel), consumerTag)
}

func (m *MockChannel) Recover(requeue bool) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Recover", requeue)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) Recover(requeue any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Recover", reflect.TypeOf((*MockChannel)(nil).Recover), requeue)
}

func (m *MockChannel) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockChannelMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockChannel)(nil).Close))
}
