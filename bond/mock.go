package bond

import (
	"context"

	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockPayoutSink mocks the PayoutSink interface
type MockPayoutSink struct {
	mock.Mock
}

// Release mocks the Release method
func (m *MockPayoutSink) Release(ctx context.Context, payout interfaces.Payout) error {
	args := m.Called(ctx, payout)
	return args.Error(0)
}

// MockEventSink mocks the EventSink interface
type MockEventSink struct {
	mock.Mock
}

// Publish mocks the Publish method
func (m *MockEventSink) Publish(ctx context.Context, event interfaces.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockStateStore mocks the StateStore interface
type MockStateStore struct {
	mock.Mock
}

// Load mocks the Load method
func (m *MockStateStore) Load(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// Save mocks the Save method
func (m *MockStateStore) Save(ctx context.Context, seq uint64, snapshot []byte) error {
	args := m.Called(ctx, seq, snapshot)
	return args.Error(0)
}

// Close mocks the Close method
func (m *MockStateStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
