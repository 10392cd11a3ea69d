package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/tictactoe-direct/internal/discovery"
)

// Transport is a testify double of discovery.Transport. It keeps the handler of the
// latest Subscribe call so tests can deliver events the way a transport would.
type Transport struct {
	mock.Mock

	mu      sync.Mutex
	handler discovery.EventHandler
}

func (that *Transport) Subscribe(ctx context.Context, handler discovery.EventHandler) (discovery.Subscription, error) {
	args := that.Called(ctx, handler)

	that.mu.Lock()
	that.handler = handler
	that.mu.Unlock()

	subscription, _ := args.Get(0).(discovery.Subscription)
	return subscription, args.Error(1)
}

// Handler returns the handler of the latest Subscribe call.
func (that *Transport) Handler() discovery.EventHandler {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.handler
}

func (that *Transport) DiscoverPeers(ctx context.Context) error {
	return that.Called(ctx).Error(0)
}

func (that *Transport) RequestPeers(ctx context.Context, requestID uint64) error {
	return that.Called(ctx, requestID).Error(0)
}

func (that *Transport) RequestConnectionInfo(ctx context.Context) error {
	return that.Called(ctx).Error(0)
}

func (that *Transport) Connect(ctx context.Context, peerID string) error {
	return that.Called(ctx, peerID).Error(0)
}

func (that *Transport) Disconnect(ctx context.Context) error {
	return that.Called(ctx).Error(0)
}

// Subscription is a testify double of discovery.Subscription.
type Subscription struct {
	mock.Mock
}

func (that *Subscription) Close() error {
	return that.Called().Error(0)
}
