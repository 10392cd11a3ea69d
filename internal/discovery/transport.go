package discovery

import "context"

// EventHandler receives transport events. Transports call it serially.
type EventHandler func(ctx context.Context, event Event)

// Subscription is an acquired event subscription.
type Subscription interface {
	Close() error
}

// Transport is the peer-discovery capability a session drives.
// Requests are fire-and-forget: their results come back later as events on the subscription.
type Transport interface {
	Subscribe(ctx context.Context, handler EventHandler) (Subscription, error)

	DiscoverPeers(ctx context.Context) error
	RequestPeers(ctx context.Context, requestID uint64) error
	RequestConnectionInfo(ctx context.Context) error

	// Connect forms a group with peerID, which becomes the group owner.
	// Both ends learn about it through ConnectionChanged.
	Connect(ctx context.Context, peerID string) error
	// Disconnect leaves the current group.
	Disconnect(ctx context.Context) error
}
