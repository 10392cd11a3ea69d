package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-direct/internal/discovery"
	"github.com/rocketscienceinc/tictactoe-direct/internal/entity"
	"github.com/rocketscienceinc/tictactoe-direct/internal/repository"
)

const (
	broadcastChannel    = "p2p:broadcast"
	deviceChannelPrefix = "p2p:device:"
)

func deviceChannel(deviceID string) string {
	return deviceChannelPrefix + deviceID
}

// Transport discovers devices sharing one Redis. Presence lives in the peer repository and is
// renewed every half TTL while subscribed; events travel over pub/sub: one broadcast channel
// and one channel per device.
// Results of lookups are published to the device's own channel, so they reach the
// handler through the same goroutine as every other event.
type Transport struct {
	logger  *slog.Logger
	client  *redis.Client
	peers   repository.PeerRepository
	groups  repository.GroupRepository
	device  entity.Peer
	peerTTL time.Duration
}

func New(
	logger *slog.Logger,
	client *redis.Client,
	peers repository.PeerRepository,
	groups repository.GroupRepository,
	device entity.Peer,
	peerTTL time.Duration,
) *Transport {
	return &Transport{
		logger:  logger.With("component", "redis-transport", "device", device.ID),
		client:  client,
		peers:   peers,
		groups:  groups,
		device:  device,
		peerTTL: peerTTL,
	}
}

// Subscribe listens on the broadcast and device channels and hands decoded events to handler
// one at a time. The radio is reported enabled once the subscription is confirmed.
func (that *Transport) Subscribe(ctx context.Context, handler discovery.EventHandler) (discovery.Subscription, error) {
	pubsub := that.client.Subscribe(ctx, broadcastChannel, deviceChannel(that.device.ID))

	// wait for the confirmation so no event published after Subscribe is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channels: %w", err)
	}

	deliverCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	heartbeatCtx, stopHeartbeat := context.WithCancel(context.WithoutCancel(ctx))

	sub := &subscription{
		transport:     that,
		pubsub:        pubsub,
		cancel:        cancel,
		stopHeartbeat: stopHeartbeat,
		done:          make(chan struct{}),
		heartbeatDone: make(chan struct{}),
	}

	go sub.deliver(deliverCtx, handler)
	go sub.heartbeat(heartbeatCtx, that.peerTTL/2)

	if err := that.Notify(ctx, that.device.ID, discovery.RadioStateChanged{Enabled: true}); err != nil {
		_ = sub.Close()
		return nil, err
	}

	that.logger.Info("subscribed", "channels", []string{broadcastChannel, deviceChannel(that.device.ID)})

	return sub, nil
}

// DiscoverPeers refreshes this device's presence and tells every device to look again.
func (that *Transport) DiscoverPeers(ctx context.Context) error {
	if err := that.peers.Announce(ctx, that.device, that.peerTTL); err != nil {
		return fmt.Errorf("failed to announce device: %w", err)
	}

	if err := that.Notify(ctx, that.device.ID, discovery.ThisDeviceChanged{Device: that.device}); err != nil {
		return err
	}

	return that.Broadcast(ctx, discovery.PeerListChanged{})
}

// RequestPeers publishes the current peer list, tagged with requestID, to this device.
func (that *Transport) RequestPeers(ctx context.Context, requestID uint64) error {
	peers, err := that.peers.List(ctx, that.device.ID)
	if err != nil {
		return fmt.Errorf("failed to list peers: %w", err)
	}

	return that.Notify(ctx, that.device.ID, discovery.PeersAvailable{RequestID: requestID, Peers: peers})
}

// RequestConnectionInfo publishes the group owner address of this device's group to this device.
func (that *Transport) RequestConnectionInfo(ctx context.Context) error {
	group, err := that.groups.Get(ctx, that.device.ID)
	if err != nil {
		return fmt.Errorf("failed to get connection info: %w", err)
	}

	return that.Notify(ctx, that.device.ID, discovery.ConnectionInfoAvailable{GroupOwnerAddress: group.OwnerAddress})
}

// Connect forms a group with peerID as the group owner. The owner is told its own address,
// this device has to look it up through RequestConnectionInfo.
func (that *Transport) Connect(ctx context.Context, peerID string) error {
	owner, err := that.peers.GetByID(ctx, peerID)
	if err != nil {
		return fmt.Errorf("failed to find peer: %w", err)
	}

	address := owner.GroupAddress()

	if err = that.groups.Set(ctx, that.device.ID, entity.Group{OwnerAddress: address, PeerID: peerID}); err != nil {
		return err
	}

	if err = that.groups.Set(ctx, peerID, entity.Group{OwnerAddress: address, PeerID: that.device.ID}); err != nil {
		return err
	}

	if err = that.Notify(ctx, peerID, discovery.ConnectionChanged{Connected: true, GroupOwnerAddress: address}); err != nil {
		return err
	}

	return that.Notify(ctx, that.device.ID, discovery.ConnectionChanged{Connected: true})
}

// Disconnect dissolves this device's group on both ends.
func (that *Transport) Disconnect(ctx context.Context) error {
	group, err := that.groups.Get(ctx, that.device.ID)
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}

	var errs []error

	for _, deviceID := range []string{that.device.ID, group.PeerID} {
		if err = that.groups.Clear(ctx, deviceID); err != nil {
			errs = append(errs, err)
		}

		if err = that.Notify(ctx, deviceID, discovery.ConnectionChanged{Connected: false}); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Notify publishes event to a single device.
func (that *Transport) Notify(ctx context.Context, deviceID string, event discovery.Event) error {
	return that.publish(ctx, deviceChannel(deviceID), event)
}

// Broadcast publishes event to every subscribed device, this one included.
func (that *Transport) Broadcast(ctx context.Context, event discovery.Event) error {
	return that.publish(ctx, broadcastChannel, event)
}

func (that *Transport) publish(ctx context.Context, channel string, event discovery.Event) error {
	message, err := Encode(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event.Action(), err)
	}

	if err = that.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Action(), err)
	}

	return nil
}

type subscription struct {
	transport     *Transport
	pubsub        *redis.PubSub
	cancel        context.CancelFunc
	stopHeartbeat context.CancelFunc
	done          chan struct{}
	heartbeatDone chan struct{}

	once     sync.Once
	closeErr error
}

func (that *subscription) deliver(ctx context.Context, handler discovery.EventHandler) {
	defer close(that.done)

	log := that.transport.logger.With("method", "deliver")

	for message := range that.pubsub.Channel() {
		event, err := Decode([]byte(message.Payload))
		if err != nil {
			log.Warn("undecodable message skipped", "channel", message.Channel, "error", err)
			continue
		}

		handler(ctx, event)
	}
}

// heartbeat keeps this device's presence from expiring. A non-positive interval disables it.
func (that *subscription) heartbeat(ctx context.Context, interval time.Duration) {
	defer close(that.heartbeatDone)

	if interval <= 0 {
		return
	}

	transport := that.transport

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := transport.peers.Announce(ctx, transport.device, transport.peerTTL); err != nil && ctx.Err() == nil {
				transport.logger.Warn("failed to renew presence", "error", err)
			}
		}
	}
}

// Close leaves any group, withdraws this device, closes pub/sub and waits for both goroutines.
func (that *subscription) Close() error {
	that.once.Do(func() {
		that.closeErr = that.close()
	})

	return that.closeErr
}

func (that *subscription) close() error {
	ctx := context.Background()
	transport := that.transport

	var errs []error

	// no renewal may land after the presence is removed
	that.stopHeartbeat()
	<-that.heartbeatDone

	if err := transport.Disconnect(ctx); err != nil && !errors.Is(err, repository.ErrGroupNotFound) {
		errs = append(errs, err)
	}

	if err := transport.peers.Remove(ctx, transport.device.ID); err != nil {
		errs = append(errs, err)
	}

	if err := transport.Broadcast(ctx, discovery.PeerListChanged{}); err != nil {
		errs = append(errs, err)
	}

	if err := that.pubsub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close pubsub: %w", err))
	}

	that.cancel()
	<-that.done

	transport.logger.Info("unsubscribed")

	return errors.Join(errs...)
}
