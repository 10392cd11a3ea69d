package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rocketscienceinc/tictactoe-direct/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-direct/internal/entity"
)

// Config tunes how a session talks to its transport.
type Config struct {
	// DiscoverAttempts bounds DiscoverPeers calls on activation, at least one is made.
	DiscoverAttempts int
	// DiscoverBackoff is the first delay between DiscoverPeers attempts.
	DiscoverBackoff time.Duration
}

// Session tracks radio state, nearby peers and the connection lifecycle of one activation.
// It does no locking: the owner serializes HandleEvent and the accessors.
type Session struct {
	logger    *slog.Logger
	transport Transport
	config    Config
	notify    NoticeFunc

	subscription Subscription
	active       bool

	radioEnabled bool
	peers        map[string]entity.Peer
	connection   ConnectionState

	// peerRequest is the id of the latest RequestPeers call.
	peerRequest uint64
}

func NewSession(logger *slog.Logger, transport Transport, config Config, notify NoticeFunc) *Session {
	if notify == nil {
		notify = func(Notice) {}
	}

	return &Session{
		logger:     logger.With("component", "discovery"),
		transport:  transport,
		config:     config,
		notify:     notify,
		peers:      make(map[string]entity.Peer),
		connection: Disconnected(),
	}
}

// Start attaches the session to the transport and then discovers peers.
// Events are handed to dispatch, or to HandleEvent when dispatch is nil.
func (that *Session) Start(ctx context.Context, dispatch EventHandler) error {
	if err := that.Attach(ctx, dispatch); err != nil {
		return err
	}

	that.Discover(ctx)

	return nil
}

// Attach acquires the transport subscription on a fresh state.
// Events are handed to dispatch, or to HandleEvent when dispatch is nil.
func (that *Session) Attach(ctx context.Context, dispatch EventHandler) error {
	if that.active {
		return apperror.ErrAlreadyActive
	}

	if dispatch == nil {
		dispatch = that.HandleEvent
	}

	that.reset()

	subscription, err := that.transport.Subscribe(ctx, dispatch)
	if err != nil {
		return fmt.Errorf("failed to subscribe to transport events: %w", err)
	}

	that.subscription = subscription
	that.active = true

	that.logger.Info("discovery session started")

	return nil
}

// Discover asks the transport for peers with bounded retries. A final failure is logged
// and leaves the peer list empty. It reads no session state, so the owner may call it
// without serializing it against HandleEvent.
func (that *Session) Discover(ctx context.Context) {
	if err := that.discoverPeers(ctx); err != nil {
		that.logger.Warn("peer discovery failed", "error", err)
	}
}

// Connect asks the transport to form a group with a nearby peer.
// The connection state follows once the transport reports it.
func (that *Session) Connect(ctx context.Context, peerID string) error {
	if !that.active {
		return apperror.ErrNotActive
	}

	if that.connection.Status != StatusDisconnected {
		return apperror.ErrAlreadyConnected
	}

	if _, ok := that.peers[peerID]; !ok {
		return fmt.Errorf("%w: %s", apperror.ErrUnknownPeer, peerID)
	}

	if err := that.transport.Connect(ctx, peerID); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", peerID, err)
	}

	that.logger.Info("connection requested", "peer", peerID)

	return nil
}

// Disconnect asks the transport to leave the current group.
func (that *Session) Disconnect(ctx context.Context) error {
	if !that.active {
		return apperror.ErrNotActive
	}

	if that.connection.Status == StatusDisconnected {
		return apperror.ErrNotConnected
	}

	if err := that.transport.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}

	return nil
}

// Stop releases the subscription and discards everything the session learned.
// Calling Stop on an inactive session is a no-op.
func (that *Session) Stop() error {
	if !that.active {
		return nil
	}

	subscription := that.subscription

	that.active = false
	that.subscription = nil
	that.reset()

	if err := subscription.Close(); err != nil {
		return fmt.Errorf("failed to close transport subscription: %w", err)
	}

	that.logger.Info("discovery session stopped")

	return nil
}

// HandleEvent applies one transport event. Unknown events are logged and ignored.
func (that *Session) HandleEvent(ctx context.Context, event Event) {
	log := that.logger.With("method", "HandleEvent")

	if !that.active {
		log.Debug("event dropped, session is not active", "action", actionOf(event))
		return
	}

	switch ev := event.(type) {
	case RadioStateChanged:
		that.handleRadioState(ev)
	case PeerListChanged:
		that.handlePeerListChanged(ctx)
	case PeersAvailable:
		that.handlePeersAvailable(ev)
	case ConnectionChanged:
		that.handleConnectionChanged(ctx, ev)
	case ConnectionInfoAvailable:
		that.handleConnectionInfo(ev)
	case ThisDeviceChanged:
		log.Debug("this device changed", "device", ev.Device.ID, "name", ev.Device.Name)
		that.notify(Notice{Kind: NoticeThisDeviceChanged, Message: fmt.Sprintf("This device is %s", displayName(ev.Device))})
	default:
		log.Warn("unexpected event ignored", "action", actionOf(event))
	}
}

func (that *Session) handleRadioState(event RadioStateChanged) {
	that.radioEnabled = event.Enabled

	that.logger.Info("radio state changed", "enabled", event.Enabled)

	if event.Enabled {
		that.notify(Notice{Kind: NoticeRadioEnabled, Message: "Peer-to-peer radio IS enabled"})
		return
	}

	that.notify(Notice{Kind: NoticeRadioDisabled, Message: "Peer-to-peer radio is not enabled"})
}

func (that *Session) handlePeerListChanged(ctx context.Context) {
	that.peerRequest++

	if err := that.transport.RequestPeers(ctx, that.peerRequest); err != nil {
		that.logger.Warn("failed to request peers", "request_id", that.peerRequest, "error", err)
	}
}

func (that *Session) handlePeersAvailable(event PeersAvailable) {
	log := that.logger.With("method", "handlePeersAvailable", "request_id", event.RequestID)

	if event.RequestID != 0 && event.RequestID != that.peerRequest {
		log.Info("stale peer list discarded", "latest_request_id", that.peerRequest)
		return
	}

	peers := make(map[string]entity.Peer, len(event.Peers))
	for _, peer := range event.Peers {
		if peer.ID == "" {
			log.Warn("peer without id ignored", "name", peer.Name)
			continue
		}
		peers[peer.ID] = peer
	}

	that.peers = peers

	for _, peer := range that.Peers() {
		log.Debug("found peer", "peer", peer.ID, "name", peer.Name)
	}

	that.notify(Notice{Kind: NoticePeersUpdated, Message: fmt.Sprintf("%d peer(s) nearby", len(peers))})
}

func (that *Session) handleConnectionChanged(ctx context.Context, event ConnectionChanged) {
	if !event.Connected {
		that.connection = Disconnected()

		that.logger.Info("connection lost")
		that.notify(Notice{Kind: NoticeDisconnected, Message: "Disconnected from peer"})

		return
	}

	if event.GroupOwnerAddress != "" {
		that.setConnected(event.GroupOwnerAddress)
		return
	}

	// connected, but the group owner address has to be looked up
	that.connection = Connecting()
	that.notify(Notice{Kind: NoticeConnecting, Message: "Connecting to peer"})

	if err := that.transport.RequestConnectionInfo(ctx); err != nil {
		that.logger.Warn("failed to request connection info", "error", err)
	}
}

func (that *Session) handleConnectionInfo(event ConnectionInfoAvailable) {
	if that.connection.Status != StatusConnecting {
		that.logger.Debug("connection info ignored", "status", that.connection.Status)
		return
	}

	if event.GroupOwnerAddress == "" {
		that.logger.Warn("connection info without group owner address ignored")
		return
	}

	that.setConnected(event.GroupOwnerAddress)
}

func (that *Session) setConnected(address string) {
	that.connection = Connected(address)

	that.logger.Info("connected", "group_owner_address", address)
	that.notify(Notice{Kind: NoticeConnected, Message: fmt.Sprintf("Connected, group owner at %s", address)})
}

// discoverPeers is retried with exponential backoff, context errors end it right away.
func (that *Session) discoverPeers(ctx context.Context) error {
	attempts := that.config.DiscoverAttempts
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = that.config.DiscoverBackoff

	operation := func() error {
		err := that.transport.DiscoverPeers(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		that.logger.Info("retrying peer discovery", "error", err, "next", next)
	}

	retries := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)
	if err := backoff.RetryNotify(operation, retries, notify); err != nil {
		return fmt.Errorf("failed to discover peers: %w", err)
	}

	return nil
}

func (that *Session) reset() {
	that.radioEnabled = false
	that.peers = make(map[string]entity.Peer)
	that.connection = Disconnected()
	that.peerRequest = 0
}

func (that *Session) IsActive() bool {
	return that.active
}

func (that *Session) RadioEnabled() bool {
	return that.radioEnabled
}

// Peers returns the current peer set ordered by id.
func (that *Session) Peers() []entity.Peer {
	peers := make([]entity.Peer, 0, len(that.peers))
	for _, peer := range that.peers {
		peers = append(peers, peer)
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].ID < peers[j].ID
	})

	return peers
}

func (that *Session) Connection() ConnectionState {
	return that.connection
}

func (that *Session) State() State {
	return State{
		Active:       that.active,
		RadioEnabled: that.radioEnabled,
		Peers:        that.Peers(),
		Connection:   that.connection,
	}
}

func actionOf(event Event) string {
	if event == nil {
		return "<nil>"
	}
	return event.Action()
}

func displayName(peer entity.Peer) string {
	if peer.Name != "" {
		return peer.Name
	}
	return peer.ID
}
