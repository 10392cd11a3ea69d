package discovery

import "github.com/rocketscienceinc/tictactoe-direct/internal/entity"

// Action names are the interop contract with transports.
const (
	ActionStateChanged      = "p2p:state-changed"
	ActionPeersChanged      = "p2p:peers-changed"
	ActionPeersAvailable    = "p2p:peers-available"
	ActionConnectionChanged = "p2p:connection-changed"
	ActionConnectionInfo    = "p2p:connection-info-available"
	ActionThisDeviceChanged = "p2p:this-device-changed"
)

// Event is a discovery notification delivered by a transport.
type Event interface {
	Action() string
}

// RadioStateChanged reports whether the peer-to-peer radio is usable.
type RadioStateChanged struct {
	Enabled bool `json:"enabled"`
}

// PeerListChanged tells the session that the set of nearby peers may have changed.
type PeerListChanged struct{}

// PeersAvailable carries the answer to a RequestPeers call.
// RequestID zero means the result is not tied to a request.
type PeersAvailable struct {
	RequestID uint64        `json:"request_id,omitempty"`
	Peers     []entity.Peer `json:"peers"`
}

// ConnectionChanged reports a connection going up or down.
type ConnectionChanged struct {
	Connected         bool   `json:"connected"`
	GroupOwnerAddress string `json:"group_owner_address,omitempty"`
}

// ConnectionInfoAvailable carries the answer to a RequestConnectionInfo call.
type ConnectionInfoAvailable struct {
	GroupOwnerAddress string `json:"group_owner_address"`
}

// ThisDeviceChanged reports a change of the local device details.
type ThisDeviceChanged struct {
	Device entity.Peer `json:"device"`
}

func (RadioStateChanged) Action() string       { return ActionStateChanged }
func (PeerListChanged) Action() string         { return ActionPeersChanged }
func (PeersAvailable) Action() string          { return ActionPeersAvailable }
func (ConnectionChanged) Action() string       { return ActionConnectionChanged }
func (ConnectionInfoAvailable) Action() string { return ActionConnectionInfo }
func (ThisDeviceChanged) Action() string       { return ActionThisDeviceChanged }
