package discovery

import "github.com/rocketscienceinc/tictactoe-direct/internal/entity"

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// ConnectionState is the connection half of the session state.
// GroupOwnerAddress is only set while connected.
type ConnectionState struct {
	Status            ConnectionStatus `json:"status"`
	GroupOwnerAddress string           `json:"group_owner_address,omitempty"`
}

func Disconnected() ConnectionState {
	return ConnectionState{Status: StatusDisconnected}
}

func Connecting() ConnectionState {
	return ConnectionState{Status: StatusConnecting}
}

func Connected(groupOwnerAddress string) ConnectionState {
	return ConnectionState{Status: StatusConnected, GroupOwnerAddress: groupOwnerAddress}
}

func (that ConnectionState) IsConnected() bool {
	return that.Status == StatusConnected
}

// State is a snapshot of a session.
type State struct {
	Active       bool            `json:"active"`
	RadioEnabled bool            `json:"radio_enabled"`
	Peers        []entity.Peer   `json:"peers"`
	Connection   ConnectionState `json:"connection"`
}
