package entity

// Group is one side of a two-device connection.
type Group struct {
	OwnerAddress string
	PeerID       string
}
