package entity

// Peer describes a nearby device that can be discovered.
// Address is where the device can be reached when it owns a group.
type Peer struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// GroupAddress is the address other devices use once this peer owns their group.
func (that Peer) GroupAddress() string {
	if that.Address != "" {
		return that.Address
	}
	return that.ID
}
