package models

// ConnectionState is an enum for all possible connection conditions of one link
type ConnectionState int

const (
	// Disconnected indicates no transport connection exists
	Disconnected ConnectionState = iota
	// Connecting indicates connect attempts are in progress
	Connecting
	// ConnectedNoHandshake indicates the transport is up but the Beetle has not answered the handshake
	ConnectedNoHandshake
	// ConnectedHandshaked indicates the link is ready to relay data
	ConnectedHandshaked
)

func (s ConnectionState) String() string {
	return []string{"Disconnected", "Connecting", "ConnectedNoHandshake", "ConnectedHandshaked"}[s]
}

// LinkStatus is a point in time view of one link
type LinkStatus struct {
	Peripheral Peripheral
	State      ConnectionState
	Stats      LinkStats
}
