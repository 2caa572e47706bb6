package util

import "time"

const (
	// PacketSize is the fixed length of every frame a Beetle sends: header, sequence, 12 payload bytes, checksum
	PacketSize = 15
	// HeaderIndex is the offset of the role header byte within a frame
	HeaderIndex = 0
	// SeqIndex is the offset of the sequence number within a frame
	SeqIndex = 1
	// AckToken is the single byte used both to acknowledge data frames and to answer a handshake
	AckToken byte = 'A'
	// HandshakeToken is the single byte written to a Beetle to request a handshake
	HandshakeToken byte = 'H'
	// SerialServiceUUID represents UUID for the Bluno serial service a Beetle advertises
	SerialServiceUUID = "0000dfb0-0000-1000-8000-00805f9b34fb"
	// SerialCharUUID represents UUID for the Bluno serial characteristic carrying all relay traffic
	SerialCharUUID = "0000dfb1-0000-1000-8000-00805f9b34fb"
	// RetryCount is the default number of connect attempts per reconnect round
	RetryCount = 8
	// WaitTimeout is how long a single notification wait blocks before re-polling
	WaitTimeout = 5 * time.Second
	// ReconnectDelay is the pause between exhausted reconnect rounds during steady state
	ReconnectDelay = time.Second
	// DialTimeout bounds a single BLE dial
	DialTimeout = 10 * time.Second
	// DiscoverTimeout bounds GATT profile discovery after a dial
	DiscoverTimeout = 10 * time.Second
	// NotificationBuffer is the capacity of the per-link notification channel
	NotificationBuffer = 64
)
