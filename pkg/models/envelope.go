package models

import "encoding/json"

// Envelope is what the relay publishes upstream for every accepted frame
type Envelope struct {
	RelayID    string `json:"relay_id"`
	Peripheral string `json:"peripheral"`
	Address    string `json:"address"`
	Role       string `json:"role"`
	Seq        byte   `json:"seq"`
	Frame      []byte `json:"frame"`
	ReceivedAt int64  `json:"received_at"`
}

// Data serializes the envelope for the wire
func (e *Envelope) Data() ([]byte, error) {
	return json.Marshal(e)
}

// GetEnvelopeFromBytes parses an envelope published by the relay
func GetEnvelopeFromBytes(data []byte) (*Envelope, error) {
	var ret Envelope
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}
