package models

import (
	"errors"
	"testing"

	"gotest.tools/assert"
)

func TestRoleHeaders(t *testing.T) {
	assert.Equal(t, Gun.Header(), byte(71))
	assert.Equal(t, Glove.Header(), byte(77))
	assert.Equal(t, Vest.Header(), byte(86))
	p := NewPeripheral("d0:39:72:bf:c6:47", "Beetle Vest", Vest)
	assert.Equal(t, p.Header(), byte(86))
	assert.Equal(t, p.String(), "Beetle Vest (d0:39:72:bf:c6:47)")
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Glove ")
	assert.NilError(t, err)
	assert.Equal(t, r, Glove)
	_, err = ParseRole("helmet")
	assert.ErrorContains(t, err, "unknown peripheral role")
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, Disconnected.String(), "Disconnected")
	assert.Equal(t, ConnectedHandshaked.String(), "ConnectedHandshaked")
}

func TestCountersSnapshot(t *testing.T) {
	c := &Counters{}
	c.IncAccepted()
	c.IncAccepted()
	c.IncDuplicates()
	c.IncReconnects()
	s := c.Snapshot()
	assert.Equal(t, s.Accepted, uint64(2))
	assert.Equal(t, s.Duplicates, uint64(1))
	assert.Equal(t, s.Reconnects, uint64(1))
	assert.Equal(t, s.Corrupt, uint64(0))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	expected := Envelope{RelayID: "r1", Peripheral: "Beetle Glove", Address: "a", Role: "glove", Seq: 3, Frame: []byte{77, 3}, ReceivedAt: 10}
	data, err := expected.Data()
	assert.NilError(t, err)
	actual, err := GetEnvelopeFromBytes(data)
	assert.NilError(t, err)
	assert.DeepEqual(t, *actual, expected)
}

type countingListener struct {
	states  int
	errs    int
	dropped []string
}

func (l *countingListener) OnStateChanged(Peripheral, ConnectionState) { l.states++ }
func (l *countingListener) OnFrameForwarded(Peripheral, []byte)        {}
func (l *countingListener) OnFrameDropped(_ Peripheral, r string)      { l.dropped = append(l.dropped, r) }
func (l *countingListener) OnInternalError(Peripheral, error)          { l.errs++ }

func TestMultiListener(t *testing.T) {
	a, b := &countingListener{}, &countingListener{}
	m := MultiListener{a, NopListener{}, b}
	p := NewPeripheral("x", "y", Gun)
	m.OnStateChanged(p, Connecting)
	m.OnFrameDropped(p, "checksum")
	m.OnInternalError(p, errors.New("boom"))
	m.OnFrameForwarded(p, nil)
	assert.Equal(t, a.states, 1)
	assert.Equal(t, b.errs, 1)
	assert.DeepEqual(t, b.dropped, []string{"checksum"})
}
