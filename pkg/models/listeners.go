package models

// RelayListener receives link level events. Calls come from the link's own worker goroutine.
type RelayListener interface {
	OnStateChanged(Peripheral, ConnectionState)
	OnFrameForwarded(Peripheral, []byte)
	OnFrameDropped(Peripheral, string)
	OnInternalError(Peripheral, error)
}

// NopListener ignores every event
type NopListener struct{}

func (NopListener) OnStateChanged(Peripheral, ConnectionState) {}
func (NopListener) OnFrameForwarded(Peripheral, []byte)        {}
func (NopListener) OnFrameDropped(Peripheral, string)          {}
func (NopListener) OnInternalError(Peripheral, error)          {}

// MultiListener fans events out to several listeners in order
type MultiListener []RelayListener

func (m MultiListener) OnStateChanged(p Peripheral, s ConnectionState) {
	for _, l := range m {
		l.OnStateChanged(p, s)
	}
}

func (m MultiListener) OnFrameForwarded(p Peripheral, frame []byte) {
	for _, l := range m {
		l.OnFrameForwarded(p, frame)
	}
}

func (m MultiListener) OnFrameDropped(p Peripheral, reason string) {
	for _, l := range m {
		l.OnFrameDropped(p, reason)
	}
}

func (m MultiListener) OnInternalError(p Peripheral, err error) {
	for _, l := range m {
		l.OnInternalError(p, err)
	}
}
